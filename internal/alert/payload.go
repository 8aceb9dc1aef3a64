package alert

import (
	"strings"
	"time"

	"situationcord.app/relay/internal/model"
)

// Flatten builds the single-level event the alert sink ingests. Optional
// fields are present with a nil value when unset, and tags are comma-joined.
func Flatten(msg model.IncomingMessage, analysis model.AnalysisResult) map[string]any {
	tags := make([]string, len(analysis.CategoryTags))
	for i, t := range analysis.CategoryTags {
		tags[i] = string(t)
	}

	return map[string]any{
		"event_type":          msg.EventType,
		"message_id":          msg.ID,
		"content":             msg.Content,
		"author_id":           msg.Author.ID,
		"author_username":     msg.Author.Username,
		"author_display_name": deref(msg.Author.DisplayName),
		"author_bot":          msg.Author.Bot,
		"channel_id":          msg.ChannelID,
		"channel_name":        deref(msg.ChannelName),
		"thread_id":           deref(msg.ThreadID),
		"thread_name":         deref(msg.ThreadName),
		"guild_id":            deref(msg.GuildID),
		"guild_name":          deref(msg.GuildName),
		"message_timestamp":   msg.Timestamp.UTC().Format(time.RFC3339),
		"sentiment":           string(analysis.Sentiment),
		"is_question":         analysis.IsQuestion,
		"is_answer":           analysis.IsAnswer,
		"needs_help":          analysis.NeedsHelp,
		"category_tags":       strings.Join(tags, ","),
		"ai_summary":          analysis.Summary,
		"confidence_score":    analysis.ConfidenceScore,
		"severity_score":      analysis.SeverityScore,
		"severity_level":      string(analysis.SeverityLevel),
		"severity_reason":     analysis.SeverityReason,
		"model_version":       analysis.ModelVersion,
		"alerted_at":          time.Now().UTC().Format(time.RFC3339),
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
