package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"situationcord.app/relay/internal/model"
)

var levelColors = map[model.SeverityLevel]string{
	model.SeverityLevelLow:      "#36a64f",
	model.SeverityLevelMedium:   "#daa038",
	model.SeverityLevelHigh:     "#e8590c",
	model.SeverityLevelCritical: "#d00000",
}

// SlackNotifier mirrors alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

func NewSlackNotifier(webhookURL, channel string, timeout time.Duration) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *SlackNotifier) Dispatch(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult) error {
	if err := slackapi.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, buildSlackMessage(s.channel, msg, analysis)); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

func buildSlackMessage(channel string, msg model.IncomingMessage, analysis model.AnalysisResult) *slackapi.WebhookMessage {
	where := "#" + msg.ChannelID
	if msg.ChannelName != nil && *msg.ChannelName != "" {
		where = "#" + *msg.ChannelName
	}
	if msg.ThreadName != nil && *msg.ThreadName != "" {
		where += " > " + *msg.ThreadName
	}

	tags := make([]string, len(analysis.CategoryTags))
	for i, t := range analysis.CategoryTags {
		tags[i] = string(t)
	}
	tagText := strings.Join(tags, ", ")
	if tagText == "" {
		tagText = "none"
	}

	return &slackapi.WebhookMessage{
		Channel: channel,
		Text: fmt.Sprintf("%s severity message from %s in %s",
			strings.ToUpper(string(analysis.SeverityLevel)), msg.AuthorLabel(), where),
		Attachments: []slackapi.Attachment{
			{
				Color: levelColors[analysis.SeverityLevel],
				Title: analysis.Summary,
				Text:  truncate(msg.Content, 1500),
				Fields: []slackapi.AttachmentField{
					{Title: "Severity", Value: fmt.Sprintf("%.0f (%s)", analysis.SeverityScore, analysis.SeverityLevel), Short: true},
					{Title: "Sentiment", Value: string(analysis.Sentiment), Short: true},
					{Title: "Categories", Value: tagText, Short: true},
					{Title: "Needs help", Value: fmt.Sprintf("%t", analysis.NeedsHelp), Short: true},
					{Title: "Why", Value: analysis.SeverityReason},
				},
				Footer: "message " + msg.ID,
			},
		},
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
