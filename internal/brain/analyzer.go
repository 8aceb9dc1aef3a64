package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"situationcord.app/relay/common/llm"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/store"
)

const (
	analysisTemperature   = 0.1
	analysisPromptVersion = "v1"
)

// AnalysisResponse is the structured output requested from the model.
type AnalysisResponse struct {
	Sentiment       sentimentValue     `json:"sentiment" jsonschema_description:"Emotional tone: positive (helpful, satisfied), neutral (informational), negative (unhappy), frustrated (angry, blocked) or urgent (time-sensitive issue)"`
	IsQuestion      bool               `json:"isQuestion" jsonschema_description:"True if the message asks a question that needs an answer"`
	IsAnswer        bool               `json:"isAnswer" jsonschema_description:"True if the message appears to answer a previous question in the thread"`
	NeedsHelp       bool               `json:"needsHelp" jsonschema_description:"True if the message describes a problem that requires assistance"`
	CategoryTags    []categoryTagValue `json:"categoryTags" jsonschema_description:"Relevant category tags, zero or more"`
	AISummary       string             `json:"aiSummary" jsonschema_description:"One-sentence summary of the message content and intent"`
	ConfidenceScore float64            `json:"confidenceScore" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Confidence in this analysis from 0.0 to 1.0"`
	SeverityScore   float64            `json:"severityScore" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Severity from 0 to 100 following the rubric"`
	SeverityLevel   severityLevelValue `json:"severityLevel" jsonschema_description:"Categorical severity level matching the score band"`
	SeverityReason  string             `json:"severityReason" jsonschema_description:"Brief explanation of the assigned severity"`
}

var analysisSchema = llm.GenerateSchema[AnalysisResponse]()

// Validate rejects values outside the closed enums and normalizes the rest:
// scores are clamped to their ranges and unknown or repeated tags are dropped.
func (r *AnalysisResponse) Validate() error {
	if !model.Sentiment(r.Sentiment).Valid() {
		return fmt.Errorf("unknown sentiment %q", r.Sentiment)
	}
	if !model.SeverityLevel(r.SeverityLevel).Valid() {
		return fmt.Errorf("unknown severity level %q", r.SeverityLevel)
	}

	r.ConfidenceScore = clamp(r.ConfidenceScore, 0, 1)
	r.SeverityScore = clamp(r.SeverityScore, 0, 100)

	seen := make(map[categoryTagValue]bool, len(r.CategoryTags))
	tags := make([]categoryTagValue, 0, len(r.CategoryTags))
	for _, t := range r.CategoryTags {
		if !model.CategoryTag(t).Valid() || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	r.CategoryTags = tags

	return nil
}

func (r *AnalysisResponse) toResult(modelVersion string) model.AnalysisResult {
	tags := make([]model.CategoryTag, len(r.CategoryTags))
	for i, t := range r.CategoryTags {
		tags[i] = model.CategoryTag(t)
	}
	return model.AnalysisResult{
		Sentiment:       model.Sentiment(r.Sentiment),
		IsQuestion:      r.IsQuestion,
		IsAnswer:        r.IsAnswer,
		NeedsHelp:       r.NeedsHelp,
		CategoryTags:    tags,
		Summary:         r.AISummary,
		ConfidenceScore: r.ConfidenceScore,
		SeverityScore:   r.SeverityScore,
		SeverityLevel:   model.SeverityLevel(r.SeverityLevel),
		SeverityReason:  r.SeverityReason,
		ModelVersion:    modelVersion,
	}
}

// Analyzer classifies a single message with its thread context.
type Analyzer struct {
	llm   llm.Client
	evals store.LLMEvalStore
}

// NewAnalyzer returns an Analyzer. evals may be nil to skip eval logging.
func NewAnalyzer(client llm.Client, evals store.LLMEvalStore) *Analyzer {
	return &Analyzer{llm: client, evals: evals}
}

// Analyze never fails: any model or validation error yields the fallback
// analysis, which never qualifies for an alert.
func (a *Analyzer) Analyze(ctx context.Context, msg model.IncomingMessage, thread []model.ThreadContextEntry) model.AnalysisResult {
	prompt := buildAnalysisPrompt(msg, thread)

	var response AnalysisResponse
	start := time.Now()
	resp, err := a.llm.Chat(ctx, llm.Request{
		SystemPrompt: analysisSystemPrompt,
		UserPrompt:   prompt,
		UserName:     msg.AuthorLabel(),
		SchemaName:   "message_analysis",
		Schema:       analysisSchema,
		Temperature:  llm.Temp(analysisTemperature),
	}, &response)
	latency := time.Since(start)

	logEval(ctx, a.evals, a.llm, evalRecord{
		messageID:     msg.ID,
		stage:         model.EvalStageAnalysis,
		prompt:        prompt,
		promptVersion: analysisPromptVersion,
		output:        response,
		err:           err,
		latency:       latency,
		resp:          resp,
	})

	if err != nil {
		slog.WarnContext(ctx, "message analysis failed, using fallback",
			"error", err,
			"invalid_output", errors.Is(err, llm.ErrInvalidOutput))
		return model.FallbackAnalysis(a.llm.Model(), err.Error())
	}

	result := response.toResult(a.llm.Model())

	slog.InfoContext(ctx, "message analyzed",
		"sentiment", result.Sentiment,
		"severity_score", result.SeverityScore,
		"severity_level", result.SeverityLevel,
		"is_answer", result.IsAnswer,
		"tag_count", len(result.CategoryTags),
		"latency_ms", latency.Milliseconds())

	return result
}

func buildAnalysisPrompt(msg model.IncomingMessage, thread []model.ThreadContextEntry) string {
	var sb strings.Builder

	sb.WriteString("## Message\n")
	fmt.Fprintf(&sb, "Author: %s%s\n", msg.AuthorLabel(), botLabel(msg.Author.Bot))
	if msg.ChannelName != nil && *msg.ChannelName != "" {
		fmt.Fprintf(&sb, "Channel: #%s\n", *msg.ChannelName)
	}
	if msg.ThreadName != nil && *msg.ThreadName != "" {
		fmt.Fprintf(&sb, "Thread: %s\n", *msg.ThreadName)
	}
	fmt.Fprintf(&sb, "Sent: %s\n", formatTimestamp(msg.Timestamp))
	sb.WriteString("Content:\n")
	sb.WriteString(promptContent(msg.Content))
	sb.WriteString("\n\n")

	sb.WriteString("## Thread context (oldest first)\n")
	sb.WriteString(FormatThreadContext(thread))

	return sb.String()
}

const analysisSystemPrompt = `You analyze messages from a developer community's Discord support channels so the support team can spot people who need help.

Classify the message using the thread context when present.

## Category tags

Apply every tag that fits, or none.

- Free Limits: quota, storage, CU-hours, exceeded limits
- Billing: payment, plans, credits, invoices
- Account: locked out, transfer ownership, delete account
- BaaS: RLS, Auth, JWKS, backend services
- Console: dashboard bugs, UI errors
- Vercel: deployment platform mentions

## Severity rubric

- 0-30 low: general questions, positive feedback
- 31-60 medium: issues with workarounds, minor bugs
- 61-85 high: blocking issues, frustrated users, billing problems
- 86-100 critical: account locked, data loss, security issues, very urgent

severityLevel must match the band of severityScore.

## Flags

- isQuestion: the message asks something that needs an answer
- isAnswer: the message answers an earlier question in the thread
- needsHelp: the author has a problem that requires assistance

Keep aiSummary to one sentence. Messages from bots are rarely urgent.`
