package brain

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"situationcord.app/relay/common/id"
	"situationcord.app/relay/common/llm"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/store"
)

type evalRecord struct {
	messageID     string
	stage         string
	prompt        string
	promptVersion string
	output        any
	err           error
	latency       time.Duration
	resp          *llm.Response
}

func logEval(ctx context.Context, evalStore store.LLMEvalStore, client llm.Client, rec evalRecord) {
	if evalStore == nil {
		return
	}

	eval := &model.LLMEval{
		ID:            id.New(),
		MessageID:     stringPtr(rec.messageID),
		Stage:         rec.stage,
		InputText:     rec.prompt,
		Model:         client.Model(),
		Temperature:   floatPtr(analysisTemperature),
		PromptVersion: stringPtr(rec.promptVersion),
		LatencyMs:     intPtr(int(rec.latency.Milliseconds())),
	}

	if rec.err != nil {
		eval.Error = stringPtr(rec.err.Error())
	} else {
		outputJSON, err := json.Marshal(rec.output)
		if err != nil {
			slog.ErrorContext(ctx, "failed to marshal response for eval", "error", err, "stage", rec.stage)
			return
		}
		eval.OutputJSON = outputJSON
	}

	if rec.resp != nil {
		eval.PromptTokens = intPtr(rec.resp.PromptTokens)
		eval.CompletionTokens = intPtr(rec.resp.CompletionTokens)
	}

	if _, err := evalStore.Create(ctx, eval); err != nil {
		// Eval logging is observability, never the critical path.
		slog.ErrorContext(ctx, "failed to log eval", "error", err, "stage", rec.stage)
	}
}

func floatPtr(f float64) *float64 { return &f }
func stringPtr(s string) *string  { return &s }
func intPtr(i int) *int           { return &i }
