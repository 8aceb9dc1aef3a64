package model

import "time"

const (
	EvalStageAnalysis   = "analysis"
	EvalStageQAResolver = "qa_resolver"
)

// LLMEval captures one model call for offline quality review.
type LLMEval struct {
	ID               int64     `json:"id"`
	MessageID        *string   `json:"message_id,omitempty"`
	Stage            string    `json:"stage"`
	InputText        string    `json:"input_text"`
	OutputJSON       []byte    `json:"output_json,omitempty"`
	Error            *string   `json:"error,omitempty"`
	Model            string    `json:"model"`
	Temperature      *float64  `json:"temperature,omitempty"`
	PromptVersion    *string   `json:"prompt_version,omitempty"`
	LatencyMs        *int      `json:"latency_ms,omitempty"`
	PromptTokens     *int      `json:"prompt_tokens,omitempty"`
	CompletionTokens *int      `json:"completion_tokens,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
