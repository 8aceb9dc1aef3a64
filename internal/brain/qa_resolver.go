package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"situationcord.app/relay/common/llm"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/store"
)

const qaPromptVersion = "v1"

// QAResponse is the structured output of the Q&A resolution call.
// An empty AnsweredMessageID means no question is answered.
type QAResponse struct {
	AnsweredMessageID string  `json:"answeredMessageId" jsonschema_description:"Message ID of the question being answered, copied exactly from the thread, or an empty string if no clear question is answered"`
	Confidence        float64 `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Confidence that this message answers the identified question"`
	Reasoning         string  `json:"reasoning" jsonschema_description:"Brief explanation of why this message-question pair was matched"`
}

var qaSchema = llm.GenerateSchema[QAResponse]()

func (r *QAResponse) Validate() error {
	r.Confidence = clamp(r.Confidence, 0, 1)
	r.AnsweredMessageID = strings.TrimSpace(r.AnsweredMessageID)
	return nil
}

// QAResolver links an answer message to the earlier question it addresses.
type QAResolver struct {
	llm   llm.Client
	evals store.LLMEvalStore
}

func NewQAResolver(client llm.Client, evals store.LLMEvalStore) *QAResolver {
	return &QAResolver{llm: client, evals: evals}
}

// Resolve never fails. A model error yields a reference with no answered id
// and the error in its reasoning. Ids the model returns that are not part of
// thread are discarded.
func (q *QAResolver) Resolve(ctx context.Context, msg model.IncomingMessage, thread []model.ThreadContextEntry) model.QAReference {
	prompt := buildQAPrompt(msg, thread)

	var response QAResponse
	start := time.Now()
	resp, err := q.llm.Chat(ctx, llm.Request{
		SystemPrompt: qaSystemPrompt,
		UserPrompt:   prompt,
		UserName:     msg.AuthorLabel(),
		SchemaName:   "qa_reference",
		Schema:       qaSchema,
		Temperature:  llm.Temp(analysisTemperature),
	}, &response)
	latency := time.Since(start)

	logEval(ctx, q.evals, q.llm, evalRecord{
		messageID:     msg.ID,
		stage:         model.EvalStageQAResolver,
		prompt:        prompt,
		promptVersion: qaPromptVersion,
		output:        response,
		err:           err,
		latency:       latency,
		resp:          resp,
	})

	if err != nil {
		slog.WarnContext(ctx, "q&a resolution failed", "error", err)
		return model.QAReference{
			Confidence: 0,
			Reasoning:  fmt.Sprintf("Q&A resolution error: %s", err.Error()),
		}
	}

	ref := model.QAReference{
		Confidence: response.Confidence,
		Reasoning:  response.Reasoning,
	}

	if response.AnsweredMessageID != "" {
		if inThread(thread, response.AnsweredMessageID) {
			ref.AnsweredMessageID = &response.AnsweredMessageID
		} else {
			slog.WarnContext(ctx, "q&a resolver returned id outside thread context",
				"answered_message_id", response.AnsweredMessageID)
		}
	}

	slog.InfoContext(ctx, "q&a resolved",
		"matched", ref.AnsweredMessageID != nil,
		"confidence", ref.Confidence,
		"latency_ms", latency.Milliseconds())

	return ref
}

func inThread(thread []model.ThreadContextEntry, messageID string) bool {
	for _, e := range thread {
		if e.MessageID == messageID {
			return true
		}
	}
	return false
}

func buildQAPrompt(msg model.IncomingMessage, thread []model.ThreadContextEntry) string {
	var sb strings.Builder
	sb.WriteString("## Candidate answer\n")
	fmt.Fprintf(&sb, "Author: %s%s\n", msg.AuthorLabel(), botLabel(msg.Author.Bot))
	sb.WriteString("Content:\n")
	sb.WriteString(promptContent(msg.Content))
	sb.WriteString("\n\n## Earlier messages in the thread\n")
	sb.WriteString(FormatThreadContextWithIDs(thread))
	return sb.String()
}

const qaSystemPrompt = `You link answers to questions in Discord support threads.

You get a candidate answer and the earlier messages of its thread, each with its Message ID.
Pick the one earlier message that asks the question the candidate answers.

## Rules

- Copy the Message ID exactly as shown. Never invent one.
- If no earlier message asks a question the candidate clearly answers, return an empty string for answeredMessageId.
- Prefer the most recent matching question when several are similar.
- Keep reasoning to one or two sentences.`
