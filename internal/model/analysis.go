package model

import (
	"fmt"
	"strconv"
	"time"
)

type (
	Sentiment     string
	SeverityLevel string
	CategoryTag   string
)

const (
	SentimentPositive   Sentiment = "positive"
	SentimentNeutral    Sentiment = "neutral"
	SentimentNegative   Sentiment = "negative"
	SentimentFrustrated Sentiment = "frustrated"
	SentimentUrgent     Sentiment = "urgent"
)

const (
	SeverityLevelLow      SeverityLevel = "low"
	SeverityLevelMedium   SeverityLevel = "medium"
	SeverityLevelHigh     SeverityLevel = "high"
	SeverityLevelCritical SeverityLevel = "critical"
)

const (
	CategoryFreeLimits CategoryTag = "Free Limits"
	CategoryBilling    CategoryTag = "Billing"
	CategoryAccount    CategoryTag = "Account"
	CategoryBaaS       CategoryTag = "BaaS"
	CategoryConsole    CategoryTag = "Console"
	CategoryVercel     CategoryTag = "Vercel"
)

var (
	Sentiments     = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentFrustrated, SentimentUrgent}
	SeverityLevels = []SeverityLevel{SeverityLevelLow, SeverityLevelMedium, SeverityLevelHigh, SeverityLevelCritical}
	CategoryTags   = []CategoryTag{CategoryFreeLimits, CategoryBilling, CategoryAccount, CategoryBaaS, CategoryConsole, CategoryVercel}
)

func (s Sentiment) Valid() bool {
	for _, v := range Sentiments {
		if s == v {
			return true
		}
	}
	return false
}

func (l SeverityLevel) Valid() bool {
	for _, v := range SeverityLevels {
		if l == v {
			return true
		}
	}
	return false
}

func (c CategoryTag) Valid() bool {
	for _, v := range CategoryTags {
		if c == v {
			return true
		}
	}
	return false
}

// AnalysisResult is the structured classification of a single message.
type AnalysisResult struct {
	Sentiment       Sentiment     `json:"sentiment"`
	IsQuestion      bool          `json:"is_question"`
	IsAnswer        bool          `json:"is_answer"`
	NeedsHelp       bool          `json:"needs_help"`
	CategoryTags    []CategoryTag `json:"category_tags"`
	Summary         string        `json:"summary"`
	ConfidenceScore float64       `json:"confidence_score"` // 0..1
	SeverityScore   float64       `json:"severity_score"`   // 0..100
	SeverityLevel   SeverityLevel `json:"severity_level"`
	SeverityReason  string        `json:"severity_reason"`
	ModelVersion    string        `json:"model_version"`
}

// FallbackAnalysis is substituted whenever the analyzer cannot produce a valid
// result. It never qualifies for an alert.
func FallbackAnalysis(modelVersion, reason string) AnalysisResult {
	return AnalysisResult{
		Sentiment:       SentimentNeutral,
		CategoryTags:    []CategoryTag{},
		Summary:         "Analysis failed - unable to process message",
		ConfidenceScore: 0,
		SeverityScore:   0,
		SeverityLevel:   SeverityLevelLow,
		SeverityReason:  fmt.Sprintf("Unable to analyze due to error: %s", reason),
		ModelVersion:    modelVersion,
	}
}

// QAReference links an answer to the earlier question it addresses.
// A nil AnsweredMessageID is a valid outcome.
type QAReference struct {
	AnsweredMessageID *string `json:"answered_message_id"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
}

func NoQAReference() QAReference {
	return QAReference{}
}

// MessageAnalysis is a persisted analysis row. Scores are read back as
// fixed-point decimal text, e.g. "72.50".
type MessageAnalysis struct {
	ID                int64         `json:"id"`
	MessageKey        int64         `json:"message_key"`
	Sentiment         Sentiment     `json:"sentiment"`
	IsQuestion        bool          `json:"is_question"`
	IsAnswer          bool          `json:"is_answer"`
	AnsweredMessageID *string       `json:"answered_message_id,omitempty"`
	NeedsHelp         bool          `json:"needs_help"`
	CategoryTags      []CategoryTag `json:"category_tags"`
	Summary           string        `json:"ai_summary"`
	ConfidenceScore   *string       `json:"confidence_score,omitempty"`
	SeverityScore     *string       `json:"severity_score,omitempty"`
	SeverityLevel     SeverityLevel `json:"severity_level"`
	SeverityReason    *string       `json:"severity_reason,omitempty"`
	ModelVersion      string        `json:"model_version"`
	ProcessedAt       time.Time     `json:"processed_at"`
}

// ToResult rebuilds the classification from a stored row. Scores that are
// missing or unparsable read as zero.
func (a MessageAnalysis) ToResult() AnalysisResult {
	tags := a.CategoryTags
	if tags == nil {
		tags = []CategoryTag{}
	}
	result := AnalysisResult{
		Sentiment:       a.Sentiment,
		IsQuestion:      a.IsQuestion,
		IsAnswer:        a.IsAnswer,
		NeedsHelp:       a.NeedsHelp,
		CategoryTags:    tags,
		Summary:         a.Summary,
		ConfidenceScore: parseScore(a.ConfidenceScore),
		SeverityScore:   parseScore(a.SeverityScore),
		SeverityLevel:   a.SeverityLevel,
		ModelVersion:    a.ModelVersion,
	}
	if a.SeverityReason != nil {
		result.SeverityReason = *a.SeverityReason
	}
	return result
}

func parseScore(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0
	}
	return v
}

// EnrichmentResult is the outcome of one pipeline run.
type EnrichmentResult struct {
	MessageID         string         `json:"message_id"`
	Analysis          AnalysisResult `json:"analysis"`
	AnsweredMessageID *string        `json:"answered_message_id"`
	AnalysisID        int64          `json:"analysis_id"`
	Alerted           bool           `json:"alerted"`
	ProcessedAt       time.Time      `json:"processed_at"`
}
