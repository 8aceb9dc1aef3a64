package example

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
)

type SeverityLevel string

const (
	SeverityLevelCritical SeverityLevel = "critical"
)

type CategoryTag string

const (
	CategoryBug CategoryTag = "Bug"
)

type RunStatus string

const (
	RunStatusFailed RunStatus = "failed"
)

type Analysis struct {
	Sentiment     Sentiment
	SeverityLevel SeverityLevel
	CategoryTags  []CategoryTag
	Summary       string
}

type Run struct {
	Status RunStatus
}

func bad() {
	a := &Analysis{}
	a.Sentiment = "happy" // want "enum field Sentiment assigned string literal"

	r := &Run{}
	r.Status = "failed" // want "enum field Status assigned string literal"

	_ = Analysis{SeverityLevel: "critical"} // want "enum field SeverityLevel assigned string literal"

	_ = []CategoryTag{"Bug"} // want "enum element assigned string literal"
}

func good() {
	a := &Analysis{}
	a.Sentiment = SentimentPositive // OK: using constant
	a.Summary = "free text"         // OK: not an enum

	r := &Run{}
	r.Status = RunStatusFailed // OK: using constant

	_ = Analysis{SeverityLevel: SeverityLevelCritical, CategoryTags: []CategoryTag{CategoryBug}}
}

func alsoGood() {
	// OK: Variable, not literal
	sentiment := SentimentNeutral
	a := &Analysis{Sentiment: sentiment}
	_ = a
}
