package brain

import (
	"github.com/invopop/jsonschema"

	"situationcord.app/relay/internal/model"
)

// Schema-facing enum types. Their JSONSchema methods keep the generated enums
// in lockstep with the model package.
type (
	sentimentValue     string
	severityLevelValue string
	categoryTagValue   string
)

func (sentimentValue) JSONSchema() *jsonschema.Schema {
	return stringEnum(model.Sentiments)
}

func (severityLevelValue) JSONSchema() *jsonschema.Schema {
	return stringEnum(model.SeverityLevels)
}

func (categoryTagValue) JSONSchema() *jsonschema.Schema {
	return stringEnum(model.CategoryTags)
}

func stringEnum[T ~string](values []T) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = string(v)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
