package llm_test

import (
	"encoding/json"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"situationcord.app/relay/common/llm"
)

type verdict struct {
	Label string  `json:"label" jsonschema:"enum=yes,enum=no"`
	Score float64 `json:"score" jsonschema:"minimum=0,maximum=1"`
}

func (v *verdict) Validate() error {
	if v.Label != "yes" && v.Label != "no" {
		return errors.New("label must be yes or no")
	}
	return nil
}

var _ = Describe("SanitizeName", func() {
	DescribeTable("sanitizes usernames for OpenAI name parameter",
		func(input, expected string) {
			Expect(llm.SanitizeName(input)).To(Equal(expected))
		},
		Entry("valid name unchanged", "alice", "alice"),
		Entry("dots replaced with underscore", "alice.smith", "alice_smith"),
		Entry("hyphens preserved", "alice-dev", "alice-dev"),
		Entry("spaces replaced", "Neon Fan", "Neon_Fan"),
		Entry("emoji replaced", "dev🚀", "dev_"),
		Entry("long name truncated to 64 chars", strings.Repeat("a", 100), strings.Repeat("a", 64)),
		Entry("empty string unchanged", "", ""),
	)
})

var _ = Describe("Decode", func() {
	It("unmarshals and validates a conforming object", func() {
		var v verdict
		Expect(llm.Decode(`{"label":"yes","score":0.4}`, &v)).To(Succeed())
		Expect(v.Label).To(Equal("yes"))
		Expect(v.Score).To(Equal(0.4))
	})

	It("reports malformed JSON", func() {
		var v verdict
		err := llm.Decode(`{"label":`, &v)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, llm.ErrInvalidOutput)).To(BeFalse())
	})

	It("reports validation failures as invalid output", func() {
		var v verdict
		err := llm.Decode(`{"label":"maybe","score":0.4}`, &v)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, llm.ErrInvalidOutput)).To(BeTrue())
	})

	It("skips validation for plain targets", func() {
		var m map[string]any
		Expect(llm.Decode(`{"anything":1}`, &m)).To(Succeed())
	})
})

var _ = Describe("GenerateSchema", func() {
	It("inlines enums and ranges without references", func() {
		data, err := json.Marshal(llm.GenerateSchema[verdict]())
		Expect(err).NotTo(HaveOccurred())

		var schema map[string]any
		Expect(json.Unmarshal(data, &schema)).To(Succeed())
		Expect(schema).NotTo(HaveKey("$ref"))
		Expect(schema["additionalProperties"]).To(BeFalse())

		props := schema["properties"].(map[string]any)
		label := props["label"].(map[string]any)
		Expect(label["enum"]).To(ConsistOf("yes", "no"))
		score := props["score"].(map[string]any)
		Expect(score["maximum"]).To(BeNumerically("==", 1))
	})
})
