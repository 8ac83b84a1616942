package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		category   string
		confidence float64
		reasoning  string
	}{
		{"json", `{"class": "plastic", "confidence": 0.95, "reasoning": "bottle"}`, "Plastic", 0.95, "bottle"},
		{"json in prose", "Sure!\n```json\n{\"class\":\"METAL\",\"confidence\":0.8}\n```", "Metal", 0.8, ""},
		{"string confidence", `{"class":"Glass","confidence":"0.61"}`, "Glass", 0.61, ""},
		{"missing fields", `{}`, "Other", 0.5, ""},
		{"clamped", `{"class":"Paper","confidence":7}`, "Paper", 1, ""},
		{"broken json", `{"class": "Paper",}`, "Other", 0.3, "Parse failed"},
		{"keyword", "This looks like crumpled paper and some plastic", "Plastic", 0.7, "Detected plastic"},
		{"keyword order", "a glass jar with a metal lid", "Metal", 0.7, "Detected metal"},
		{"nothing", "I cannot tell.", "Other", 0.5, "Unclear"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat, conf, reason := ParseReply(tc.text)
			assert.Equal(t, tc.category, cat)
			assert.InDelta(t, tc.confidence, conf, 1e-9)
			assert.Equal(t, tc.reasoning, reason)
		})
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Plastic", titleCase("pLASTIC"))
	assert.Equal(t, "Non-Recyclable Item", titleCase("non-recyclable item"))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, baseDelay, CalculateBackoff(-1))
	assert.Equal(t, baseDelay, CalculateBackoff(0))
	assert.Equal(t, 2*baseDelay, CalculateBackoff(1))
	assert.Equal(t, 8*baseDelay, CalculateBackoff(3))
	assert.Equal(t, maxDelay, CalculateBackoff(10))
	assert.Equal(t, maxDelay, CalculateBackoff(100))
	assert.LessOrEqual(t, CalculateBackoff(4), 10*time.Second)
}
