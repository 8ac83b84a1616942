package classifier

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// fallbackKeywords are searched in order when the model ignores the JSON format.
var fallbackKeywords = []string{"plastic", "paper", "metal", "glass", "organic"}

// ParseReply extracts category, confidence and reasoning from a model reply.
//
// A JSON object anywhere in the text wins. Without one, the first known
// material mentioned is used with confidence 0.7. Anything else is Other.
func ParseReply(text string) (category string, confidence float64, reasoning string) {
	if block := jsonBlock.FindString(text); block != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(block), &raw); err != nil {
			return "Other", 0.3, "Parse failed"
		}
		category = "Other"
		if s, ok := raw["class"].(string); ok && strings.TrimSpace(s) != "" {
			category = titleCase(strings.TrimSpace(s))
		}
		confidence = clamp01(number(raw["confidence"], 0.5))
		if s, ok := raw["reasoning"].(string); ok {
			reasoning = s
		}
		return category, confidence, reasoning
	}

	lower := strings.ToLower(text)
	for _, kw := range fallbackKeywords {
		if strings.Contains(lower, kw) {
			return titleCase(kw), 0.7, "Detected " + kw
		}
	}
	return "Other", 0.5, "Unclear"
}

// number accepts JSON numbers and numeric strings.
func number(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return fallback
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

// round2 rounds to two decimal places.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
