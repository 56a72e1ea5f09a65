package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/roi-bridge/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseSuggestion parses the JSON answer of a model. Anything it cannot
// read becomes a suggestion without regions whose description says why.
func ParseSuggestion(raw string) *types.Suggestion {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return &types.Suggestion{Description: "model returned non-JSON response"}
	}

	var s types.Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return &types.Suggestion{Description: "failed to parse model response"}
	}
	return &s
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
