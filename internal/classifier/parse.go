package classifier

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

const defaultConfidence = 0.6

var errNoJSON = errors.New("no json object in model output")

// extractJSON parses the span between the first '{' and the last '}'. When the strict parse fails it
// retries once with single quotes swapped for double quotes.
func extractJSON(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSON
	}
	candidate := text[start : end+1]

	var strict map[string]any
	if err := json.Unmarshal([]byte(candidate), &strict); err == nil {
		return strict, nil
	}

	var repaired map[string]any
	if err := json.Unmarshal([]byte(strings.ReplaceAll(candidate, "'", `"`)), &repaired); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return repaired, nil
}

func sanitize(raw map[string]any) Result {
	res := Result{
		Category:   "General",
		Sentiment:  "neutral",
		Tags:       []string{},
		Confidence: defaultConfidence,
	}
	if s, ok := raw["category"].(string); ok && strings.TrimSpace(s) != "" {
		res.Category = canonicalCategory(s)
	}
	if s, ok := raw["sentiment"].(string); ok {
		res.Sentiment = normalizeSentiment(s)
	}
	if s, ok := raw["summary"].(string); ok {
		res.Summary = strings.TrimSpace(s)
	}
	if c, ok := numeric(raw["confidence"]); ok {
		res.Confidence = math.Max(0, math.Min(1, c))
	}
	res.Tags = normalizeTags(raw["tags"])
	return res
}

func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func canonicalCategory(s string) string {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(c, s) {
			return c
		}
	}
	return s
}

func normalizeSentiment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for _, known := range Sentiments {
		if s == known {
			return s
		}
	}
	return "neutral"
}

func normalizeTags(v any) []string {
	var items []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	case []string:
		items = t
	case string:
		items = strings.Split(t, ",")
	}
	return dedupeLower(items)
}

func dedupeLower(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		tag := strings.ToLower(strings.TrimSpace(item))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
