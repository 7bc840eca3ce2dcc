package classifier

import "strings"

type keywordGroup struct {
	label    string
	keywords []string
}

// Evaluated in order; the first group with a hit wins.
var categoryGroups = []keywordGroup{
	{"Billing", []string{"billing", "refund", "invoice", "payment", "charged", "charge", "subscription", "receipt"}},
	{"Technical", []string{"error", "bug", "crash", "not working", "broken", "technical", "login", "log in", "password", "timeout", "outage"}},
	{"Complaint", []string{"complaint", "complain", "unhappy", "disappointed", "terrible", "worst", "unacceptable", "rude"}},
	{"Feature Request", []string{"feature", "enhancement", "would be nice", "would love", "suggestion", "please add"}},
	{"Question", []string{"question", "how do", "how to", "how can", "what is", "where is", "?"}},
}

var negativeKeywords = []string{
	"angry", "terrible", "worst", "disappointed", "frustrated", "unacceptable", "awful", "hate",
	"not happy", "unhappy", "annoyed", "furious", "useless", "bad", "poor",
}

var positiveKeywords = []string{
	"thank", "great", "love", "awesome", "excellent", "happy", "appreciate", "amazing", "perfect", "good job",
}

var tagGroups = []keywordGroup{
	{"billing", []string{"payment", "billing", "invoice", "refund"}},
	{"auth", []string{"login", "password", "signup", "authenticate", "authentication"}},
	{"bug", []string{"error", "exception", "crash", "bug", "fails"}},
	{"feature", []string{"feature", "request", "enhancement"}},
	{"performance", []string{"slow", "lag", "timeout", "performance"}},
}

const (
	fallbackConfidence   = 0.4
	fallbackSummaryRunes = 150
)

// Fallback classifies by keyword matching alone. It is deterministic and never fails.
func Fallback(title, body string) Result {
	text := strings.ToLower(title + " " + body)

	category := "General"
	for _, g := range categoryGroups {
		if containsAny(text, g.keywords) {
			category = g.label
			break
		}
	}

	sentiment := "neutral"
	switch {
	case containsAny(text, negativeKeywords):
		sentiment = "negative"
	case containsAny(text, positiveKeywords):
		sentiment = "positive"
	}

	tags := []string{}
	for _, g := range tagGroups {
		if containsAny(text, g.keywords) {
			tags = append(tags, g.label)
		}
	}

	return Result{
		Category:   category,
		Tags:       tags,
		Sentiment:  sentiment,
		Summary:    fallbackSummary(title, body),
		Confidence: fallbackConfidence,
		Strategy:   StrategyFallback,
	}
}

func fallbackSummary(title, body string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	runes := []rune(strings.TrimSpace(body))
	if len(runes) > fallbackSummaryRunes {
		runes = runes[:fallbackSummaryRunes]
	}
	return string(runes)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
