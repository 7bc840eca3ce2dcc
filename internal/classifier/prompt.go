package classifier

import (
	"fmt"
	"strings"
)

var Categories = []string{"Billing", "Technical", "Complaint", "Feedback", "Feature Request", "Question", "General"}

var Sentiments = []string{"positive", "neutral", "negative", "very_negative"}

func buildPrompt(title, body string) string {
	return fmt.Sprintf(`You are a support triage assistant. Classify the customer message below.

Return ONLY a JSON object, no prose, with exactly these keys:
{"category": string, "tags": [string], "sentiment": string, "summary": string, "confidence": number}

Rules:
- category is one of: %s
- sentiment is one of: %s
- tags are 1 to 5 short lowercase keywords
- summary is one sentence, at most 25 words
- confidence is between 0 and 1

Title: %s
Body: %s`,
		strings.Join(Categories, ", "),
		strings.Join(Sentiments, ", "),
		title,
		body,
	)
}
