package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const FallbackReply = "Thank you for reaching out. We have received your request and a member of our " +
	"support team will get back to you shortly."

// Assistant drafts acknowledgement replies for inbound queries.
type Assistant struct {
	Completer Completer
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Reply never fails; without a working model it returns FallbackReply.
func (a Assistant) Reply(ctx context.Context, title, body string, tags []string) string {
	if a.Completer == nil {
		return FallbackReply
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := a.Completer.Complete(ctx, replyPrompt(title, body, tags))
	if err != nil {
		a.Logger.Warn().Err(err).Str("provider", a.Completer.Name()).Msg("reply generation failed, using fallback")
		return FallbackReply
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackReply
	}
	return text
}

func replyPrompt(title, body string, tags []string) string {
	tagLine := "none"
	if len(tags) > 0 {
		tagLine = strings.Join(tags, ", ")
	}
	return fmt.Sprintf(`You are a polite customer support agent. Write a short acknowledgement reply
(3 to 5 sentences) to the customer message below. Confirm the request was received, restate the issue
in one sentence and say what happens next. Do not promise refunds or dates. Plain text only.

Title: %s
Tags: %s
Message:
%s`, title, tagLine, body)
}
