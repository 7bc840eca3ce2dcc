package mail

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

const maxBodyBytes = 1 << 20

// Message is the subset of an RFC 5322 message the pipeline needs.
type Message struct {
	MessageID string
	From      string
	Subject   string
	Body      string
	Date      time.Time
}

// Parse reads a raw MIME message. The body is the first text/plain part; if the message has
// none, the first text/html part is used with tags stripped.
func Parse(r io.Reader) (*Message, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = strings.TrimSpace(id)
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = formatAddress(from[0])
	} else {
		msg.From = strings.TrimSpace(mr.Header.Get("From"))
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}

	var html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("read part: %w", err)
		}
		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		b, err := io.ReadAll(io.LimitReader(part.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		switch ct {
		case "text/plain", "":
			if msg.Body == "" {
				msg.Body = strings.TrimSpace(string(b))
			}
		case "text/html":
			if html == "" {
				html = string(b)
			}
		}
	}
	if msg.Body == "" && html != "" {
		msg.Body = stripHTML(html)
	}
	return msg, nil
}

// stripHTML drops tags and collapses whitespace. Good enough for triage text.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// formatAddress renders "Name <addr>" with the display name decoded, or the bare address.
func formatAddress(a *gomail.Address) string {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", name, a.Address)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
