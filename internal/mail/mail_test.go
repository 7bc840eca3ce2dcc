package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

var multipartMessage = crlf(`From: Jane Doe <jane@example.com>
To: support@example.com
Subject: Refund for order 1234
Date: Mon, 02 Mar 2026 10:15:00 +0000
Message-Id: <abc123@mail.example.com>
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="XYZ"

--XYZ
Content-Type: text/plain; charset=utf-8

I was charged twice, please refund.
--XYZ
Content-Type: text/html; charset=utf-8

<p>I was charged <b>twice</b>, please refund.</p>
--XYZ--
`)

var htmlOnlyMessage = crlf(`From: bob@example.com
Subject: Login
Message-Id: <html-only@example.com>
Content-Type: text/html; charset=utf-8

<div>Cannot <i>log in</i></div>
`)

func TestParseMultipart(t *testing.T) {
	msg, err := Parse(strings.NewReader(string(multipartMessage)))
	require.NoError(t, err)
	assert.Equal(t, "abc123@mail.example.com", msg.MessageID)
	assert.Equal(t, "Jane Doe <jane@example.com>", msg.From)
	assert.Equal(t, "Refund for order 1234", msg.Subject)
	assert.Equal(t, "I was charged twice, please refund.", msg.Body)
	assert.True(t, msg.Date.Equal(time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)))
}

func TestParseHTMLOnly(t *testing.T) {
	msg, err := Parse(strings.NewReader(string(htmlOnlyMessage)))
	require.NoError(t, err)
	assert.Equal(t, "Cannot log in", msg.Body)
	assert.Equal(t, "bob@example.com", msg.From)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a b c", stripHTML("<p>a</p>\n<br/>b   <span>c</span>"))
}

type fakeIngester struct {
	got []service.RawMessage
	res service.IngestResult
	err error
}

func (f *fakeIngester) Ingest(_ context.Context, raw service.RawMessage) (service.IngestResult, error) {
	f.got = append(f.got, raw)
	return f.res, f.err
}

type fakeArchiver struct {
	keys []string
}

func (f *fakeArchiver) Put(_ context.Context, messageID string, _ []byte) error {
	f.keys = append(f.keys, messageID)
	return nil
}

func TestHandleRawIngestsAndArchives(t *testing.T) {
	ing := &fakeIngester{res: service.IngestResult{Query: &models.Query{ID: "q1"}}}
	arc := &fakeArchiver{}
	r := NewReader(Config{Addr: "imap.example.com:993"}, ing, arc, zerolog.Nop())

	require.NoError(t, r.HandleRaw(context.Background(), multipartMessage))
	require.Len(t, ing.got, 1)
	in := ing.got[0]
	assert.Equal(t, models.SourceEmail, in.Source)
	assert.Equal(t, "Refund for order 1234", in.Title)
	require.NotNil(t, in.MessageID)
	assert.Equal(t, "abc123@mail.example.com", *in.MessageID)
	require.NotNil(t, in.Sender)
	assert.Equal(t, "Jane Doe <jane@example.com>", *in.Sender)
	assert.Equal(t, []string{"abc123@mail.example.com"}, arc.keys)
}

func TestHandleRawSkippedIsNotArchived(t *testing.T) {
	ing := &fakeIngester{res: service.IngestResult{Skipped: true}}
	arc := &fakeArchiver{}
	r := NewReader(Config{}, ing, arc, zerolog.Nop())

	require.NoError(t, r.HandleRaw(context.Background(), multipartMessage))
	assert.Empty(t, arc.keys)
}

func TestHandleRawDefaultsSubjectAndDate(t *testing.T) {
	raw := crlf(`From: someone@example.com
Message-Id: <x@example.com>

hello
`)
	ing := &fakeIngester{res: service.IngestResult{Query: &models.Query{ID: "q1"}}}
	r := NewReader(Config{}, ing, nil, zerolog.Nop())
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	require.NoError(t, r.HandleRaw(context.Background(), raw))
	assert.Equal(t, defaultSubject, ing.got[0].Title)
	assert.Equal(t, "hello", ing.got[0].Body)
	assert.Equal(t, "someone@example.com", *ing.got[0].Sender)
	assert.Equal(t, fixed, ing.got[0].ReceivedAt)
}

func TestHandleRawMissingMessageIDIsMalformed(t *testing.T) {
	raw := crlf(`From: someone@example.com
Subject: hi

hello
`)
	ing := &fakeIngester{err: &service.ValidationError{Field: "message_id", Message: "email without Message-Id"}}
	r := NewReader(Config{}, ing, nil, zerolog.Nop())

	err := r.HandleRaw(context.Background(), raw)
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, ing.got[0].MessageID)
	assert.Equal(t, "someone@example.com", *ing.got[0].Sender)
}

func TestHandleRawPropagatesStoreFailure(t *testing.T) {
	ing := &fakeIngester{err: errors.New("db unavailable")}
	r := NewReader(Config{}, ing, nil, zerolog.Nop())
	assert.Error(t, r.HandleRaw(context.Background(), multipartMessage))
}
