// Package mail ingests customer email from an IMAP mailbox.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

const (
	defaultSender  = "Unknown Sender"
	defaultSubject = "No Subject"
	defaultBody    = "No Content"
	fetchBuffer    = 16
)

var errConnectionClosed = errors.New("imap connection closed")

type Ingester interface {
	Ingest(ctx context.Context, raw service.RawMessage) (service.IngestResult, error)
}

// Archiver stores the raw MIME source of ingested mail.
type Archiver interface {
	Put(ctx context.Context, messageID string, raw []byte) error
}

type Config struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	TLS      bool
}

type Reader struct {
	cfg      Config
	ingester Ingester
	archiver Archiver
	logger   zerolog.Logger
	now      func() time.Time
}

func NewReader(cfg Config, ingester Ingester, archiver Archiver, logger zerolog.Logger) *Reader {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Reader{
		cfg:      cfg,
		ingester: ingester,
		archiver: archiver,
		logger:   logger.With().Str("component", "mail").Str("mailbox", cfg.Mailbox).Logger(),
		now:      time.Now,
	}
}

// Run connects, drains the unread backlog, then waits for new-mail notifications until ctx is done.
// It does not reconnect: any connection error ends ingestion and is returned to the caller.
func (r *Reader) Run(ctx context.Context) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()

	updates := make(chan client.Update, fetchBuffer)
	notify := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)
	c.Updates = updates
	go func() {
		for {
			select {
			case u := <-updates:
				if _, ok := u.(*client.MailboxUpdate); ok {
					select {
					case notify <- struct{}{}:
					default:
					}
				}
			case <-done:
				return
			}
		}
	}()

	r.logger.Info().Str("addr", r.cfg.Addr).Msg("mail reader connected")
	if err := r.processUnseen(ctx, c); err != nil {
		return err
	}

	for {
		stop := make(chan struct{})
		idleDone := make(chan error, 1)
		go func() { idleDone <- c.Idle(stop, nil) }()

		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			r.logger.Info().Msg("mail reader stopped")
			return nil
		case <-notify:
			close(stop)
			if err := <-idleDone; err != nil {
				return fmt.Errorf("idle: %w", err)
			}
			if err := r.processUnseen(ctx, c); err != nil {
				return err
			}
		case err := <-idleDone:
			if err != nil {
				return fmt.Errorf("idle: %w", err)
			}
			return errConnectionClosed
		}
	}
}

func (r *Reader) connect() (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	if r.cfg.TLS {
		c, err = client.DialTLS(r.cfg.Addr, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		c, err = client.Dial(r.cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.cfg.Addr, err)
	}
	if err := c.Login(r.cfg.Username, r.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("login: %w", err)
	}
	if _, err := c.Select(r.cfg.Mailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("select %s: %w", r.cfg.Mailbox, err)
	}
	return c, nil
}

type fetched struct {
	uid uint32
	raw []byte
}

// processUnseen fetches every unread message without setting \Seen, hands each to the pipeline,
// then flags the ones that were handled. Messages that failed to persist stay unread.
func (r *Reader) processUnseen(ctx context.Context, c *client.Client) error {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}
	r.logger.Info().Int("count", len(uids)).Msg("processing unread messages")

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	ch := make(chan *imap.Message, fetchBuffer)
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- c.UidFetch(seqset, items, ch) }()

	var batch []fetched
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			r.logger.Warn().Uint32("uid", msg.Uid).Msg("server returned no body")
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			r.logger.Warn().Err(err).Uint32("uid", msg.Uid).Msg("failed to read message body")
			continue
		}
		batch = append(batch, fetched{uid: msg.Uid, raw: raw})
	}
	if err := <-fetchDone; err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	seen := new(imap.SeqSet)
	for _, m := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := r.HandleRaw(ctx, m.raw); err != nil {
			var verr *service.ValidationError
			if !errors.As(err, &verr) {
				r.logger.Error().Err(err).Uint32("uid", m.uid).Msg("failed to ingest message")
				continue
			}
			r.logger.Warn().Err(err).Uint32("uid", m.uid).Msg("dropping malformed message")
		}
		seen.AddNum(m.uid)
	}
	if seen.Empty() {
		return nil
	}
	flags := []interface{}{imap.SeenFlag}
	if err := c.UidStore(seen, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// HandleRaw parses one MIME message and ingests it. Duplicates are not errors.
func (r *Reader) HandleRaw(ctx context.Context, raw []byte) error {
	msg, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return &service.ValidationError{Field: "mime", Message: err.Error()}
	}

	subject := truncateRunes(msg.Subject, models.MaxTitleLength)
	if subject == "" {
		subject = defaultSubject
	}
	received := msg.Date
	if received.IsZero() {
		received = r.now()
	}
	from := msg.From
	if from == "" {
		from = defaultSender
	}
	body := msg.Body
	if body == "" {
		body = defaultBody
	}
	in := service.RawMessage{
		Source:     models.SourceEmail,
		Sender:     &from,
		Title:      subject,
		Body:       body,
		ReceivedAt: received,
		Channel:    string(models.SourceEmail),
	}
	if msg.MessageID != "" {
		id := msg.MessageID
		in.MessageID = &id
	}

	res, err := r.ingester.Ingest(ctx, in)
	if err != nil {
		return err
	}
	if res.Skipped {
		return nil
	}
	r.logger.Info().Str("message_id", msg.MessageID).Str("query_id", res.Query.ID).Msg("email ingested")

	if r.archiver != nil {
		if err := r.archiver.Put(ctx, msg.MessageID, raw); err != nil {
			r.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("failed to archive raw message")
		}
	}
	return nil
}
