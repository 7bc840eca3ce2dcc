package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydesk/backend/internal/classifier"
	"github.com/querydesk/backend/internal/db"
	"github.com/querydesk/backend/internal/models"
	"github.com/querydesk/backend/internal/service"
)

const (
	imapUser     = "username"
	imapPassword = "password"
)

// lockedBackend serializes access to the in-memory mailboxes, which are shared by every
// connection, and lets the test push unilateral mailbox updates.
type lockedBackend struct {
	mem     *memory.Backend
	mu      sync.Mutex
	updates chan backend.Update
}

func (b *lockedBackend) Login(info *imap.ConnInfo, username, password string) (backend.User, error) {
	u, err := b.mem.Login(info, username, password)
	if err != nil {
		return nil, err
	}
	return &lockedUser{User: u, mu: &b.mu}, nil
}

func (b *lockedBackend) Updates() <-chan backend.Update {
	return b.updates
}

type lockedUser struct {
	backend.User
	mu *sync.Mutex
}

func (u *lockedUser) GetMailbox(name string) (backend.Mailbox, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	mbox, err := u.User.GetMailbox(name)
	if err != nil {
		return nil, err
	}
	return &lockedMailbox{Mailbox: mbox, mu: u.mu}, nil
}

type lockedMailbox struct {
	backend.Mailbox
	mu *sync.Mutex
}

func (m *lockedMailbox) Info() (*imap.MailboxInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mailbox.Info()
}

func (m *lockedMailbox) Status(items []imap.StatusItem) (*imap.MailboxStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mailbox.Status(items)
}

func (m *lockedMailbox) ListMessages(uid bool, seqset *imap.SeqSet, items []imap.FetchItem, ch chan<- *imap.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mailbox.ListMessages(uid, seqset, items, ch)
}

func (m *lockedMailbox) SearchMessages(uid bool, criteria *imap.SearchCriteria) ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mailbox.SearchMessages(uid, criteria)
}

func (m *lockedMailbox) CreateMessage(flags []string, date time.Time, body imap.Literal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mailbox.CreateMessage(flags, date, body)
}

func (m *lockedMailbox) UpdateMessagesFlags(uid bool, seqset *imap.SeqSet, op imap.FlagsOp, flags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mailbox.UpdateMessagesFlags(uid, seqset, op, flags)
}

// queryStore is an in-memory pipeline store. Inserts whose title is failTitle fail.
type queryStore struct {
	mu        sync.Mutex
	byMessage map[string]*models.Query
	titles    []string
	failTitle string
}

func newQueryStore() *queryStore {
	return &queryStore{byMessage: map[string]*models.Query{}}
}

func (s *queryStore) InsertQuery(_ context.Context, q *models.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTitle != "" && q.Title == s.failTitle {
		return errors.New("connection reset by peer")
	}
	if q.MessageID != nil {
		if _, ok := s.byMessage[*q.MessageID]; ok {
			return db.ErrDuplicateMessageID
		}
		s.byMessage[*q.MessageID] = q
	}
	s.titles = append(s.titles, q.Title)
	return nil
}

func (s *queryStore) FindQueryByMessageID(_ context.Context, messageID string) (*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byMessage[messageID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return q, nil
}

func (s *queryStore) UpdateQuery(_ context.Context, id string, _ models.QueryPatch) (*models.Query, error) {
	return nil, db.ErrNotFound
}

func (s *queryStore) storedTitles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.titles...)
	sort.Strings(out)
	return out
}

func newPipeline(store *queryStore) *service.Pipeline {
	return &service.Pipeline{
		Queries:    store,
		Classifier: classifier.New(nil),
		Policy:     service.Policy{models.SourceEmail: service.ModeSync},
		Logger:     zerolog.Nop(),
	}
}

func startIMAP(t *testing.T) (*lockedBackend, string) {
	t.Helper()
	be := &lockedBackend{mem: memory.New(), updates: make(chan backend.Update, 1)}
	s := server.New(be)
	s.AllowInsecureAuth = true
	s.ErrorLog = log.New(io.Discard, "", 0)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })
	return be, l.Addr().String()
}

func dialIMAP(t *testing.T, addr string) *client.Client {
	t.Helper()
	c, err := client.Dial(addr)
	require.NoError(t, err)
	require.NoError(t, c.Login(imapUser, imapPassword))
	_, err = c.Select("INBOX", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Logout() })
	return c
}

func appendMail(t *testing.T, c *client.Client, subject, messageID string) {
	t.Helper()
	raw := "From: Customer <customer@example.com>\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Mon, 02 Mar 2026 10:00:00 +0000\r\n"
	if messageID != "" {
		raw += "Message-Id: <" + messageID + ">\r\n"
	}
	raw += "Content-Type: text/plain\r\n\r\nplease help with " + subject + "\r\n"
	require.NoError(t, c.Append("INBOX", nil, time.Time{}, bytes.NewBufferString(raw)))
}

func unseenSubjects(c *client.Client) ([]string, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil || len(uids) == 0 {
		return nil, err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	ch := make(chan *imap.Message, len(uids))
	if err := c.UidFetch(seqset, []imap.FetchItem{imap.FetchEnvelope}, ch); err != nil {
		return nil, err
	}
	var out []string
	for m := range ch {
		out = append(out, m.Envelope.Subject)
	}
	sort.Strings(out)
	return out, nil
}

func TestRunMarksHandledMessagesSeen(t *testing.T) {
	be, addr := startIMAP(t)
	setup := dialIMAP(t, addr)
	appendMail(t, setup, "ok", "ok@example.com")
	appendMail(t, setup, "duplicate", "dup@example.com")
	appendMail(t, setup, "store down", "fail@example.com")
	appendMail(t, setup, "no id", "")

	store := newQueryStore()
	store.failTitle = "store down"
	store.byMessage["dup@example.com"] = &models.Query{ID: "existing"}

	r := NewReader(Config{Addr: addr, Username: imapUser, Password: imapPassword}, newPipeline(store), nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		s, err := unseenSubjects(setup)
		return err == nil && len(s) == 1 && s[0] == "store down"
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"ok"}, store.storedTitles())

	// A mailbox update makes the reader pick up new mail and retry what failed.
	store.mu.Lock()
	store.failTitle = ""
	store.mu.Unlock()
	appendMail(t, setup, "late", "late@example.com")
	status := imap.NewMailboxStatus("INBOX", []imap.StatusItem{imap.StatusMessages})
	status.Messages = 6
	be.updates <- &backend.MailboxUpdate{Update: backend.NewUpdate(imapUser, "INBOX"), MailboxStatus: status}

	require.Eventually(t, func() bool {
		s, err := unseenSubjects(setup)
		return err == nil && len(s) == 0
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"late", "ok", "store down"}, store.storedTitles())

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not stop after cancel")
	}
}

func TestRunFailsOnBadCredentials(t *testing.T) {
	_, addr := startIMAP(t)
	r := NewReader(Config{Addr: addr, Username: imapUser, Password: "wrong"}, newPipeline(newQueryStore()), nil, zerolog.Nop())
	assert.Error(t, r.Run(context.Background()))
}

func TestHandleRawTruncatesLongSubject(t *testing.T) {
	store := newQueryStore()
	r := NewReader(Config{}, newPipeline(store), nil, zerolog.Nop())
	subject := ""
	for i := 0; i < 30; i++ {
		subject += "refund ää " // 10 runes
	}
	raw := crlf("From: someone@example.com\nMessage-Id: <long@example.com>\nSubject: " + subject + "\n\nbody\n")

	require.NoError(t, r.HandleRaw(context.Background(), raw))
	titles := store.storedTitles()
	require.Len(t, titles, 1)
	assert.LessOrEqual(t, len([]rune(titles[0])), models.MaxTitleLength)
	assert.Contains(t, titles[0], "refund ää refund")
}
