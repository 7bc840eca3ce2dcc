package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/querydesk/backend/internal/classifier"
	"github.com/querydesk/backend/internal/db"
	"github.com/querydesk/backend/internal/models"
)

type QueryStore interface {
	InsertQuery(ctx context.Context, q *models.Query) error
	FindQueryByMessageID(ctx context.Context, messageID string) (*models.Query, error)
	UpdateQuery(ctx context.Context, id string, patch models.QueryPatch) (*models.Query, error)
}

type Classifier interface {
	Classify(ctx context.Context, title, body string) classifier.Result
}

// Mode decides when enrichment happens relative to the first write.
type Mode string

const (
	// ModeSync enriches before the single insert; readers never see a placeholder record.
	ModeSync Mode = "sync"
	// ModeAsync inserts placeholders first and patches enrichment in from a background worker.
	ModeAsync Mode = "async"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSync:
		return ModeSync, nil
	case ModeAsync:
		return ModeAsync, nil
	}
	return "", fmt.Errorf("unknown enrichment mode %q", s)
}

// Policy maps each channel to its enrichment mode.
type Policy map[models.Source]Mode

func DefaultPolicy() Policy {
	return Policy{
		models.SourceManual:   ModeSync,
		models.SourceEmail:    ModeAsync,
		models.SourceWhatsApp: ModeAsync,
	}
}

func (p Policy) ModeFor(src models.Source) Mode {
	if m, ok := p[src]; ok {
		return m
	}
	return ModeSync
}

type RawMessage struct {
	Source     models.Source
	Sender     *string
	Title      string
	Body       string
	MessageID  *string
	Channel    string
	ReceivedAt time.Time
	UserID     *string
}

type IngestResult struct {
	Query   *models.Query
	Skipped bool
}

type EnrichJob struct {
	QueryID string
	Source  models.Source
	Title   string
	Body    string
}

// Dispatcher runs async enrichment jobs.
type Dispatcher interface {
	Submit(job EnrichJob)
}

type Pipeline struct {
	Queries    QueryStore
	Classifier Classifier
	Selector   *Selector
	Policy     Policy
	Dispatcher Dispatcher
	Logger     zerolog.Logger

	// AsyncTimeout bounds background enrichment when no Dispatcher is set.
	AsyncTimeout time.Duration
	Now          func() time.Time
	NewID        func() string
}

type Enrichment struct {
	Result     classifier.Result
	Priority   models.Priority
	AssignedTo *string
}

// Patch touches only the enrichment columns. A nil assignment leaves assigned_to alone.
func (e Enrichment) Patch() models.QueryPatch {
	tags := e.Result.Tags
	if tags == nil {
		tags = []string{}
	}
	category := e.Result.Category
	sentiment := e.Result.Sentiment
	summary := e.Result.Summary
	priority := e.Priority
	return models.QueryPatch{
		Tags:       &tags,
		Category:   &category,
		Sentiment:  &sentiment,
		Summary:    &summary,
		Priority:   &priority,
		AssignedTo: e.AssignedTo,
	}
}

func (e Enrichment) apply(q *models.Query) {
	q.Tags = e.Result.Tags
	if q.Tags == nil {
		q.Tags = []string{}
	}
	category, sentiment, summary := e.Result.Category, e.Result.Sentiment, e.Result.Summary
	q.Category = &category
	q.Sentiment = &sentiment
	q.Summary = &summary
	q.Priority = e.Priority
	q.AssignedTo = e.AssignedTo
}

func (raw RawMessage) validate() error {
	if !raw.Source.Valid() {
		return &ValidationError{Field: "source", Message: "unknown source"}
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if len([]rune(title)) > models.MaxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", models.MaxTitleLength)}
	}
	switch raw.Source {
	case models.SourceManual:
		if strings.TrimSpace(raw.Body) == "" {
			return &ValidationError{Field: "body", Message: "body is required"}
		}
	case models.SourceEmail:
		if raw.MessageID == nil || strings.TrimSpace(*raw.MessageID) == "" {
			return &ValidationError{Field: "message_id", Message: "email without Message-Id"}
		}
	}
	return nil
}

// Ingest stores one inbound message. Email and WhatsApp messages whose upstream id is already stored
// are skipped, not reported as errors. A returned error means nothing was persisted.
func (p *Pipeline) Ingest(ctx context.Context, raw RawMessage) (IngestResult, error) {
	if err := raw.validate(); err != nil {
		return IngestResult{}, err
	}
	logger := p.Logger.With().Str("source", string(raw.Source)).Logger()

	key := raw.dedupKey()
	if key != "" {
		existing, err := p.Queries.FindQueryByMessageID(ctx, key)
		switch {
		case err == nil:
			logger.Info().Str("message_id", key).Str("query_id", existing.ID).Msg("duplicate message skipped")
			return IngestResult{Query: existing, Skipped: true}, nil
		case !errors.Is(err, db.ErrNotFound):
			return IngestResult{}, fmt.Errorf("dedup lookup: %w", err)
		}
	}

	q := p.newRecord(raw)
	mode := p.Policy.ModeFor(raw.Source)
	if mode == ModeSync {
		p.Enrich(ctx, q.Title, q.Body).apply(q)
	}

	if err := p.Queries.InsertQuery(ctx, q); err != nil {
		if errors.Is(err, db.ErrDuplicateMessageID) {
			logger.Info().Str("message_id", key).Msg("duplicate message skipped on insert")
			return IngestResult{Skipped: true}, nil
		}
		return IngestResult{}, fmt.Errorf("insert query: %w", err)
	}
	logger.Info().Str("query_id", q.ID).Str("mode", string(mode)).Msg("query stored")

	if mode == ModeAsync {
		p.dispatch(EnrichJob{QueryID: q.ID, Source: q.Source, Title: q.Title, Body: q.Body})
	}
	return IngestResult{Query: q}, nil
}

// Enrich classifies, estimates priority and selects an agent. It does not fail: assignment errors
// are logged and leave the query unassigned.
func (p *Pipeline) Enrich(ctx context.Context, title, body string) Enrichment {
	res := p.Classifier.Classify(ctx, title, body)
	e := Enrichment{
		Result:   res,
		Priority: EstimatePriority(strings.TrimSpace(title + " " + body)),
	}
	if p.Selector != nil {
		assigned, err := p.Selector.Select(ctx, res.Category, e.Priority)
		if err != nil {
			p.Logger.Warn().Err(err).Msg("assignment failed, leaving query unassigned")
		} else {
			e.AssignedTo = assigned
		}
	}
	return e
}

// EnrichQuery is the background half of ModeAsync.
func (p *Pipeline) EnrichQuery(ctx context.Context, job EnrichJob) error {
	e := p.Enrich(ctx, job.Title, job.Body)
	if _, err := p.Queries.UpdateQuery(ctx, job.QueryID, e.Patch()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			p.Logger.Info().Str("query_id", job.QueryID).Msg("query removed before enrichment finished")
			return nil
		}
		p.Logger.Error().Err(err).Str("query_id", job.QueryID).Msg("failed to store enrichment")
		return err
	}
	p.Logger.Info().
		Str("query_id", job.QueryID).
		Str("category", e.Result.Category).
		Str("priority", string(e.Priority)).
		Str("strategy", string(e.Result.Strategy)).
		Msg("query enriched")
	return nil
}

func (p *Pipeline) dispatch(job EnrichJob) {
	if p.Dispatcher != nil {
		p.Dispatcher.Submit(job)
		return
	}
	timeout := p.AsyncTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = p.EnrichQuery(ctx, job)
	}()
}

func (p *Pipeline) newRecord(raw RawMessage) *models.Query {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	newID := uuid.NewString
	if p.NewID != nil {
		newID = p.NewID
	}
	received := raw.ReceivedAt
	if received.IsZero() {
		received = now()
	}
	channel := raw.Channel
	if channel == "" {
		channel = string(raw.Source)
	}
	q := &models.Query{
		ID:         newID(),
		Source:     raw.Source,
		Sender:     raw.Sender,
		Title:      strings.TrimSpace(raw.Title),
		Body:       raw.Body,
		Tags:       []string{},
		Priority:   models.PriorityMedium,
		Status:     models.StatusOpen,
		UserID:     raw.UserID,
		Channel:    channel,
		ReceivedAt: received,
	}
	if key := raw.dedupKey(); key != "" {
		q.MessageID = &key
	}
	return q
}

// dedupKey is the upstream message id used for idempotent intake. Manual submissions have none.
func (raw RawMessage) dedupKey() string {
	if raw.Source == models.SourceManual || raw.MessageID == nil {
		return ""
	}
	return strings.TrimSpace(*raw.MessageID)
}

