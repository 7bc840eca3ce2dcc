package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// ErrEnricherClosed is returned by Enqueue after Close.
var ErrEnricherClosed = errors.New("enricher closed")

// Enricher runs async enrichment jobs on a bounded worker group.
type Enricher struct {
	workers    int
	jobTimeout time.Duration
	logger     zerolog.Logger
	pipeline   *Pipeline

	mu     sync.Mutex
	group  *pool.WorkerGroup[EnrichJob]
	closed bool
}

type enrichWorker struct {
	e *Enricher
}

func (w *enrichWorker) Do(ctx context.Context, job EnrichJob) error {
	if w.e.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.e.jobTimeout)
		defer cancel()
	}
	return w.e.pipeline.EnrichQuery(ctx, job)
}

func NewEnricher(p *Pipeline, workers int, jobTimeout time.Duration, logger zerolog.Logger) *Enricher {
	if workers < 1 {
		workers = 1
	}
	return &Enricher{
		workers:    workers,
		jobTimeout: jobTimeout,
		logger:     logger.With().Str("component", "enricher").Logger(),
		pipeline:   p,
	}
}

// Start launches the workers. Jobs keep running after individual failures.
func (e *Enricher) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.group != nil {
		return nil
	}
	group := pool.New[EnrichJob](e.workers, &enrichWorker{e: e}).
		WithBatchSize(1).
		WithContinueOnError()
	if err := group.Go(ctx); err != nil {
		return err
	}
	e.group = group
	e.logger.Info().Int("workers", e.workers).Msg("enricher started")
	return nil
}

// Submit satisfies Dispatcher. Jobs arriving before Start or after Close are dropped with a warning;
// the query stays in its placeholder state.
func (e *Enricher) Submit(job EnrichJob) {
	if err := e.Enqueue(job); err != nil {
		e.logger.Warn().Err(err).Str("query_id", job.QueryID).Msg("enrichment job dropped")
	}
}

func (e *Enricher) Enqueue(job EnrichJob) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.group == nil {
		return ErrEnricherClosed
	}
	e.group.Submit(job)
	return nil
}

// Close stops accepting jobs and waits for queued ones to finish.
func (e *Enricher) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	group := e.group
	e.mu.Unlock()

	if group == nil {
		return nil
	}
	err := group.Close(ctx)
	e.logger.Info().Msg("enricher stopped")
	return err
}
