package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydesk/backend/internal/models"
)

func TestEnricherProcessesQueuedJobs(t *testing.T) {
	store := newMemStore()
	p, _ := newTestPipeline(store, &fakeAgents{})
	e := NewEnricher(p, 2, time.Second, zerolog.Nop())
	p.Dispatcher = e

	require.NoError(t, e.Start(context.Background()))

	var ids []string
	for _, id := range []string{"<a@x>", "<b@x>", "<c@x>"} {
		res, err := p.Ingest(context.Background(), emailMessage(id))
		require.NoError(t, err)
		ids = append(ids, res.Query.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))

	for _, id := range ids {
		q := store.get(id)
		require.NotNil(t, q.Category, id)
		assert.Equal(t, "Billing", *q.Category)
		assert.Equal(t, models.PriorityLow, q.Priority)
	}
}

func TestEnricherRejectsAfterClose(t *testing.T) {
	p, _ := newTestPipeline(newMemStore(), &fakeAgents{})
	e := NewEnricher(p, 1, 0, zerolog.Nop())

	assert.ErrorIs(t, e.Enqueue(EnrichJob{QueryID: "q"}), ErrEnricherClosed)

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Close(context.Background()))
	assert.ErrorIs(t, e.Enqueue(EnrichJob{QueryID: "q"}), ErrEnricherClosed)
}
