package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydesk/backend/internal/models"
)

func TestQueryFilterNormalize(t *testing.T) {
	f := QueryFilter{Page: 0, Limit: 500, Sort: "DROP TABLE"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageLimit, f.Limit)
	assert.Equal(t, "-createdAt", f.Sort)
	assert.Equal(t, "created_at DESC, id DESC", f.orderBy())

	f = QueryFilter{Sort: "title"}.Normalize()
	assert.Equal(t, DefaultPageLimit, f.Limit)
	assert.Equal(t, "title ASC, id ASC", f.orderBy())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now`, escapeLike("50% off_now"))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestInsertQueryDuplicateMessageIDIntegration(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	msgID := "<" + uuid.NewString() + "@example.com>"
	newQuery := func() *models.Query {
		return &models.Query{
			ID:         uuid.NewString(),
			Source:     models.SourceEmail,
			Title:      "Invoice",
			Body:       "where is my invoice",
			Priority:   models.PriorityMedium,
			Status:     models.StatusOpen,
			MessageID:  &msgID,
			Channel:    "email",
			ReceivedAt: time.Now(),
		}
	}

	first := newQuery()
	require.NoError(t, store.InsertQuery(ctx, first))
	t.Cleanup(func() { _ = store.DeleteQuery(ctx, first.ID) })

	err := store.InsertQuery(ctx, newQuery())
	assert.ErrorIs(t, err, ErrDuplicateMessageID)

	found, err := store.FindQueryByMessageID(ctx, msgID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestUpdateQueryIsFieldScopedIntegration(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	q := &models.Query{
		ID:         uuid.NewString(),
		Source:     models.SourceManual,
		Title:      "Printer",
		Body:       "printer is on fire",
		Priority:   models.PriorityMedium,
		Status:     models.StatusOpen,
		Channel:    "manual",
		ReceivedAt: time.Now(),
	}
	require.NoError(t, store.InsertQuery(ctx, q))
	t.Cleanup(func() { _ = store.DeleteQuery(ctx, q.ID) })

	status := models.StatusInProgress
	_, err := store.UpdateQuery(ctx, q.ID, models.QueryPatch{Status: &status})
	require.NoError(t, err)

	category := "Technical"
	tags := []string{"hardware"}
	updated, err := store.UpdateQuery(ctx, q.ID, models.QueryPatch{Category: &category, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "Technical", *updated.Category)
	assert.Equal(t, []string{"hardware"}, updated.Tags)

	_, err = store.UpdateQuery(ctx, uuid.NewString(), models.QueryPatch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}
