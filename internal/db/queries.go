package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/querydesk/backend/internal/models"
)

const queryColumns = `id, source, sender, title, body, tags, category, sentiment, summary, priority, status,
	assigned_to, user_id, reply_sent, message_id, channel, received_at, created_at, updated_at`

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 100
)

type QueryFilter struct {
	Source   string
	Tag      string
	Status   string
	Priority string
	Q        string
	UserID   string
	Page     int
	Limit    int
	Sort     string
}

var sortColumns = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"receivedAt": "received_at",
	"status":     "status",
	"title":      "title",
	"priority":   "CASE priority WHEN 'urgent' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END",
}

// Normalize clamps paging and falls back to newest-first ordering.
func (f QueryFilter) Normalize() QueryFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if _, ok := sortColumns[strings.TrimPrefix(f.Sort, "-")]; !ok {
		f.Sort = "-createdAt"
	}
	return f
}

func (f QueryFilter) orderBy() string {
	key := strings.TrimPrefix(f.Sort, "-")
	dir := "ASC"
	if strings.HasPrefix(f.Sort, "-") {
		dir = "DESC"
	}
	return sortColumns[key] + " " + dir + ", id " + dir
}

func scanQuery(row pgx.Row) (models.Query, error) {
	var q models.Query
	err := row.Scan(&q.ID, &q.Source, &q.Sender, &q.Title, &q.Body, &q.Tags, &q.Category, &q.Sentiment,
		&q.Summary, &q.Priority, &q.Status, &q.AssignedTo, &q.UserID, &q.ReplySent, &q.MessageID,
		&q.Channel, &q.ReceivedAt, &q.CreatedAt, &q.UpdatedAt)
	if q.Tags == nil {
		q.Tags = []string{}
	}
	return q, err
}

// InsertQuery writes a new record and fills the store-managed timestamps.
// A second record with an already stored message id yields ErrDuplicateMessageID.
func (s *Store) InsertQuery(ctx context.Context, q *models.Query) error {
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO queries
		(id, source, sender, title, body, tags, category, sentiment, summary, priority, status,
		 assigned_to, user_id, reply_sent, message_id, channel, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT DO NOTHING
		RETURNING created_at, updated_at`,
		q.ID, q.Source, q.Sender, q.Title, q.Body, tags, q.Category, q.Sentiment, q.Summary, q.Priority,
		q.Status, q.AssignedTo, q.UserID, q.ReplySent, q.MessageID, q.Channel, q.ReceivedAt)
	if err := row.Scan(&q.CreatedAt, &q.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err, "queries_message_id_key") {
			return ErrDuplicateMessageID
		}
		return err
	}
	q.Tags = tags
	return nil
}

func (s *Store) FindQueryByMessageID(ctx context.Context, messageID string) (*models.Query, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE message_id = $1`, messageID)
	q, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (s *Store) GetQuery(ctx context.Context, id string) (*models.Query, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = $1`, id)
	q, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (s *Store) ListQueries(ctx context.Context, f QueryFilter) ([]models.Query, int, error) {
	f = f.Normalize()

	var args []any
	var wheres []string
	if f.Source != "" {
		args = append(args, f.Source)
		wheres = append(wheres, fmt.Sprintf("source = $%d", len(args)))
	}
	if f.Tag != "" {
		args = append(args, strings.ToLower(f.Tag))
		wheres = append(wheres, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		wheres = append(wheres, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		wheres = append(wheres, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Q != "" {
		args = append(args, "%"+escapeLike(f.Q)+"%")
		wheres = append(wheres, fmt.Sprintf("(title ILIKE $%d OR body ILIKE $%d OR sender ILIKE $%d)", len(args), len(args), len(args)))
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM queries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + queryColumns + ` FROM queries` + where + ` ORDER BY ` + f.orderBy() +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// UpdateQuery sets only the fields present in the patch and returns the stored record.
func (s *Store) UpdateQuery(ctx context.Context, id string, patch models.QueryPatch) (*models.Query, error) {
	if patch.Empty() {
		return s.GetQuery(ctx, id)
	}

	args := []any{id}
	var sets []string
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Body != nil {
		set("body", *patch.Body)
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		set("tags", tags)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Sentiment != nil {
		set("sentiment", *patch.Sentiment)
	}
	if patch.Summary != nil {
		set("summary", *patch.Summary)
	}
	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.AssignedTo != nil {
		if *patch.AssignedTo == "" {
			set("assigned_to", nil)
		} else {
			set("assigned_to", *patch.AssignedTo)
		}
	}
	if patch.ReplySent != nil {
		set("reply_sent", *patch.ReplySent)
	}
	sets = append(sets, "updated_at = NOW()")

	row := s.Pool.QueryRow(ctx, `UPDATE queries SET `+strings.Join(sets, ", ")+
		` WHERE id = $1 RETURNING `+queryColumns, args...)
	q, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (s *Store) DeleteQuery(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM queries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
