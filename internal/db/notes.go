package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/querydesk/backend/internal/models"
)

type NoteFilter struct {
	QueryID string
	UserID  string
	Page    int
	Limit   int
}

func (s *Store) CreateNote(ctx context.Context, n *models.Note) error {
	row := s.Pool.QueryRow(ctx, `INSERT INTO notes (id, query_id, user_id, content)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`, n.ID, n.QueryID, n.UserID, n.Content)
	return row.Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (s *Store) ListNotes(ctx context.Context, f NoteFilter) ([]models.Note, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > MaxPageLimit {
		f.Limit = DefaultPageLimit
	}

	var args []any
	var wheres []string
	if f.QueryID != "" {
		args = append(args, f.QueryID)
		wheres = append(wheres, fmt.Sprintf("query_id = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		wheres = append(wheres, fmt.Sprintf("user_id = $%d", len(args)))
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM notes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, query_id, user_id, content, created_at, updated_at FROM notes` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.QueryID, &n.UserID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}
