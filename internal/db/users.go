package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/querydesk/backend/internal/models"
)

const userColumns = `id, name, email, password_hash, role, is_active, skills, experience, assigned_count,
	is_online, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.Skills,
		&u.Experience, &u.AssignedCount, &u.IsOnline, &u.CreatedAt, &u.UpdatedAt)
	if u.Skills == nil {
		u.Skills = []string{}
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO users
		(id, name, email, password_hash, role, is_active, skills, experience, assigned_count, is_online)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Role, u.IsActive, skills,
		u.Experience, u.AssignedCount, u.IsOnline)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err, "") {
			return ErrEmailTaken
		}
		return err
	}
	u.Email = strings.ToLower(u.Email)
	u.Skills = skills
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		args = append(args, role)
		query += " WHERE role = $1"
	}
	query += " ORDER BY created_at ASC, id ASC"
	return s.listUsers(ctx, query, args...)
}

// ListActiveAgents returns the assignment pool in a stable order (oldest account first).
func (s *Store) ListActiveAgents(ctx context.Context) ([]models.User, error) {
	return s.listUsers(ctx, `SELECT `+userColumns+` FROM users
		WHERE role = 'agent' AND is_active ORDER BY created_at ASC, id ASC`)
}

func (s *Store) listUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) IncrementAssignedCount(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE users SET assigned_count = COALESCE(assigned_count, 0) + 1,
		updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	args := []any{id}
	var sets []string
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Role != nil {
		set("role", *patch.Role)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	if patch.Skills != nil {
		skills := make([]string, 0, len(*patch.Skills))
		for _, sk := range *patch.Skills {
			if sk = strings.ToLower(strings.TrimSpace(sk)); sk != "" {
				skills = append(skills, sk)
			}
		}
		set("skills", skills)
	}
	if patch.Experience != nil {
		set("experience", *patch.Experience)
	}
	if patch.IsOnline != nil {
		set("is_online", *patch.IsOnline)
	}
	sets = append(sets, "updated_at = NOW()")

	u, err := scanUser(s.Pool.QueryRow(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+
		` WHERE id = $1 RETURNING `+userColumns, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
