package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/trainhub/trainhub/pkg/auth"
)

// PostgresDirectory stores users and groups in PostgreSQL
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory creates a directory backed by db
func NewPostgresDirectory(db *sql.DB) (*PostgresDirectory, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &PostgresDirectory{db: db}, nil
}

// LookupByTelegramID returns the user bound to telegramID.
// Records without a role have not finished registration and are reported as not found.
func (d *PostgresDirectory) LookupByTelegramID(ctx context.Context, telegramID string) (*User, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, photo_url, role, group_id
		FROM users
		WHERE telegram_id = $1
	`

	var (
		u                                    User
		username, firstName, lastName, photo sql.NullString
		role                                 sql.NullString
		groupID                              sql.NullInt64
	)

	err := d.db.QueryRowContext(ctx, query, telegramID).Scan(
		&u.ID,
		&u.TelegramID,
		&username,
		&firstName,
		&lastName,
		&photo,
		&role,
		&groupID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if !role.Valid {
		return nil, ErrUserNotFound
	}

	u.Role = auth.Role(role.String)
	u.Username = nullString(username)
	u.FirstName = nullString(firstName)
	u.LastName = nullString(lastName)
	u.PhotoURL = nullString(photo)
	u.GroupID = nullInt64(groupID)

	return &u, nil
}

// GroupByAccessCode returns the group joined with code
func (d *PostgresDirectory) GroupByAccessCode(ctx context.Context, code string) (*Group, error) {
	query := `
		SELECT id, title, access_code, teacher_id
		FROM groups
		WHERE access_code = $1
	`

	var (
		g         Group
		teacherID sql.NullInt64
	)
	err := d.db.QueryRowContext(ctx, query, code).Scan(&g.ID, &g.Title, &g.AccessCode, &teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group: %w", err)
	}
	g.TeacherID = nullInt64(teacherID)

	return &g, nil
}

// Register upserts the user and, for teachers, claims the group's teacher seat in the same transaction
func (d *PostgresDirectory) Register(ctx context.Context, profile Profile, role auth.Role, group *Group) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if group == nil {
		return nil, fmt.Errorf("group is required")
	}
	if profile.TelegramID == "" {
		return nil, fmt.Errorf("telegram id is required")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, photo_url, role, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telegram_id) DO UPDATE
		SET role = EXCLUDED.role, group_id = EXCLUDED.group_id
		RETURNING id
	`

	var userID int64
	err = tx.QueryRowContext(ctx, query,
		profile.TelegramID,
		profile.Username,
		profile.FirstName,
		profile.LastName,
		profile.PhotoURL,
		string(role),
		group.ID,
	).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	if role == auth.RoleTeacher {
		res, err := tx.ExecContext(ctx, `
			UPDATE groups SET teacher_id = $1
			WHERE id = $2 AND (teacher_id IS NULL OR teacher_id = $1)
		`, userID, group.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to assign teacher: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to assign teacher: %w", err)
		}
		if n == 0 {
			return nil, ErrTeacherTaken
		}
	}

	if err := tx.Commit(); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return nil, fmt.Errorf("failed to commit registration (%s): %w", pqErr.Code.Name(), err)
		}
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	groupID := group.ID
	return &User{
		ID:         userID,
		TelegramID: profile.TelegramID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		PhotoURL:   profile.PhotoURL,
		Role:       role,
		GroupID:    &groupID,
	}, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}
