package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all directory migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create user_role enum",
			SQL: `
				DO $$ BEGIN
					CREATE TYPE user_role AS ENUM ('student', 'mentor', 'teacher');
				EXCEPTION
					WHEN duplicate_object THEN NULL;
				END $$;
			`,
		},
		{
			Version:     2,
			Description: "Create groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					access_code VARCHAR(64) NOT NULL UNIQUE,
					teacher_id BIGINT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					telegram_id VARCHAR(32) NOT NULL UNIQUE,
					username VARCHAR(255),
					first_name VARCHAR(255),
					last_name VARCHAR(255),
					photo_url TEXT,
					-- NULL until the user registers with an access code
					role user_role,
					group_id BIGINT REFERENCES groups(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_group_id ON users(group_id);
			`,
		},
		{
			Version:     4,
			Description: "Link group teacher to users",
			SQL: `
				ALTER TABLE groups
					ADD CONSTRAINT fk_groups_teacher_id
					FOREIGN KEY (teacher_id) REFERENCES users(id) ON DELETE SET NULL;
			`,
		},
	}
}

// Migrate applies pending directory migrations, one transaction each
func Migrate(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS directory_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM directory_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, m := range GetMigrations() {
		if applied[m.Version] {
			continue
		}

		log := logger.WithFields(logrus.Fields{
			"version":     m.Version,
			"description": m.Description,
		})
		log.Info("Running directory migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO directory_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		log.Info("Directory migration completed")
	}

	return nil
}
