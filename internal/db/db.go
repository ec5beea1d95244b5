package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            email VARCHAR(255) UNIQUE NOT NULL,
            full_name VARCHAR(100) UNIQUE NOT NULL,
            password VARCHAR(255) NOT NULL,
            profile_pic TEXT NOT NULL DEFAULT '',
            status VARCHAR(80) NOT NULL DEFAULT 'Set your status',
            otp_hash VARCHAR(255),
            otp_expires_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS groups (
            id BIGSERIAL PRIMARY KEY,
            name VARCHAR(100) NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            profile_pic TEXT NOT NULL DEFAULT '',
            admin_id BIGINT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS group_members (
            group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (group_id, user_id)
        )`,

		// Exactly one of receiver_id / group_id is set.
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            receiver_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
            group_id BIGINT REFERENCES groups(id) ON DELETE CASCADE,
            text TEXT NOT NULL DEFAULT '',
            image TEXT NOT NULL DEFAULT '',
            audio TEXT NOT NULL DEFAULT '',
            file_url TEXT NOT NULL DEFAULT '',
            file_name TEXT NOT NULL DEFAULT '',
            file_type TEXT NOT NULL DEFAULT '',
            seen_at TIMESTAMPTZ,
            expire_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            CHECK ((receiver_id IS NULL) <> (group_id IS NULL))
        )`,

		`CREATE TABLE IF NOT EXISTS message_deletions (
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            deleted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (message_id, user_id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_expire_at
            ON messages (expire_at) WHERE expire_at IS NOT NULL`,

		`CREATE INDEX IF NOT EXISTS idx_messages_direct
            ON messages (sender_id, receiver_id)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_group
            ON messages (group_id)`,

		`CREATE INDEX IF NOT EXISTS idx_group_members_user
            ON group_members (user_id)`,
	}

	for _, query := range queries {
		if _, err := d.Conn.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SweepExpired removes messages whose retention window has passed. Postgres
// has no TTL index, so the sweep runs here instead of inside the engine.
func (d *Database) SweepExpired(ctx context.Context) (int64, error) {
	res, err := d.Conn.ExecContext(ctx,
		`DELETE FROM messages WHERE expire_at IS NOT NULL AND expire_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunRetentionSweep loops until ctx is cancelled.
func (d *Database) RunRetentionSweep(ctx context.Context, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.SweepExpired(ctx)
			if err != nil {
				log.Error("retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("retention sweep removed expired messages", "count", n)
			}
		}
	}
}
