package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL for the chat schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               BIGSERIAL    PRIMARY KEY,
			username         VARCHAR(50)  UNIQUE NOT NULL,
			display_name     VARCHAR(100) NOT NULL DEFAULT '',
			avatar_ref       TEXT         NOT NULL DEFAULT '',
			hashed_password  VARCHAR(255) NOT NULL,
			is_active        BOOLEAN      NOT NULL DEFAULT TRUE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_rooms (
			id                BIGSERIAL    PRIMARY KEY,
			listing_title     VARCHAR(200) NOT NULL DEFAULT '',
			listing_image_ref TEXT         NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_room_members (
			room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			PRIMARY KEY (room_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id         BIGSERIAL   PRIMARY KEY,
			room_id    BIGINT      NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			sender_id  BIGINT      NOT NULL REFERENCES users(id),
			text       TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_seen    BOOLEAN     NOT NULL DEFAULT FALSE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_rooms_updated_at ON chat_rooms(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_room_members_user ON chat_room_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_unseen ON chat_messages(room_id) WHERE NOT is_seen`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
