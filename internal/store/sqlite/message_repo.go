package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estatechat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, room_id, sender_id, text, created_at, is_seen`

func (r *MessageRepo) Create(ctx context.Context, m *domain.StoredMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (room_id, sender_id, text, created_at, is_seen)
		VALUES (?, ?, ?, ?, ?)
	`, m.RoomID, m.SenderID, m.Text, m.CreatedAt, m.IsSeen)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.StoredMessage, error) {
	return r.scanOne(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`, id)
}

// ListForRoom returns the newest limit messages of a room in send order.
func (r *MessageRepo) ListForRoom(ctx context.Context, roomID int64, limit int) ([]*domain.StoredMessage, error) {
	return r.list(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM chat_messages
			WHERE room_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, roomID, limit)
}

func (r *MessageRepo) Last(ctx context.Context, roomID int64) (*domain.StoredMessage, error) {
	return r.scanOne(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, roomID)
}

// CountUnseen counts messages in a room that readerID received and has not seen.
func (r *MessageRepo) CountUnseen(ctx context.Context, roomID, readerID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_messages
		WHERE room_id = ? AND sender_id <> ? AND is_seen = 0
	`, roomID, readerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unseen: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) MarkSeen(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE chat_messages SET is_seen = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListSeen(ctx context.Context, roomID int64) ([]*domain.StoredMessage, error) {
	return r.list(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE room_id = ? AND is_seen = 1
		ORDER BY id ASC
	`, roomID)
}

func (r *MessageRepo) scanOne(ctx context.Context, query string, arg any) (*domain.StoredMessage, error) {
	m := &domain.StoredMessage{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.CreatedAt, &m.IsSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) list(ctx context.Context, query string, args ...any) ([]*domain.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.StoredMessage
	for rows.Next() {
		m := &domain.StoredMessage{}
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.CreatedAt, &m.IsSeen); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
