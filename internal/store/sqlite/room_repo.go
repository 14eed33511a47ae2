package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estatechat/internal/domain"
)

type RoomRepo struct {
	db *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

var _ domain.RoomRepository = (*RoomRepo)(nil)

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room, memberIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO chat_rooms (listing_title, listing_image_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, room.ListingTitle, room.ListingImageRef, now, now)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	for _, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chat_room_members (room_id, user_id) VALUES (?, ?)
		`, id, uid); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	room.ID, room.CreatedAt, room.UpdatedAt = id, now, now
	return nil
}

func (r *RoomRepo) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	room := &domain.Room{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, listing_title, listing_image_ref, created_at, updated_at
		FROM chat_rooms
		WHERE id = ?
	`, id).Scan(&room.ID, &room.ListingTitle, &room.ListingImageRef, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// ListForUser returns the user's rooms, most recently active first.
func (r *RoomRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.listing_title, c.listing_image_ref, c.created_at, c.updated_at
		FROM chat_rooms c
		JOIN chat_room_members m ON m.room_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var res []*domain.Room
	for rows.Next() {
		room := &domain.Room{}
		if err := rows.Scan(&room.ID, &room.ListingTitle, &room.ListingImageRef, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		res = append(res, room)
	}
	return res, rows.Err()
}

func (r *RoomRepo) Touch(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch room: %w", err)
	}
	return nil
}
