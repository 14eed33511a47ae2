package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO chat_rooms (listing_title, listing_image_ref)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, room.ListingTitle, room.ListingImageRef).Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}

	for _, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_room_members (room_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, room.ID, uid); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}
	return tx.Commit()
}

func (r *RoomRepo) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	room := &domain.Room{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, listing_title, listing_image_ref, created_at, updated_at
		FROM chat_rooms WHERE id = $1
	`, id).Scan(&room.ID, &room.ListingTitle, &room.ListingImageRef, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func (r *RoomRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.listing_title, c.listing_image_ref, c.created_at, c.updated_at
		FROM chat_rooms c
		JOIN chat_room_members m ON m.room_id = c.id
		WHERE m.user_id = $1
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
	if _, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch room: %w", err)
	}
	return nil
}
