package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// RoomRepository defines persistence operations for chat rooms.
type RoomRepository interface {
	Create(ctx context.Context, r *Room, memberIDs []int64) error
	GetByID(ctx context.Context, id int64) (*Room, error)
	ListForUser(ctx context.Context, userID int64) ([]*Room, error)
	Touch(ctx context.Context, id int64) error
}

// MemberRepository defines operations around room membership.
type MemberRepository interface {
	ListMembers(ctx context.Context, roomID int64) ([]*User, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, m *StoredMessage) error
	GetByID(ctx context.Context, id int64) (*StoredMessage, error)
	ListForRoom(ctx context.Context, roomID int64, limit int) ([]*StoredMessage, error)
	Last(ctx context.Context, roomID int64) (*StoredMessage, error)
	CountUnseen(ctx context.Context, roomID, readerID int64) (int, error)
	MarkSeen(ctx context.Context, id int64) error
	ListSeen(ctx context.Context, roomID int64) ([]*StoredMessage, error)
}
