package domain

import (
	"strings"
	"time"
)

// MaxMessageRunes caps outbound message text, counted in code points.
const MaxMessageRunes = 4000

// Conversation is one chat room between the current user and a counterpart
// (an agency or consultant), usually opened from a property ad.
type Conversation struct {
	ConversationID         string `json:"conversationId"`
	CounterpartName        string `json:"counterpartName,omitempty"`
	CounterpartAvatarRef   string `json:"counterpartAvatarRef,omitempty"`
	SubjectListingTitle    string `json:"subjectListingTitle,omitempty"`
	SubjectListingImageRef string `json:"subjectListingImageRef,omitempty"`
	LastMessagePreview     string `json:"lastMessagePreview,omitempty"`
	LastMessageTimestamp   string `json:"lastMessageTimestamp,omitempty"`
	UnreadCount            int    `json:"unreadCount"`
}

// Message is a single chat line. ID is assigned by the server.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Text           string `json:"text"`
	Timestamp      string `json:"timestamp"`
	IsSeen         bool   `json:"isSeen"`
}

// Time parses Timestamp. The zero time is returned for unparsable values.
func (m Message) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Profile is the current user's display data from the room snapshot.
type Profile struct {
	UserName         string `json:"userName"`
	UserProfileImage string `json:"userProfileImage"`
}

// Identity is the authenticated session owned by the surrounding auth
// context. The chat core only reads it.
type Identity struct {
	UserID string
	Token  string
}

// MediaURL resolves an avatar or listing image reference against the
// image-serving base URL.
func MediaURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if base == "" {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}

// User is an account on the development chat peer.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	AvatarRef      string    `db:"avatar_ref" json:"avatar_ref,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Room is a persisted chat room, optionally tied to a property listing.
type Room struct {
	ID              int64     `db:"id"`
	ListingTitle    string    `db:"listing_title"`
	ListingImageRef string    `db:"listing_image_ref"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// StoredMessage is a persisted chat line.
type StoredMessage struct {
	ID        int64     `db:"id"`
	RoomID    int64     `db:"room_id"`
	SenderID  int64     `db:"sender_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
	IsSeen    bool      `db:"is_seen"`
}
