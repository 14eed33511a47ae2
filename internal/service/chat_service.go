package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"estatechat/internal/domain"
	"estatechat/internal/protocol"
)

// DefaultHistoryLimit caps retrieve-message responses.
const DefaultHistoryLimit = 200

// ChatService answers chat commands for the development peer.
type ChatService struct {
	users        domain.UserRepository
	rooms        domain.RoomRepository
	members      domain.MemberRepository
	messages     domain.MessageRepository
	historyLimit int
}

func NewChatService(
	users domain.UserRepository,
	rooms domain.RoomRepository,
	members domain.MemberRepository,
	messages domain.MessageRepository,
	historyLimit int,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ChatService{
		users:        users,
		rooms:        rooms,
		members:      members,
		messages:     messages,
		historyLimit: historyLimit,
	}
}

// ListRooms builds the chat_rooms snapshot for a user.
func (s *ChatService) ListRooms(ctx context.Context, userID int64) ([]domain.Conversation, domain.Profile, error) {
	me, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Profile{}, fmt.Errorf("get user: %w", err)
	}
	if me == nil {
		return nil, domain.Profile{}, domain.ErrNotFound
	}
	profile := domain.Profile{UserName: displayName(me), UserProfileImage: me.AvatarRef}

	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		return nil, domain.Profile{}, fmt.Errorf("list rooms: %w", err)
	}

	res := make([]domain.Conversation, 0, len(rooms))
	for _, room := range rooms {
		conv := domain.Conversation{
			ConversationID:         formatID(room.ID),
			SubjectListingTitle:    room.ListingTitle,
			SubjectListingImageRef: room.ListingImageRef,
		}

		members, err := s.members.ListMembers(ctx, room.ID)
		if err != nil {
			return nil, domain.Profile{}, fmt.Errorf("list members: %w", err)
		}
		for _, m := range members {
			if m.ID != userID {
				conv.CounterpartName = displayName(m)
				conv.CounterpartAvatarRef = m.AvatarRef
				break
			}
		}

		last, err := s.messages.Last(ctx, room.ID)
		if err != nil {
			return nil, domain.Profile{}, fmt.Errorf("last message: %w", err)
		}
		if last != nil {
			conv.LastMessagePreview = last.Text
			conv.LastMessageTimestamp = formatTime(last.CreatedAt)
		}

		if conv.UnreadCount, err = s.messages.CountUnseen(ctx, room.ID, userID); err != nil {
			return nil, domain.Profile{}, fmt.Errorf("count unseen: %w", err)
		}
		res = append(res, conv)
	}
	return res, profile, nil
}

// PostMessage stores a message from a room member.
func (s *ChatService) PostMessage(ctx context.Context, userID int64, roomID, text string) (domain.Message, error) {
	if err := protocol.ValidateText(text); err != nil {
		return domain.Message{}, err
	}
	rid, err := s.authorize(ctx, userID, roomID)
	if err != nil {
		return domain.Message{}, err
	}

	m := &domain.StoredMessage{RoomID: rid, SenderID: userID, Text: text}
	if err := s.messages.Create(ctx, m); err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	if err := s.rooms.Touch(ctx, rid); err != nil {
		return domain.Message{}, fmt.Errorf("touch room: %w", err)
	}
	return toWire(m), nil
}

// History returns the newest messages of a room, oldest first.
func (s *ChatService) History(ctx context.Context, userID int64, roomID string) ([]domain.Message, error) {
	rid, err := s.authorize(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	stored, err := s.messages.ListForRoom(ctx, rid, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	res := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		res = append(res, toWire(m))
	}
	return res, nil
}

// MarkSeen records that userID saw a message. Own messages are left
// unchanged. The returned message carries the room for broadcasting.
func (s *ChatService) MarkSeen(ctx context.Context, userID int64, messageID string) (domain.Message, bool, error) {
	id, err := parseID(messageID)
	if err != nil {
		return domain.Message{}, false, err
	}
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("get message: %w", err)
	}
	if m == nil {
		return domain.Message{}, false, domain.ErrNotFound
	}
	if _, err := s.authorize(ctx, userID, formatID(m.RoomID)); err != nil {
		return domain.Message{}, false, err
	}
	if m.SenderID == userID || m.IsSeen {
		return toWire(m), false, nil
	}

	if err := s.messages.MarkSeen(ctx, m.ID); err != nil {
		return domain.Message{}, false, fmt.Errorf("mark seen: %w", err)
	}
	m.IsSeen = true
	return toWire(m), true, nil
}

// SeenInRoom lists the ids of seen messages in a room.
func (s *ChatService) SeenInRoom(ctx context.Context, userID int64, roomID string) ([]string, error) {
	rid, err := s.authorize(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	seen, err := s.messages.ListSeen(ctx, rid)
	if err != nil {
		return nil, fmt.Errorf("list seen: %w", err)
	}
	ids := make([]string, 0, len(seen))
	for _, m := range seen {
		ids = append(ids, formatID(m.ID))
	}
	return ids, nil
}

// MemberIDs lists who should receive events for a room.
func (s *ChatService) MemberIDs(ctx context.Context, roomID string) ([]int64, error) {
	rid, err := parseID(roomID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, rid)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *ChatService) authorize(ctx context.Context, userID int64, roomID string) (int64, error) {
	rid, err := parseID(roomID)
	if err != nil {
		return 0, err
	}
	ok, err := s.members.IsMember(ctx, rid, userID)
	if err != nil {
		return 0, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return 0, domain.ErrForbidden
	}
	return rid, nil
}

func toWire(m *domain.StoredMessage) domain.Message {
	return domain.Message{
		ID:             formatID(m.ID),
		ConversationID: formatID(m.RoomID),
		SenderID:       formatID(m.SenderID),
		Text:           m.Text,
		Timestamp:      formatTime(m.CreatedAt),
		IsSeen:         m.IsSeen,
	}
}

func displayName(u *domain.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
