package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"estatechat/internal/domain"
	"estatechat/internal/service"
)

type chatMocks struct {
	users    *MockUserRepo
	rooms    *MockRoomRepo
	members  *MockMemberRepo
	messages *MockMessageRepo
	svc      *service.ChatService
}

func newChatService() chatMocks {
	m := chatMocks{
		users:    new(MockUserRepo),
		rooms:    new(MockRoomRepo),
		members:  new(MockMemberRepo),
		messages: new(MockMessageRepo),
	}
	m.svc = service.NewChatService(m.users, m.rooms, m.members, m.messages, 50)
	return m
}

func TestListRooms(t *testing.T) {
	m := newChatService()
	ctx := context.Background()
	sent := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	m.users.On("GetByID", mock.Anything, int64(1)).Return(&domain.User{ID: 1, Username: "dana", DisplayName: "Dana", AvatarRef: "avatars/1.png"}, nil)
	m.rooms.On("ListForUser", mock.Anything, int64(1)).Return([]*domain.Room{
		{ID: 10, ListingTitle: "Loft downtown", ListingImageRef: "listings/10.jpg"},
		{ID: 11},
	}, nil)
	m.members.On("ListMembers", mock.Anything, int64(10)).Return([]*domain.User{
		{ID: 1, Username: "dana"},
		{ID: 2, Username: "sunrise", DisplayName: "Sunrise Realty", AvatarRef: "avatars/2.png"},
	}, nil)
	m.members.On("ListMembers", mock.Anything, int64(11)).Return([]*domain.User{{ID: 1}, {ID: 3, Username: "harbor"}}, nil)
	m.messages.On("Last", mock.Anything, int64(10)).Return(&domain.StoredMessage{ID: 5, Text: "See you at 6", CreatedAt: sent}, nil)
	m.messages.On("Last", mock.Anything, int64(11)).Return(nil, nil)
	m.messages.On("CountUnseen", mock.Anything, int64(10), int64(1)).Return(2, nil)
	m.messages.On("CountUnseen", mock.Anything, int64(11), int64(1)).Return(0, nil)

	convs, profile, err := m.svc.ListRooms(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Profile{UserName: "Dana", UserProfileImage: "avatars/1.png"}, profile)
	require.Len(t, convs, 2)
	assert.Equal(t, domain.Conversation{
		ConversationID:         "10",
		CounterpartName:        "Sunrise Realty",
		CounterpartAvatarRef:   "avatars/2.png",
		SubjectListingTitle:    "Loft downtown",
		SubjectListingImageRef: "listings/10.jpg",
		LastMessagePreview:     "See you at 6",
		LastMessageTimestamp:   "2024-05-01T09:00:00Z",
		UnreadCount:            2,
	}, convs[0])
	assert.Equal(t, "harbor", convs[1].CounterpartName)
	assert.Empty(t, convs[1].LastMessagePreview)
}

func TestPostMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		m := newChatService()
		m.members.On("IsMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
		m.messages.On("Create", mock.Anything, mock.MatchedBy(func(msg *domain.StoredMessage) bool {
			return msg.RoomID == 10 && msg.SenderID == 1 && msg.Text == "Is parking included?"
		})).Run(func(args mock.Arguments) {
			msg := args.Get(1).(*domain.StoredMessage)
			msg.ID = 99
			msg.CreatedAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		}).Return(nil)
		m.rooms.On("Touch", mock.Anything, int64(10)).Return(nil)

		msg, err := m.svc.PostMessage(ctx, 1, "10", "Is parking included?")
		require.NoError(t, err)
		assert.Equal(t, domain.Message{
			ID:             "99",
			ConversationID: "10",
			SenderID:       "1",
			Text:           "Is parking included?",
			Timestamp:      "2024-05-01T09:00:00Z",
		}, msg)
		m.rooms.AssertExpectations(t)
	})

	t.Run("NotMember", func(t *testing.T) {
		m := newChatService()
		m.members.On("IsMember", mock.Anything, int64(10), int64(4)).Return(false, nil)

		_, err := m.svc.PostMessage(ctx, 4, "10", "hi")
		assert.ErrorIs(t, err, domain.ErrForbidden)
		m.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("InvalidText", func(t *testing.T) {
		m := newChatService()
		_, err := m.svc.PostMessage(ctx, 1, "10", "   ")
		assert.ErrorIs(t, err, domain.ErrEmptyMessage)
		_, err = m.svc.PostMessage(ctx, 1, "10", strings.Repeat("a", domain.MaxMessageRunes+1))
		assert.ErrorIs(t, err, domain.ErrMessageTooLong)
	})

	t.Run("BadRoomID", func(t *testing.T) {
		m := newChatService()
		_, err := m.svc.PostMessage(ctx, 1, "room-x", "hi")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestHistory(t *testing.T) {
	m := newChatService()
	m.members.On("IsMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	m.messages.On("ListForRoom", mock.Anything, int64(10), 50).Return([]*domain.StoredMessage{
		{ID: 1, RoomID: 10, SenderID: 1, Text: "hello", IsSeen: true},
		{ID: 2, RoomID: 10, SenderID: 2, Text: "hi"},
	}, nil)

	msgs, err := m.svc.History(context.Background(), 1, "10")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, "10", msgs[1].ConversationID)
	assert.Equal(t, "2", msgs[1].SenderID)
	assert.False(t, msgs[1].IsSeen)
}

func TestMarkSeen(t *testing.T) {
	ctx := context.Background()

	t.Run("CounterpartMessage", func(t *testing.T) {
		m := newChatService()
		m.messages.On("GetByID", mock.Anything, int64(5)).Return(&domain.StoredMessage{ID: 5, RoomID: 10, SenderID: 2}, nil)
		m.members.On("IsMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
		m.messages.On("MarkSeen", mock.Anything, int64(5)).Return(nil)

		msg, changed, err := m.svc.MarkSeen(ctx, 1, "5")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, msg.IsSeen)
		assert.Equal(t, "10", msg.ConversationID)
	})

	t.Run("OwnMessageUnchanged", func(t *testing.T) {
		m := newChatService()
		m.messages.On("GetByID", mock.Anything, int64(6)).Return(&domain.StoredMessage{ID: 6, RoomID: 10, SenderID: 1}, nil)
		m.members.On("IsMember", mock.Anything, int64(10), int64(1)).Return(true, nil)

		_, changed, err := m.svc.MarkSeen(ctx, 1, "6")
		require.NoError(t, err)
		assert.False(t, changed)
		m.messages.AssertNotCalled(t, "MarkSeen", mock.Anything, mock.Anything)
	})

	t.Run("Unknown", func(t *testing.T) {
		m := newChatService()
		m.messages.On("GetByID", mock.Anything, int64(7)).Return(nil, nil)

		_, _, err := m.svc.MarkSeen(ctx, 1, "7")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSeenInRoomAndMembers(t *testing.T) {
	m := newChatService()
	ctx := context.Background()
	m.members.On("IsMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	m.messages.On("ListSeen", mock.Anything, int64(10)).Return([]*domain.StoredMessage{{ID: 3}, {ID: 4}}, nil)
	m.members.On("ListMembers", mock.Anything, int64(10)).Return([]*domain.User{{ID: 1}, {ID: 2}}, nil)

	ids, err := m.svc.SeenInRoom(ctx, 1, "10")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, ids)

	members, err := m.svc.MemberIDs(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, members)
}
