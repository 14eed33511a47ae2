package chat

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatechat/internal/domain"
	"estatechat/internal/protocol"
)

type recorder struct {
	cmds []protocol.Command
}

func (r *recorder) Send(cmd protocol.Command) { r.cmds = append(r.cmds, cmd) }

func (r *recorder) seenAcks() []string {
	var ids []string
	for _, c := range r.cmds {
		if s, ok := c.(protocol.SetMessageSeen); ok {
			ids = append(ids, s.MessageID)
		}
	}
	return ids
}

func twoRooms() []domain.Conversation {
	return []domain.Conversation{
		{ConversationID: "r1", CounterpartName: "Sunrise Realty"},
		{ConversationID: "r2", CounterpartName: "Harbor Homes"},
	}
}

func msg(id, conv, sender, text string) domain.Message {
	return domain.Message{ID: id, ConversationID: conv, SenderID: sender, Text: text, Timestamp: "2024-05-01T10:00:00Z"}
}

func ids(msgs []domain.Message) []string {
	res := make([]string, len(msgs))
	for i, m := range msgs {
		res[i] = m.ID
	}
	return res
}

func TestStoreKeepsDeliveryOrderUnderInterleaving(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			s := NewStore()
			s.ApplySnapshot(twoRooms(), domain.Profile{})
			s.setActive("r1")

			var want []string
			var r1, r2 int
			rng := rand.New(rand.NewSource(seed))
			for r1 < 15 || r2 < 15 {
				if r2 >= 15 || (r1 < 15 && rng.Intn(2) == 0) {
					id := fmt.Sprintf("a%d", r1)
					// timestamps deliberately go backwards; order must not follow them
					m := msg(id, "r1", "u2", id)
					m.Timestamp = fmt.Sprintf("2024-05-01T10:%02d:00Z", 59-r1)
					require.True(t, s.ApplyIncomingMessage("r1", m))
					want = append(want, id)
					r1++
				} else {
					assert.False(t, s.ApplyIncomingMessage("r2", msg(fmt.Sprintf("b%d", r2), "r2", "u3", "x")))
					r2++
				}
			}
			assert.Equal(t, want, ids(s.Messages()))
		})
	}
}

func TestStoreUpdatesPreviewForInactiveConversation(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(twoRooms(), domain.Profile{UserName: "Dana"})
	s.setActive("r1")

	entered := s.ApplyIncomingMessage("r2", msg("m1", "r2", "u3", "Is the flat still available?"))
	assert.False(t, entered)
	assert.Empty(t, s.Messages())

	c, ok := s.Conversation("r2")
	require.True(t, ok)
	assert.Equal(t, "Is the flat still available?", c.LastMessagePreview)
	assert.Equal(t, "2024-05-01T10:00:00Z", c.LastMessageTimestamp)
	assert.Equal(t, "Dana", s.Profile().UserName)
}

func TestStoreReplayIsNoop(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(twoRooms(), domain.Profile{})
	s.setActive("r1")

	require.True(t, s.ApplyIncomingMessage("r1", msg("m1", "r1", "u2", "hi")))
	assert.False(t, s.ApplyIncomingMessage("r1", msg("m1", "r1", "u2", "hi")))
	assert.Len(t, s.Messages(), 1)
}

func TestStoreSeenIsMonotonic(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(twoRooms(), domain.Profile{})
	s.setActive("r1")
	s.ApplyIncomingMessage("r1", msg("m1", "r1", "u2", "hi"))

	assert.True(t, s.MarkMessageSeenLocally("m1"))
	assert.False(t, s.MarkMessageSeenLocally("m1"))
	assert.False(t, s.MarkMessageSeenLocally("missing"))

	// an unseen replay of the same message must not reset the flag
	s.ApplyIncomingMessage("r1", msg("m1", "r1", "u2", "hi"))
	s.ApplyIncomingMessage("r2", msg("m1", "r1", "u2", "hi"))
	require.Len(t, s.Messages(), 1)
	assert.True(t, s.Messages()[0].IsSeen)
}

func TestStoreHistoryOnlyForActive(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(twoRooms(), domain.Profile{})
	s.setActive("r1")

	assert.False(t, s.ApplyHistory("r2", []domain.Message{msg("x", "r2", "u3", "x")}))
	assert.Empty(t, s.Messages())

	assert.True(t, s.ApplyHistory("r1", []domain.Message{
		{ID: "m1", SenderID: "u2"},
		{ID: "m2", SenderID: "me"},
		{ID: "m1", SenderID: "u2"},
	}))
	got := s.Messages()
	assert.Equal(t, []string{"m1", "m2"}, ids(got))
	assert.Equal(t, "r1", got[0].ConversationID)
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(twoRooms(), domain.Profile{})
	s.ApplySnapshot([]domain.Conversation{{ConversationID: "r3"}, {ConversationID: "r3"}}, domain.Profile{})

	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "r3", convs[0].ConversationID)
	_, ok := s.Conversation("r1")
	assert.False(t, ok)
}
