// Package chat holds the conversation state of a chat session and the event
// handling that keeps it in sync with the server.
package chat

import (
	"slices"

	"estatechat/internal/domain"
)

// Store is the single source of truth for conversations and the messages of
// the active conversation. It is owned by one goroutine (the session loop)
// and does no locking.
type Store struct {
	order   []string
	convs   map[string]*domain.Conversation
	profile domain.Profile

	active   string
	messages []domain.Message
	byID     map[string]int
}

func NewStore() *Store {
	return &Store{
		convs: make(map[string]*domain.Conversation),
		byID:  make(map[string]int),
	}
}

// ApplySnapshot replaces the conversation list wholesale.
func (s *Store) ApplySnapshot(rooms []domain.Conversation, profile domain.Profile) {
	s.order = s.order[:0]
	s.convs = make(map[string]*domain.Conversation, len(rooms))
	for _, r := range rooms {
		if _, dup := s.convs[r.ConversationID]; dup {
			continue
		}
		c := r
		s.convs[c.ConversationID] = &c
		s.order = append(s.order, c.ConversationID)
	}
	s.profile = profile
}

// ApplyIncomingMessage records a message event. The conversation preview is
// always updated; the message itself is appended only when convID is the
// active conversation. It reports whether the message entered the list.
// Replaying a message whose id is already listed changes nothing.
func (s *Store) ApplyIncomingMessage(convID string, msg domain.Message) bool {
	if msg.ConversationID == "" {
		msg.ConversationID = convID
	}
	if c, ok := s.convs[convID]; ok {
		c.LastMessagePreview = msg.Text
		c.LastMessageTimestamp = msg.Timestamp
	}
	if convID == "" || convID != s.active {
		return false
	}
	if msg.ID != "" {
		if _, dup := s.byID[msg.ID]; dup {
			return false
		}
		s.byID[msg.ID] = len(s.messages)
	}
	s.messages = append(s.messages, msg)
	return true
}

// ApplyHistory replaces the active conversation's messages. Histories for
// any other conversation are ignored.
func (s *Store) ApplyHistory(convID string, msgs []domain.Message) bool {
	if convID == "" || convID != s.active {
		return false
	}
	s.messages = make([]domain.Message, 0, len(msgs))
	s.byID = make(map[string]int, len(msgs))
	for _, m := range msgs {
		if m.ConversationID == "" {
			m.ConversationID = convID
		}
		if m.ID != "" {
			if _, dup := s.byID[m.ID]; dup {
				continue
			}
			s.byID[m.ID] = len(s.messages)
		}
		s.messages = append(s.messages, m)
	}
	return true
}

// MarkMessageSeenLocally flips IsSeen on the matching active message. It
// reports whether anything changed; seen never goes back to false.
func (s *Store) MarkMessageSeenLocally(id string) bool {
	i, ok := s.byID[id]
	if !ok || s.messages[i].IsSeen {
		return false
	}
	s.messages[i].IsSeen = true
	return true
}

// applyOutgoing updates the preview for a message the user just sent.
func (s *Store) applyOutgoing(convID, text, timestamp string) {
	if c, ok := s.convs[convID]; ok {
		c.LastMessagePreview = text
		c.LastMessageTimestamp = timestamp
	}
}

func (s *Store) setActive(id string) {
	s.active = id
	s.messages = nil
	s.byID = make(map[string]int)
}

func (s *Store) incrementUnread(id string) {
	if c, ok := s.convs[id]; ok {
		c.UnreadCount++
	}
}

func (s *Store) resetUnread(id string) {
	if c, ok := s.convs[id]; ok {
		c.UnreadCount = 0
	}
}

func (s *Store) hasMessage(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *Store) has(id string) bool {
	_, ok := s.convs[id]
	return ok
}

// Conversations returns the room list in snapshot order.
func (s *Store) Conversations() []domain.Conversation {
	res := make([]domain.Conversation, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, *s.convs[id])
	}
	return res
}

func (s *Store) Conversation(id string) (domain.Conversation, bool) {
	c, ok := s.convs[id]
	if !ok {
		return domain.Conversation{}, false
	}
	return *c, true
}

func (s *Store) ActiveID() string { return s.active }

// Messages returns a copy of the active conversation's messages in arrival order.
func (s *Store) Messages() []domain.Message {
	return slices.Clone(s.messages)
}

func (s *Store) Profile() domain.Profile { return s.profile }
