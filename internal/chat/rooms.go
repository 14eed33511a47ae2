package chat

import (
	"fmt"
	"slices"

	"estatechat/internal/domain"
	"estatechat/internal/protocol"
)

// Commander sends protocol commands to the server.
type Commander interface {
	Send(cmd protocol.Command)
}

// RoomList keeps conversation previews and unread counters current and
// drives conversation selection.
type RoomList struct {
	store *Store
	me    string
	out   Commander

	// awaiting holds the conversation of every history request still
	// unanswered, oldest first. Responses carry no correlation id, so they
	// are matched by order on the stream.
	awaiting []string
}

func NewRoomList(store *Store, me string, out Commander) *RoomList {
	return &RoomList{store: store, me: me, out: out}
}

func (r *RoomList) ApplySnapshot(ev protocol.ChatRooms) {
	r.store.ApplySnapshot(ev.Rooms, ev.Profile)
}

// ApplyMessage handles a chat_message event and reports whether the message
// entered the active conversation's list.
func (r *RoomList) ApplyMessage(ev protocol.ChatMessage) bool {
	entered := r.store.ApplyIncomingMessage(ev.ConversationID, ev.Message)
	inbound := ev.Message.SenderID != r.me
	if inbound && !ev.Message.IsSeen && ev.ConversationID != r.store.ActiveID() {
		r.store.incrementUnread(ev.ConversationID)
	}
	return entered
}

// Select opens a conversation and re-syncs it: every switch requests the
// full history and the seen state, even for a conversation opened before.
func (r *RoomList) Select(id string) error {
	if !r.store.has(id) {
		return fmt.Errorf("select %q: %w", id, domain.ErrUnknownConversation)
	}
	r.store.setActive(id)
	r.store.resetUnread(id)
	r.resync(id)
	return nil
}

// Resync repeats the open requests for the active conversation, used after
// a reconnect. Requests lost with the old connection will never be answered.
func (r *RoomList) Resync() {
	r.awaiting = r.awaiting[:0]
	if id := r.store.ActiveID(); id != "" {
		r.resync(id)
	}
}

func (r *RoomList) resync(id string) {
	r.awaiting = append(r.awaiting, id)
	r.out.Send(protocol.RetrieveMessages{ConversationID: id})
	r.out.Send(protocol.IsSeen{ConversationID: id})
}

// ApplyHistory applies a retrieve-message response only if it answers a
// request for the conversation that is still active. Late responses for a
// conversation the user already left are dropped.
//
// A tagged payload answers the oldest request for its conversation; any
// older requests were skipped by the server and are forgotten. An untagged
// or empty payload answers the oldest request.
func (r *RoomList) ApplyHistory(ev protocol.History) bool {
	target := payloadConversation(ev.Messages)
	if target != "" {
		if i := slices.Index(r.awaiting, target); i >= 0 {
			r.awaiting = r.awaiting[i+1:]
		}
	} else if len(r.awaiting) > 0 {
		target = r.awaiting[0]
		r.awaiting = r.awaiting[1:]
	}
	if target == "" || target != r.store.ActiveID() {
		return false
	}
	return r.store.ApplyHistory(target, ev.Messages)
}

// payloadConversation returns the conversation all messages belong to, or ""
// when the payload is empty, untagged or mixed.
func payloadConversation(msgs []domain.Message) string {
	var id string
	for _, m := range msgs {
		switch {
		case m.ConversationID == "":
			continue
		case id == "":
			id = m.ConversationID
		case id != m.ConversationID:
			return ""
		}
	}
	return id
}
