package chat

import (
	"estatechat/internal/domain"
	"estatechat/internal/protocol"
)

// SeenTracker acknowledges unseen inbound messages as soon as they enter the
// store: one set_message_seen per message, with IsSeen flipped locally right
// away. If the acknowledgement is lost the message still shows as seen; the
// server's next is_seen sync is the only correction.
type SeenTracker struct {
	store *Store
	me    string
	out   Commander
}

func NewSeenTracker(store *Store, me string, out Commander) *SeenTracker {
	return &SeenTracker{store: store, me: me, out: out}
}

// Track acknowledges msg if it is an unseen message from the counterpart.
func (t *SeenTracker) Track(msg domain.Message) {
	if msg.ID == "" || msg.IsSeen || msg.SenderID == t.me {
		return
	}
	t.out.Send(protocol.SetMessageSeen{MessageID: msg.ID})
	t.store.MarkMessageSeenLocally(msg.ID)
}

// TrackActive acknowledges every unseen inbound message of the active
// conversation, one command each.
func (t *SeenTracker) TrackActive() {
	for _, m := range t.store.Messages() {
		t.Track(m)
	}
}

// Confirm applies a server seen-message event. For messages already marked
// optimistically only the unread counter is touched: a confirmation for a
// message of the active conversation clears it.
func (t *SeenTracker) Confirm(messageID string) {
	t.store.MarkMessageSeenLocally(messageID)
	if t.store.hasMessage(messageID) {
		t.store.resetUnread(t.store.ActiveID())
	}
}
