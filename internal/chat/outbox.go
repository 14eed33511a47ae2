package chat

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Pending is an outbound message the server has not echoed back yet. It
// lives only on the client; the wire protocol has no field for it.
type Pending struct {
	LocalID        string
	ConversationID string
	Text           string
	CreatedAt      time.Time
	Failed         bool
}

// Outbox tracks pending outbound messages. The server echoes every sent
// message as a chat_message from the sender, which settles the oldest
// pending entry with the same room and text.
type Outbox struct {
	items []*Pending
}

func (o *Outbox) Add(convID, text string, now time.Time) Pending {
	p := &Pending{
		LocalID:        "local-" + uuid.NewString(),
		ConversationID: convID,
		Text:           text,
		CreatedAt:      now,
	}
	o.items = append(o.items, p)
	return *p
}

// Settle removes the oldest pending entry matching the echoed message. The
// echo carries no client id, so the same text sent to the same room from
// another connection of this user settles a local entry too.
func (o *Outbox) Settle(convID, text string) bool {
	for i, p := range o.items {
		if p.ConversationID == convID && p.Text == text {
			o.items = slices.Delete(o.items, i, i+1)
			return true
		}
	}
	return false
}

// Fail marks the oldest in-flight entry matching a dropped frame as failed.
func (o *Outbox) Fail(convID, text string) bool {
	for _, p := range o.items {
		if !p.Failed && p.ConversationID == convID && p.Text == text {
			p.Failed = true
			return true
		}
	}
	return false
}

// Retry clears the failed flag so the entry can be sent again.
func (o *Outbox) Retry(localID string) (Pending, bool) {
	for _, p := range o.items {
		if p.LocalID == localID && p.Failed {
			p.Failed = false
			p.CreatedAt = time.Now()
			return *p, true
		}
	}
	return Pending{}, false
}

func (o *Outbox) Dismiss(localID string) bool {
	for i, p := range o.items {
		if p.LocalID == localID {
			o.items = slices.Delete(o.items, i, i+1)
			return true
		}
	}
	return false
}

// List returns the pending entries of one conversation, oldest first.
func (o *Outbox) List(convID string) []Pending {
	var res []Pending
	for _, p := range o.items {
		if p.ConversationID == convID {
			res = append(res, *p)
		}
	}
	return res
}
