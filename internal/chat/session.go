package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"estatechat/internal/domain"
	"estatechat/internal/protocol"
	"estatechat/internal/transport"
)

// Transport is the connection a session runs over. *transport.Manager
// satisfies it.
type Transport interface {
	Open(ctx context.Context)
	Send(data []byte) error
	Close()
}

// Dial builds the session transport for a connection URL.
type Dial func(url string, h transport.Handlers) Transport

// Status is the user-visible connection state.
type Status int

const (
	StatusConnecting Status = iota
	StatusOnline
	StatusReconnecting
	StatusDisconnected
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOnline:
		return "online"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of session state for rendering.
type Snapshot struct {
	Status        Status
	Profile       domain.Profile
	Conversations []domain.Conversation
	ActiveID      string
	Messages      []domain.Message
	Pending       []Pending
}

type Options struct {
	WSBase    string
	Logger    *slog.Logger
	Transport transport.Options
	// Dial overrides the websocket transport, mainly for tests.
	Dial      Dial
	SendRate  rate.Limit
	SendBurst int
}

// Session owns one authenticated chat connection and all conversation
// state. Every state change happens on the goroutine running Run; the
// exported methods are safe to call from any goroutine.
type Session struct {
	id   domain.Identity
	opts Options
	log  *slog.Logger

	store   *Store
	rooms   *RoomList
	seen    *SeenTracker
	outbox  *Outbox
	limiter *rate.Limiter

	tr         Transport
	status     Status
	everOpened bool
	inbox      chan func()
	updates    chan Snapshot
	stopped    chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

func NewSession(id domain.Identity, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 5
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 10
	}
	if opts.Dial == nil {
		topts := opts.Transport
		topts.Logger = opts.Logger
		opts.Dial = func(url string, h transport.Handlers) Transport {
			return transport.New(url, topts, h)
		}
	}

	s := &Session{
		id:      id,
		opts:    opts,
		log:     opts.Logger.With("component", "chat", "user_id", id.UserID),
		store:   NewStore(),
		outbox:  &Outbox{},
		limiter: rate.NewLimiter(opts.SendRate, opts.SendBurst),
		inbox:   make(chan func(), 256),
		updates: make(chan Snapshot, 1),
		stopped: make(chan struct{}),
	}
	s.rooms = NewRoomList(s.store, id.UserID, s)
	s.seen = NewSeenTracker(s.store, id.UserID, s)
	return s
}

// Run connects and processes events until ctx is cancelled or Close is
// called. The connection is closed on every exit path.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("chat session already started")
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.tr = s.opts.Dial(transport.URL(s.opts.WSBase, s.id.Token), s.handlers())
	defer func() {
		s.status = StatusClosed
		s.publish()
		close(s.stopped)
		s.tr.Close()
		close(s.updates)
	}()

	s.tr.Open(ctx)
	s.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.inbox:
			fn()
		}
	}
}

// Close stops a running session.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Updates delivers the latest state after every change. Intermediate
// snapshots are dropped when the reader is slow. The channel is closed
// when the session ends.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Snapshot returns the current state.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// SelectConversation opens a conversation and requests its history and
// seen state.
func (s *Session) SelectConversation(id string) error {
	return s.call(func() error {
		if err := s.rooms.Select(id); err != nil {
			return err
		}
		s.publish()
		return nil
	})
}

// SendMessage sends text to the active conversation. Invalid text is
// rejected here and never reaches the wire.
func (s *Session) SendMessage(text string) error {
	if err := protocol.ValidateText(text); err != nil {
		return err
	}
	return s.call(func() error {
		convID := s.store.ActiveID()
		if convID == "" {
			return domain.ErrNoActiveConversation
		}
		if !s.limiter.Allow() {
			return domain.ErrRateLimited
		}
		s.outbox.Add(convID, text, time.Now())
		s.store.applyOutgoing(convID, text, time.Now().UTC().Format(time.RFC3339))
		s.Send(protocol.SendMessage{ConversationID: convID, Text: text})
		s.publish()
		return nil
	})
}

// RetryPending resends a message that failed to send.
func (s *Session) RetryPending(localID string) error {
	return s.call(func() error {
		p, ok := s.outbox.Retry(localID)
		if !ok {
			return domain.ErrNotFound
		}
		s.Send(protocol.SendMessage{ConversationID: p.ConversationID, Text: p.Text})
		s.publish()
		return nil
	})
}

// DismissPending drops a pending message from the view.
func (s *Session) DismissPending(localID string) error {
	return s.call(func() error {
		if !s.outbox.Dismiss(localID) {
			return domain.ErrNotFound
		}
		s.publish()
		return nil
	})
}

// Send encodes and transmits a command. Failures are logged, never
// returned: the caller has nothing useful to do with them.
func (s *Session) Send(cmd protocol.Command) {
	data, err := protocol.Encode(cmd)
	if err != nil {
		s.log.Error("encode command", "type", cmd.CommandType(), "error", err)
		return
	}
	if err := s.tr.Send(data); err != nil {
		s.log.Warn("send command", "type", cmd.CommandType(), "error", err)
	}
}

func (s *Session) handlers() transport.Handlers {
	return transport.Handlers{
		OnOpen: func() {
			s.post(func() {
				if s.everOpened {
					s.rooms.Resync()
				}
				s.everOpened = true
				s.status = StatusOnline
				s.publish()
			})
		},
		OnClose: func(err error) {
			s.post(func() {
				s.status = StatusReconnecting
				s.publish()
			})
		},
		OnError: func(err error) {
			s.log.Debug("connection error", "error", err)
		},
		OnDisconnected: func(attempts int) {
			s.post(func() {
				s.log.Error("chat server unreachable", "attempts", attempts)
				s.status = StatusDisconnected
				s.publish()
			})
		},
		OnFrame: func(data []byte) {
			s.post(func() { s.handleFrame(data) })
		},
		OnSendFailed: func(data []byte) {
			s.post(func() { s.handleSendFailed(data) })
		},
	}
}

func (s *Session) handleFrame(data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		s.log.Warn("dropping frame", "error", err)
		return
	}

	switch e := ev.(type) {
	case protocol.ChatRooms:
		s.rooms.ApplySnapshot(e)
	case protocol.ChatMessage:
		if e.Message.SenderID == s.id.UserID {
			s.outbox.Settle(e.ConversationID, e.Message.Text)
		}
		if s.rooms.ApplyMessage(e) {
			s.seen.Track(e.Message)
		}
	case protocol.History:
		if !s.rooms.ApplyHistory(e) {
			s.log.Debug("dropping stale history", "messages", len(e.Messages))
			return
		}
		s.seen.TrackActive()
	case protocol.SeenMessage:
		s.seen.Confirm(e.MessageID)
	}
	s.publish()
}

func (s *Session) handleSendFailed(data []byte) {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		return
	}
	if m, ok := cmd.(protocol.SendMessage); ok && s.outbox.Fail(m.ConversationID, m.Text) {
		s.log.Warn("message failed to send", "conversation_id", m.ConversationID)
		s.publish()
	}
}

// post hands fn to the session loop. It reports false once the session
// has stopped.
func (s *Session) post(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.stopped:
		return false
	}
}

// call runs fn on the session loop and waits for its result.
func (s *Session) call(fn func() error) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return domain.ErrSessionNotStarted
	}

	errc := make(chan error, 1)
	if !s.post(func() { errc <- fn() }) {
		return domain.ErrSessionClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.stopped:
		return domain.ErrSessionClosed
	}
}

func (s *Session) snapshot() Snapshot {
	active := s.store.ActiveID()
	return Snapshot{
		Status:        s.status,
		Profile:       s.store.Profile(),
		Conversations: s.store.Conversations(),
		ActiveID:      active,
		Messages:      s.store.Messages(),
		Pending:       s.outbox.List(active),
	}
}

// publish offers the current snapshot, replacing an unread older one.
func (s *Session) publish() {
	snap := s.snapshot()
	select {
	case s.updates <- snap:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snap:
	default:
	}
}
