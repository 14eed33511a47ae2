// Package transport owns the single persistent websocket of a chat session:
// connect, reconnect with backoff, and queued sends while not connected.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("transport closed")

type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// URL builds the connection URI. The bearer token is appended verbatim to
// the server base; there is no separate auth frame.
func URL(base, token string) string {
	return base + token
}

type queued struct {
	data     []byte
	attempts int
}

// Manager maintains exactly one live connection and hides retry from callers.
type Manager struct {
	url  string
	opts Options
	h    Handlers
	log  *slog.Logger

	// mu guards everything below and serializes data writes, which keeps
	// queued frames ahead of newer ones.
	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	queue  []*queued
	cancel context.CancelFunc
	done   chan struct{}
}

func New(url string, opts Options, h Handlers) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		url:  url,
		opts: opts,
		h:    h,
		log:  opts.Logger.With("component", "transport"),
		done: make(chan struct{}),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open starts connecting in the background. Failures never surface here;
// they are reported through Handlers and retried.
func (m *Manager) Open(ctx context.Context) {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = Connecting
	m.mu.Unlock()

	go m.retryLoop(ctx)
	go m.run(ctx)
}

// Send transmits the frame if connected, otherwise queues it until the
// connection opens or the retry limit is reached.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state == Closed:
		return ErrClosed
	case m.state == Open && len(m.queue) == 0:
		if err := m.writeLocked(data); err != nil {
			m.log.Warn("write failed, queueing frame", "error", err)
			m.queue = append(m.queue, &queued{data: data})
			m.conn.Close()
		}
	default:
		m.queue = append(m.queue, &queued{data: data})
	}
	return nil
}

// Close terminates the connection and stops reconnecting. It is idempotent
// and waits for the background goroutines to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == Closed {
		m.mu.Unlock()
		return
	}
	started := m.state != Idle
	m.state = Closed
	conn := m.conn
	m.conn = nil
	m.queue = nil
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	if started {
		<-m.done
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	bo := m.opts.newBackoff()
	failures := 0
	notified := false

	for {
		conn, _, err := m.opts.Dialer.DialContext(ctx, m.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			m.log.Warn("connect failed", "attempt", failures, "error", err)
			m.emitError(err)
			if failures >= m.opts.DisconnectAfter && !notified {
				notified = true
				m.emitDisconnected(failures)
			}
			if !sleep(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}

		if !m.attach(conn) {
			conn.Close()
			return
		}
		failures = 0
		notified = false
		bo.Reset()
		m.log.Info("connected")
		m.emitOpen()
		m.flush()

		err = m.readLoop(conn)
		if m.detach(conn) {
			return
		}
		m.log.Warn("connection lost", "error", err)
		m.emitClose(err)
		if !sleep(ctx, bo.NextBackOff()) {
			return
		}
	}
}

func (m *Manager) attach(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return false
	}
	m.conn = conn
	m.state = Open
	return true
}

// detach reports whether the drop was caused by Close.
func (m *Manager) detach(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == conn {
		m.conn = nil
	}
	conn.Close()
	if m.state == Closed {
		return true
	}
	m.state = Connecting
	return false
}

func (m *Manager) readLoop(conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)

	if m.opts.PingInterval > 0 {
		pongWait := 2 * m.opts.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go m.keepalive(conn, stop)
	}

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			m.log.Debug("ignoring non-text frame", "type", typ)
			continue
		}
		if m.h.OnFrame != nil {
			m.h.OnFrame(data)
		}
	}
}

func (m *Manager) keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(m.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				m.log.Debug("ping failed", "error", err)
				return
			}
		case <-stop:
			return
		}
	}
}

func (m *Manager) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(m.opts.SendRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, data := range m.retryQueued() {
				m.log.Warn("dropping frame after retry limit", "limit", m.opts.SendRetryLimit)
				if m.h.OnSendFailed != nil {
					m.h.OnSendFailed(data)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// retryQueued flushes the queue when open, otherwise counts one retry per
// queued frame and returns those that exceeded the limit.
func (m *Manager) retryQueued() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Open {
		m.flushLocked()
		return nil
	}
	if m.state == Closed || m.opts.SendRetryLimit == 0 {
		return nil
	}
	var dropped [][]byte
	kept := m.queue[:0]
	for _, q := range m.queue {
		q.attempts++
		if q.attempts > m.opts.SendRetryLimit {
			dropped = append(dropped, q.data)
			continue
		}
		kept = append(kept, q)
	}
	m.queue = kept
	return dropped
}

func (m *Manager) flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

func (m *Manager) flushLocked() {
	for m.state == Open && len(m.queue) > 0 {
		if err := m.writeLocked(m.queue[0].data); err != nil {
			m.log.Warn("flush failed", "error", err, "queued", len(m.queue))
			m.conn.Close()
			return
		}
		m.queue[0] = nil
		m.queue = m.queue[1:]
	}
}

func (m *Manager) writeLocked(data []byte) error {
	_ = m.conn.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) emitOpen() {
	if m.h.OnOpen != nil {
		m.h.OnOpen()
	}
}

func (m *Manager) emitClose(err error) {
	if m.h.OnClose != nil {
		m.h.OnClose(err)
	}
}

func (m *Manager) emitError(err error) {
	if m.h.OnError != nil {
		m.h.OnError(err)
	}
}

func (m *Manager) emitDisconnected(attempts int) {
	if m.h.OnDisconnected != nil {
		m.h.OnDisconnected(attempts)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
