package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Handlers are lifecycle callbacks. They run on the manager's goroutines and
// must not block for long or call Close.
type Handlers struct {
	OnOpen  func()
	OnClose func(err error)
	OnError func(err error)
	OnFrame func(data []byte)
	// OnSendFailed receives a queued frame that exhausted SendRetryLimit.
	OnSendFailed func(data []byte)
	// OnDisconnected fires once per outage after DisconnectAfter
	// consecutive failed connection attempts. Retries continue.
	OnDisconnected func(attempts int)
}

type Options struct {
	Dialer Dialer
	Logger *slog.Logger

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	ReconnectJitter  float64

	SendRetryInterval time.Duration
	SendRetryLimit    int // 0 retries forever
	DisconnectAfter   int

	PingInterval time.Duration // 0 disables keepalive
	WriteTimeout time.Duration
}

// DefaultOptions returns the production reconnect and retry policy.
func DefaultOptions() Options {
	return Options{
		Dialer:            websocket.DefaultDialer,
		ReconnectInitial:  time.Second,
		ReconnectMax:      30 * time.Second,
		ReconnectJitter:   0.5,
		SendRetryInterval: 500 * time.Millisecond,
		SendRetryLimit:    120,
		DisconnectAfter:   5,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Dialer == nil {
		o.Dialer = d.Dialer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = d.ReconnectInitial
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = d.ReconnectMax
	}
	if o.ReconnectMax < o.ReconnectInitial {
		o.ReconnectMax = o.ReconnectInitial
	}
	if o.ReconnectJitter < 0 || o.ReconnectJitter >= 1 {
		o.ReconnectJitter = d.ReconnectJitter
	}
	if o.SendRetryInterval <= 0 {
		o.SendRetryInterval = d.SendRetryInterval
	}
	if o.SendRetryLimit < 0 {
		o.SendRetryLimit = 0
	}
	if o.DisconnectAfter <= 0 {
		o.DisconnectAfter = d.DisconnectAfter
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}

// newBackoff builds the reconnect schedule: exponential from
// ReconnectInitial, capped at ReconnectMax, never giving up.
func (o Options) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.ReconnectInitial
	b.MaxInterval = o.ReconnectMax
	b.Multiplier = 2
	b.RandomizationFactor = o.ReconnectJitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
