package chatclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/wifi-chat/chatwire"
)

// ErrNotConnected is returned by Emit while the channel is down. Sends are
// rejected rather than buffered: the reconnect path replaces the whole log
// anyway, so a buffered send could not be ordered meaningfully.
var ErrNotConnected = errors.New("chat: not connected")

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

const (
	dialBackoffMin = time.Second
	dialBackoffMax = 30 * time.Second
)

// Conn owns the persistent channel to the server. It redials forever with
// capped backoff, toggles the connectivity indicator on every transition,
// and posts inbound frames onto the engine loop in delivery order. State
// and the underlying socket are only touched from the loop.
type Conn struct {
	url       string
	dialer    *websocket.Dialer
	indicator ConnectivityIndicator
	post      func(fn func())

	// Loop-side lifecycle hooks: join + session start, stale-state teardown,
	// frame dispatch.
	onConnected    func()
	onDisconnected func()
	onEvent        func(env chatwire.Envelope)

	state ConnState
	ws    *websocket.Conn
}

func newConn(url string, indicator ConnectivityIndicator, post func(func())) *Conn {
	return &Conn{
		url:       url,
		dialer:    websocket.DefaultDialer,
		indicator: indicator,
		post:      post,
	}
}

// Run dials, reads, and redials until ctx is cancelled.
func (c *Conn) Run(ctx context.Context) {
	backoff := dialBackoffMin
	for ctx.Err() == nil {
		c.post(func() { c.setState(StateConnecting) })
		ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.post(func() { c.setState(StateDisconnected) })
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Str("url", c.url).Msg("[chat] dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > dialBackoffMax {
				backoff = dialBackoffMax
			}
			continue
		}
		backoff = dialBackoffMin

		stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
		c.post(func() {
			c.ws = ws
			c.setState(StateConnected)
			c.onConnected()
		})
		c.readLoop(ws)
		stop()
		_ = ws.Close()
		c.post(func() {
			c.ws = nil
			c.setState(StateDisconnected)
			c.onDisconnected()
		})
	}
}

// readLoop delivers frames until the channel drops. Frames reach the engine
// strictly in the order the channel produced them.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		var env chatwire.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			log.Debug().Err(err).Msg("[chat] channel closed")
			return
		}
		c.post(func() { c.onEvent(env) })
	}
}

// Emit sends one event frame. Loop-side only.
func (c *Conn) Emit(event string, data any) error {
	if c.state != StateConnected || c.ws == nil {
		return ErrNotConnected
	}
	env, err := chatwire.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	if err := c.ws.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// State reports the connection state. Loop-side only.
func (c *Conn) State() ConnState { return c.state }

func (c *Conn) setState(s ConnState) {
	if c.state == s {
		return
	}
	c.state = s
	c.indicator.SetConnected(s == StateConnected)
}
