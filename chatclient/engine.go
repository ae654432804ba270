// Package chatclient is the conversation synchronization and interaction
// engine: it keeps a local view of the shared room consistent with the
// authoritative server and layers content classification, typing presence,
// context-menu actions and file upload on top.
//
// Everything runs on one reactor goroutine. Inbound frames, timer firings,
// upload progress callbacks and host input all execute as discrete,
// non-overlapping reactions, so the engine's state needs no locking; the
// only suspension points are the network and file-transfer awaits inside
// Conn and UploadCoordinator, which re-enter through the loop.
package chatclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/wifi-chat/chatwire"
	"github.com/gosuda/wifi-chat/classify"
)

// Config carries the engine's endpoints and identity.
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://192.168.0.10:5000/ws.
	ServerURL string
	// UploadURL is the upload endpoint, e.g. http://192.168.0.10:5000/upload.
	UploadURL string
	// DeviceID is the durable device identity (see LoadOrCreateDeviceID).
	DeviceID string
	// HTTPClient is used for uploads; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Engine wires the components together and runs the reactor loop. Host
// methods (SendText, InputChanged, Gesture, ...) are safe from any
// goroutine once Run has started.
type Engine struct {
	cfg   Config
	ui    UI
	tasks chan func()
	done  chan struct{}

	conn     *Conn
	store    *MessageStore
	presence *PresenceTracker
	uploads  *UploadCoordinator
	menu     *ContextMenu

	session *Session
}

func New(cfg Config, ui UI, clipboard Clipboard) *Engine {
	e := &Engine{
		cfg:   cfg,
		ui:    ui,
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	e.store = NewMessageStore(ui)
	e.conn = newConn(cfg.ServerURL, ui, e.post)
	e.conn.onConnected = e.onConnected
	e.conn.onDisconnected = e.onDisconnected
	e.conn.onEvent = e.handleEvent
	e.presence = NewPresenceTracker(
		func(event string) {
			if err := e.conn.Emit(event, nil); err != nil {
				log.Debug().Err(err).Str("event", event).Msg("[chat] typing signal dropped")
			}
		},
		ui,
		e.scheduleOnLoop,
	)
	e.uploads = NewUploadCoordinator(cfg.UploadURL, cfg.HTTPClient, ui, ui, e.conn.Emit, e.post)
	e.menu = NewContextMenu(e.store, clipboard, e.conn.Emit, e.selfID, ui)
	return e
}

// Run starts the connection and processes reactions until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		e.conn.Run(ctx)
	}()
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-ctx.Done():
			// Keep draining until the connection goroutine has posted its
			// final transitions, or its post would block forever.
			for {
				select {
				case fn := <-e.tasks:
					fn()
				case <-connDone:
					return ctx.Err()
				}
			}
		}
	}
}

// post queues one reaction onto the loop. Once the loop has stopped the
// reaction is dropped instead of blocking; stragglers like an in-flight
// upload's progress callbacks have nowhere to land after shutdown.
func (e *Engine) post(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.done:
	}
}

// scheduleOnLoop arms a timer whose callback re-enters through the loop.
func (e *Engine) scheduleOnLoop(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { e.post(fn) })
	return func() { t.Stop() }
}

func (e *Engine) selfID() string {
	if e.session == nil {
		return ""
	}
	return e.session.UserID
}

// call runs fn on the loop and waits for its result. After shutdown the
// reaction will never run, so callers get ErrNotConnected instead of a
// hang.
func (e *Engine) call(fn func() error) error {
	res := make(chan error, 1)
	e.post(func() { res <- fn() })
	select {
	case err := <-res:
		return err
	case <-e.done:
		// The reaction may still have run just before the loop stopped.
		select {
		case err := <-res:
			return err
		default:
			return ErrNotConnected
		}
	}
}

// SendText classifies and sends one locally authored message. While
// disconnected it returns ErrNotConnected and sends nothing; the host
// should keep the draft.
func (e *Engine) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return e.call(func() error {
		verdict := classify.Classify(text)
		out := chatwire.SendMessage{
			Body:     text,
			Type:     chatwire.TypeText,
			IsCode:   verdict.IsCode,
			Language: verdict.Language,
		}
		if err := e.conn.Emit(chatwire.EventSendMessage, out); err != nil {
			if err == ErrNotConnected {
				e.ui.ShowError("not connected; message not sent")
			}
			return err
		}
		e.presence.MessageSent()
		return nil
	})
}

// InputChanged reports one local text-input change for typing presence.
func (e *Engine) InputChanged() {
	e.post(e.presence.InputChanged)
}

// Upload starts one independent upload for the file at path.
func (e *Engine) Upload(path string) <-chan error {
	return e.uploads.Upload(path)
}

// Gesture feeds one secondary-activation or dismissal gesture to the
// context menu.
func (e *Engine) Gesture(g Gesture) {
	e.post(func() { e.menu.HandleGesture(g) })
}

// MenuSelect performs an action of the open context menu.
func (e *Engine) MenuSelect(action MenuAction) error {
	return e.call(func() error { return e.menu.Select(action) })
}

// Messages returns a snapshot of the conversation log.
func (e *Engine) Messages() []chatwire.Message {
	var snap []chatwire.Message
	_ = e.call(func() error {
		snap = e.store.Snapshot()
		return nil
	})
	return snap
}

// onConnected starts a fresh session and joins the room. The server replies
// with the full history, so nothing from before the (re)connect needs to be
// merged: the bootstrap replace wipes it.
func (e *Engine) onConnected() {
	e.session = &Session{DeviceID: e.cfg.DeviceID}
	if err := e.conn.Emit(chatwire.EventJoinChat, chatwire.JoinChat{DeviceID: e.cfg.DeviceID}); err != nil {
		log.Warn().Err(err).Msg("[chat] join failed")
	}
}

// onDisconnected tears down everything the session held; whatever arrives
// after reconnecting starts from a clean slate.
func (e *Engine) onDisconnected() {
	e.session = nil
	e.presence.Reset()
	e.menu.Dismiss()
}

// handleEvent dispatches one inbound frame. Reaction bodies stay short; any
// real waiting happens in Conn or UploadCoordinator.
func (e *Engine) handleEvent(env chatwire.Envelope) {
	switch env.Event {
	case chatwire.EventUsernameAssigned:
		var data chatwire.UsernameAssigned
		if err := env.Decode(&data); err != nil {
			log.Warn().Err(err).Msg("[chat] bad frame")
			return
		}
		if e.session == nil {
			e.session = &Session{DeviceID: e.cfg.DeviceID}
		}
		e.session.Username = data.Username
		e.session.UserID = data.UserID
		e.presence.SetSelf(data.Username)
		e.ui.SetUsername(data.Username)

	case chatwire.EventMessageHistory:
		var msgs []chatwire.Message
		if err := env.Decode(&msgs); err != nil {
			log.Warn().Err(err).Msg("[chat] bad frame")
			return
		}
		e.store.ReplaceAll(msgs)

	case chatwire.EventNewMessage:
		var msg chatwire.Message
		if err := env.Decode(&msg); err != nil {
			log.Warn().Err(err).Msg("[chat] bad frame")
			return
		}
		e.store.Append(msg)

	case chatwire.EventMessageDeleted:
		var data chatwire.MessageDeleted
		if err := env.Decode(&data); err != nil {
			log.Warn().Err(err).Msg("[chat] bad frame")
			return
		}
		e.store.Tombstone(data.MessageID)

	case chatwire.EventUserJoined, chatwire.EventUserLeft:
		var data chatwire.RoomPresence
		if err := env.Decode(&data); err != nil {
			log.Warn().Err(err).Msg("[chat] bad frame")
			return
		}
		e.ui.SetOnlineCount(data.UsersCount)

	case chatwire.EventUserTyping:
		var data chatwire.UserTyping
		if err := env.Decode(&data); err != nil {
			log.Warn().Err(err).Msg("[chat] bad frame")
			return
		}
		e.presence.HandleRemote(data.User, data.Typing)

	default:
		log.Debug().Str("event", env.Event).Msg("[chat] unknown event")
	}
}
