package main

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/wifi-chat/chatwire"
)

const (
	historyReplay  = 50
	memoryCap      = 1000
	sessionTTL     = 24 * time.Hour
	messageMaxAge  = 24 * time.Hour
	sweepInterval  = time.Hour
	deviceRoomName = "general"
)

// deviceSession binds an assigned username to a device hash so repeat
// visits keep their name without logging in.
type deviceSession struct {
	Username string
	JoinedAt time.Time
}

// client is one websocket connection. id is the per-connection identity
// stamped on its messages; username is set once join_chat arrives.
type client struct {
	conn     *websocket.Conn
	id       string
	username string
	writeMu  sync.Mutex
}

func (c *client) send(env chatwire.Envelope) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteJSON(env)
}

// hub is the authoritative room state: connected clients, device sessions,
// and the in-memory message log backed by the optional history store.
type hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	sessions map[string]*deviceSession
	messages []chatwire.Message
	store    *historyStore
	wg       sync.WaitGroup
}

func newHub() *hub {
	return &hub{
		clients:  map[*client]struct{}{},
		sessions: map[string]*deviceSession{},
		messages: make([]chatwire.Message, 0, 64),
	}
}

// attachStore connects the persistent history store.
func (h *hub) attachStore(s *historyStore) {
	h.mu.Lock()
	h.store = s
	h.mu.Unlock()
}

// bootstrap preloads persisted history into the in-memory log.
func (h *hub) bootstrap(msgs []chatwire.Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msgs...)
	if len(h.messages) > memoryCap {
		h.messages = h.messages[len(h.messages)-memoryCap:]
	}
	h.mu.Unlock()
}

func deviceHash(deviceID string) string {
	sum := sha256.Sum256([]byte(deviceID))
	return hex.EncodeToString(sum[:])
}

func newUsername() string {
	u := uuid.New()
	name := make([]byte, 8)
	hex.Encode(name, u[:4])
	for i, b := range name {
		if b >= 'a' {
			name[i] = b - 'a' + 'A'
		}
	}
	return "User_" + string(name)
}

// usernameFor resolves or creates the session for a device hash.
func (h *hub) usernameFor(hash string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[hash]; ok && time.Since(s.JoinedAt) < sessionTTL {
		return s.Username
	}
	name := newUsername()
	h.sessions[hash] = &deviceSession{Username: name, JoinedAt: time.Now()}
	return name
}

// joinedCount counts connections that completed join_chat.
func (h *hub) joinedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.username != "" {
			n++
		}
	}
	return n
}

// broadcast sends one event to every joined connection.
func (h *hub) broadcast(event string, data any) {
	env, err := chatwire.NewEnvelope(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("[chat] broadcast encode")
		return
	}
	h.mu.RLock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.username != "" {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.send(env)
	}
}

// broadcastExcept sends to every joined connection but the sender; typing
// relays never echo back.
func (h *hub) broadcastExcept(sender *client, event string, data any) {
	env, err := chatwire.NewEnvelope(event, data)
	if err != nil {
		return
	}
	h.mu.RLock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c != sender && c.username != "" {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.send(env)
	}
}

// handleJoin replays recent history to the joining connection, assigns its
// username, and announces it to the room. History always precedes the
// assignment and any later broadcast on this connection's channel.
func (h *hub) handleJoin(c *client, data chatwire.JoinChat) {
	deviceID := data.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	username := h.usernameFor(deviceHash(deviceID))

	h.mu.Lock()
	c.username = username
	recent := h.messages
	if len(recent) > historyReplay {
		recent = recent[len(recent)-historyReplay:]
	}
	backlog := append([]chatwire.Message(nil), recent...)
	h.mu.Unlock()

	if env, err := chatwire.NewEnvelope(chatwire.EventMessageHistory, backlog); err == nil {
		c.send(env)
	}
	if env, err := chatwire.NewEnvelope(chatwire.EventUsernameAssigned, chatwire.UsernameAssigned{
		Username: username,
		DeviceID: deviceID,
		UserID:   c.id,
	}); err == nil {
		c.send(env)
	}
	h.broadcast(chatwire.EventUserJoined, chatwire.RoomPresence{User: username, UsersCount: h.joinedCount()})
	log.Info().Str("user", username).Msgf("[chat] joined room %s", deviceRoomName)
}

func (h *hub) handleSend(c *client, data chatwire.SendMessage) {
	if data.FileInfo != nil {
		data.FileInfo.OriginalName = sanitizeDisplayName(data.FileInfo.OriginalName)
	}
	msg := chatwire.Message{
		ID:        uuid.NewString(),
		User:      c.username,
		UserID:    c.id,
		Body:      data.Body,
		Timestamp: time.Now().Format(time.RFC3339),
		IsCode:    data.IsCode,
		Language:  data.Language,
		FileInfo:  data.FileInfo,
	}
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	if len(h.messages) > memoryCap {
		h.messages = h.messages[len(h.messages)-memoryCap:]
	}
	store := h.store
	h.mu.Unlock()

	if store != nil {
		if err := store.Append(msg); err != nil {
			log.Debug().Err(err).Msg("[chat] persist message")
		}
	}
	h.broadcast(chatwire.EventNewMessage, msg)
}

// handleDelete tombstones the message in place if, and only if, it belongs
// to the requesting connection. The requester converges through the same
// broadcast as everyone else.
func (h *hub) handleDelete(c *client, data chatwire.DeleteMessage) {
	h.mu.Lock()
	var found bool
	for i := range h.messages {
		if h.messages[i].ID == data.MessageID && h.messages[i].UserID == c.id {
			h.messages[i].Tombstone()
			found = true
			break
		}
	}
	store := h.store
	h.mu.Unlock()

	if !found {
		return
	}
	if store != nil {
		if err := store.MarkDeleted(data.MessageID); err != nil {
			log.Debug().Err(err).Msg("[chat] persist tombstone")
		}
	}
	h.broadcast(chatwire.EventMessageDeleted, chatwire.MessageDeleted{MessageID: data.MessageID})
}

func (h *hub) handleTyping(c *client, typing bool) {
	h.broadcastExcept(c, chatwire.EventUserTyping, chatwire.UserTyping{User: c.username, Typing: typing})
}

// sweep drops messages past the retention window and expired device
// sessions. Runs hourly.
func (h *hub) sweep() {
	cutoff := time.Now().Add(-messageMaxAge)
	h.mu.Lock()
	kept := h.messages[:0]
	for _, m := range h.messages {
		// An unparseable timestamp ages out too; it could never expire
		// otherwise, and the store sweep applies the same rule.
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil || ts.Before(cutoff) {
			continue
		}
		kept = append(kept, m)
	}
	h.messages = kept
	for hash, s := range h.sessions {
		if time.Since(s.JoinedAt) > sessionTTL {
			delete(h.sessions, hash)
		}
	}
	store := h.store
	h.mu.Unlock()

	if store != nil {
		if err := store.Sweep(messageMaxAge); err != nil {
			log.Warn().Err(err).Msg("[chat] history sweep")
		}
	}
}

// closeAll force-closes all active connections during shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		c.writeMu.Unlock()
	}
}

// wait blocks until all connection goroutines have finished.
func (h *hub) wait() {
	h.wg.Wait()
}

func handleWS(w http.ResponseWriter, r *http.Request, h *hub) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, id: uuid.NewString()}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, c)
			joined := c.username != ""
			h.mu.Unlock()
			if joined {
				h.broadcast(chatwire.EventUserLeft, chatwire.RoomPresence{User: c.username, UsersCount: h.joinedCount()})
				log.Info().Str("user", c.username).Msg("[chat] left")
			}
			_ = conn.Close()
			h.wg.Done()
		}()
		for {
			var env chatwire.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			switch env.Event {
			case chatwire.EventJoinChat:
				var data chatwire.JoinChat
				_ = env.Decode(&data)
				h.handleJoin(c, data)
			case chatwire.EventSendMessage:
				if c.username == "" {
					continue
				}
				var data chatwire.SendMessage
				if err := env.Decode(&data); err != nil {
					continue
				}
				h.handleSend(c, data)
			case chatwire.EventDeleteMessage:
				if c.username == "" {
					continue
				}
				var data chatwire.DeleteMessage
				if err := env.Decode(&data); err != nil {
					continue
				}
				h.handleDelete(c, data)
			case chatwire.EventTypingStart:
				if c.username != "" {
					h.handleTyping(c, true)
				}
			case chatwire.EventTypingStop:
				if c.username != "" {
					h.handleTyping(c, false)
				}
			}
		}
	}()
}
