// Package chatwire defines the JSON wire protocol shared by the chat server
// and the client engine: event names, the frame envelope, and the message
// shapes carried inside it.
package chatwire

import (
	"encoding/json"
	"fmt"
)

// Server -> client events.
const (
	EventUsernameAssigned = "username_assigned"
	EventMessageHistory   = "message_history"
	EventNewMessage       = "new_message"
	EventMessageDeleted   = "message_deleted"
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventUserTyping       = "user_typing"
)

// Client -> server events.
const (
	EventJoinChat      = "join_chat"
	EventSendMessage   = "send_message"
	EventDeleteMessage = "delete_message"
	EventTypingStart   = "typing_start"
	EventTypingStop    = "typing_stop"
)

// Message content types as sent in SendMessage.Type.
const (
	TypeText = "text"
	TypeFile = "file"
)

// DeletedPlaceholder replaces the body of a tombstoned message.
const DeletedPlaceholder = "This message was deleted"

// Envelope is one websocket frame: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for the given event.
// A nil data produces an envelope with no payload (typing_start/typing_stop).
func NewEnvelope(event string, data any) (Envelope, error) {
	env := Envelope{Event: event}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	env.Data = raw
	return env, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("decode %s payload: empty data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// Message is one conversation log entry. The id is server-assigned and
// opaque; Timestamp is RFC 3339. Exactly one content variant is live at a
// time: plain text, code (IsCode set, Language optional), or a file
// attachment (FileInfo set). A tombstoned message keeps its identity,
// author and timestamp but loses the original variant for good.
type Message struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"message"`
	Timestamp string    `json:"timestamp"`
	Deleted   bool      `json:"deleted"`
	IsCode    bool      `json:"is_code"`
	Language  string    `json:"language,omitempty"`
	FileInfo  *FileInfo `json:"file_info,omitempty"`
}

// Tombstone irreversibly replaces the content variant with the deletion
// placeholder. Identity, author and timestamp survive.
func (m *Message) Tombstone() {
	m.Deleted = true
	m.Body = DeletedPlaceholder
	m.IsCode = false
	m.Language = ""
	m.FileInfo = nil
}

// FileInfo describes a stored attachment as returned by the upload endpoint
// and carried inside file messages.
type FileInfo struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
	FileSize     int64  `json:"file_size"`
	URL          string `json:"url"`
}

// UsernameAssigned binds the server-chosen username to the device identity
// the client presented, and tells the client its per-connection identity so
// it can recognize its own messages.
type UsernameAssigned struct {
	Username string `json:"username"`
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
}

// MessageDeleted announces an authoritative tombstone.
type MessageDeleted struct {
	MessageID string `json:"message_id"`
}

// RoomPresence is the payload of user_joined and user_left.
type RoomPresence struct {
	User       string `json:"user"`
	UsersCount int    `json:"users_count"`
}

// UserTyping signals a remote typing state change.
type UserTyping struct {
	User   string `json:"user"`
	Typing bool   `json:"typing"`
}

// JoinChat requests room entry with the persisted device identity.
type JoinChat struct {
	DeviceID string `json:"device_id"`
}

// SendMessage is a locally authored outbound message before the server
// assigns id, author and timestamp.
type SendMessage struct {
	Body     string    `json:"message"`
	Type     string    `json:"type"`
	IsCode   bool      `json:"is_code"`
	Language string    `json:"language,omitempty"`
	FileInfo *FileInfo `json:"file_info,omitempty"`
}

// DeleteMessage requests an authoritative deletion. The requester's local
// view only tombstones once the message_deleted broadcast returns.
type DeleteMessage struct {
	MessageID string `json:"message_id"`
}
