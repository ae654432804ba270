package chatclient

import "github.com/gosuda/wifi-chat/chatwire"

// MessageStore owns the ordered conversation log. It is the single source
// of truth for rendering: the renderer only reads what the store signals.
// All mutation happens on the engine loop, so the store carries no locks.
type MessageStore struct {
	msgs     []chatwire.Message
	renderer Renderer
}

func NewMessageStore(r Renderer) *MessageStore {
	return &MessageStore{renderer: r}
}

// ReplaceAll discards the entire log and accepts msgs as-is, in delivered
// order. Used only for the bootstrap history payload; triggers a full
// repaint.
func (s *MessageStore) ReplaceAll(msgs []chatwire.Message) {
	s.msgs = append(s.msgs[:0:0], msgs...)
	s.renderer.RenderAll(s.Snapshot())
}

// Append adds one message at the tail. Order is arrival order, never
// adjusted locally; id uniqueness is the server's responsibility.
func (s *MessageStore) Append(m chatwire.Message) {
	s.msgs = append(s.msgs, m)
	s.renderer.RenderAppend(m)
}

// Tombstone marks the message with the given id as deleted, irreversibly
// replacing its content while keeping its position, author and timestamp.
// Unknown ids and already-tombstoned entries are silently absorbed: the
// deletion broadcast can race ahead of (or repeat after) our view of the
// log, and that race is expected.
func (s *MessageStore) Tombstone(id string) {
	for i := range s.msgs {
		if s.msgs[i].ID != id {
			continue
		}
		if s.msgs[i].Deleted {
			return
		}
		s.msgs[i].Tombstone()
		s.renderer.RenderUpdate(s.msgs[i])
		return
	}
}

// Get returns a copy of the message with the given id.
func (s *MessageStore) Get(id string) (chatwire.Message, bool) {
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return s.msgs[i], true
		}
	}
	return chatwire.Message{}, false
}

func (s *MessageStore) Len() int { return len(s.msgs) }

// Snapshot returns a copy of the log for readers outside the engine loop.
func (s *MessageStore) Snapshot() []chatwire.Message {
	return append([]chatwire.Message(nil), s.msgs...)
}
