package chatclient

import (
	"time"

	"github.com/gosuda/wifi-chat/chatwire"
	"github.com/rs/zerolog/log"
)

// TouchHoldThreshold is how long a touch must be held over a message to
// count as a secondary activation.
const TouchHoldThreshold = 500 * time.Millisecond

type GestureKind int

const (
	// GesturePointerSecondary is a pointer right-click.
	GesturePointerSecondary GestureKind = iota
	// GestureTouchHold is a sustained touch; Gesture.Held carries its
	// duration.
	GestureTouchHold
	// GestureOutside is any interaction outside an open menu.
	GestureOutside
)

// Gesture is one secondary-activation (or dismissal) event over the log.
type Gesture struct {
	Kind      GestureKind
	MessageID string
	X, Y      int
	Held      time.Duration
}

type MenuAction string

const (
	ActionCopy   MenuAction = "copy"
	ActionDelete MenuAction = "delete"
)

// Menu is the ephemeral action surface for one message, positioned at the
// interaction point. Actions it does not list are absent, not disabled.
type Menu struct {
	MessageID string
	X, Y      int
	Actions   []MenuAction
}

func (m Menu) offers(a MenuAction) bool {
	for _, act := range m.Actions {
		if act == a {
			return true
		}
	}
	return false
}

// ContextMenu opens at most one action menu over the message log and
// dispatches its actions. Deletion is not optimistic: selecting delete only
// sends the request, and the log tombstones when the authoritative
// message_deleted broadcast comes back.
type ContextMenu struct {
	store     *MessageStore
	clipboard Clipboard
	emit      func(event string, data any) error
	selfID    func() string
	surface   MenuSurface
	open      *Menu
}

func NewContextMenu(store *MessageStore, clipboard Clipboard, emit func(string, any) error, selfID func() string, surface MenuSurface) *ContextMenu {
	return &ContextMenu{store: store, clipboard: clipboard, emit: emit, selfID: selfID, surface: surface}
}

// HandleGesture opens, replaces, or dismisses the menu for one gesture.
func (c *ContextMenu) HandleGesture(g Gesture) {
	switch g.Kind {
	case GestureOutside:
		c.Dismiss()
		return
	case GestureTouchHold:
		if g.Held < TouchHoldThreshold {
			return
		}
	case GesturePointerSecondary:
	default:
		return
	}

	msg, ok := c.store.Get(g.MessageID)
	if !ok {
		return
	}
	menu := &Menu{
		MessageID: msg.ID,
		X:         g.X,
		Y:         g.Y,
		Actions:   []MenuAction{ActionCopy},
	}
	// Delete is offered only for our own, still-live messages; for anyone
	// else's it does not exist at all.
	if msg.UserID != "" && msg.UserID == c.selfID() && !msg.Deleted {
		menu.Actions = append(menu.Actions, ActionDelete)
	}
	c.open = menu
	c.surface.ShowContextMenu(*menu)
}

// Open returns the currently open menu, if any.
func (c *ContextMenu) Open() *Menu { return c.open }

// Dismiss closes the menu without selecting anything.
func (c *ContextMenu) Dismiss() {
	if c.open == nil {
		return
	}
	c.open = nil
	c.surface.HideContextMenu()
}

// Select performs one of the open menu's actions and closes it. The message
// is re-fetched first: it may have been tombstoned since the menu opened.
func (c *ContextMenu) Select(action MenuAction) error {
	menu := c.open
	if menu == nil || !menu.offers(action) {
		return nil
	}
	c.open = nil
	c.surface.HideContextMenu()

	msg, ok := c.store.Get(menu.MessageID)
	if !ok {
		return nil
	}
	switch action {
	case ActionCopy:
		// Raw source text, never rendered markup.
		return c.clipboard.WriteText(msg.Body)
	case ActionDelete:
		if msg.Deleted || msg.UserID != c.selfID() {
			return nil
		}
		if err := c.emit(chatwire.EventDeleteMessage, chatwire.DeleteMessage{MessageID: msg.ID}); err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("[chat] delete request failed")
			return err
		}
	}
	return nil
}
