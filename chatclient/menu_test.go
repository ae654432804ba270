package chatclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/wifi-chat/chatwire"
)

func newMenuForTest(selfID string) (*ContextMenu, *MessageStore, *recordedEmit, *fakeClipboard, *fakeUI) {
	ui := &fakeUI{}
	store := NewMessageStore(ui)
	emit := &recordedEmit{}
	clip := &fakeClipboard{}
	menu := NewContextMenu(store, clip, emit.emit, func() string { return selfID }, ui)
	return menu, store, emit, clip, ui
}

func TestDeleteOfferedOnlyForOwnLiveMessages(t *testing.T) {
	menu, store, _, _, ui := newMenuForTest("me")
	store.Append(msg("mine", "me", "hi"))
	store.Append(msg("theirs", "them", "yo"))
	tomb := msg("gone", "me", "old")
	tomb.Tombstone()
	store.Append(tomb)

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "mine", X: 10, Y: 20})
	require.NotNil(t, menu.Open())
	assert.Equal(t, []MenuAction{ActionCopy, ActionDelete}, menu.Open().Actions)
	assert.Equal(t, 10, menu.Open().X)
	assert.Equal(t, 20, menu.Open().Y)

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "theirs"})
	assert.Equal(t, []MenuAction{ActionCopy}, menu.Open().Actions)

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "gone"})
	assert.Equal(t, []MenuAction{ActionCopy}, menu.Open().Actions)

	assert.Len(t, ui.menus, 3)
}

func TestTouchHoldThreshold(t *testing.T) {
	menu, store, _, _, _ := newMenuForTest("me")
	store.Append(msg("m1", "me", "hi"))

	menu.HandleGesture(Gesture{Kind: GestureTouchHold, MessageID: "m1", Held: 499 * time.Millisecond})
	assert.Nil(t, menu.Open())

	menu.HandleGesture(Gesture{Kind: GestureTouchHold, MessageID: "m1", Held: TouchHoldThreshold})
	assert.NotNil(t, menu.Open())
}

func TestSecondGestureReplacesOpenMenu(t *testing.T) {
	menu, store, _, _, _ := newMenuForTest("me")
	store.Append(msg("m1", "me", "one"))
	store.Append(msg("m2", "them", "two"))

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "m1"})
	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "m2"})

	require.NotNil(t, menu.Open())
	assert.Equal(t, "m2", menu.Open().MessageID)
}

func TestOutsideInteractionDismisses(t *testing.T) {
	menu, store, _, _, ui := newMenuForTest("me")
	store.Append(msg("m1", "me", "hi"))

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "m1"})
	menu.HandleGesture(Gesture{Kind: GestureOutside})
	assert.Nil(t, menu.Open())
	assert.Equal(t, 1, ui.menuHides)

	// Dismissing with nothing open is a no-op.
	menu.HandleGesture(Gesture{Kind: GestureOutside})
	assert.Equal(t, 1, ui.menuHides)
}

func TestGestureOnUnknownMessageOpensNothing(t *testing.T) {
	menu, _, _, _, ui := newMenuForTest("me")
	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "ghost"})
	assert.Nil(t, menu.Open())
	assert.Empty(t, ui.menus)
}

func TestCopyCopiesRawSourceText(t *testing.T) {
	menu, store, emit, clip, _ := newMenuForTest("me")
	code := msg("c1", "them", "def foo():\n    return 1")
	code.IsCode = true
	code.Language = "python"
	store.Append(code)

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "c1"})
	require.NoError(t, menu.Select(ActionCopy))

	require.Equal(t, []string{"def foo():\n    return 1"}, clip.texts)
	assert.Empty(t, emit.events, "copy is purely local")
	assert.Nil(t, menu.Open())
}

func TestDeleteOnlySendsRequest(t *testing.T) {
	menu, store, emit, _, _ := newMenuForTest("me")
	store.Append(msg("m1", "me", "hi"))

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "m1"})
	require.NoError(t, menu.Select(ActionDelete))

	require.Equal(t, []string{chatwire.EventDeleteMessage}, emit.events)
	assert.Equal(t, chatwire.DeleteMessage{MessageID: "m1"}, emit.data[0])

	// Not optimistic: the local entry stays live until the broadcast
	// returns through the event path.
	got, _ := store.Get("m1")
	assert.False(t, got.Deleted)
}

func TestSelectUnofferedActionIsNoOp(t *testing.T) {
	menu, store, emit, _, _ := newMenuForTest("me")
	store.Append(msg("theirs", "them", "yo"))

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "theirs"})
	require.NoError(t, menu.Select(ActionDelete))
	assert.Empty(t, emit.events)
}

func TestDeleteRechecksStateAtSelection(t *testing.T) {
	menu, store, emit, _, _ := newMenuForTest("me")
	store.Append(msg("m1", "me", "hi"))

	menu.HandleGesture(Gesture{Kind: GesturePointerSecondary, MessageID: "m1"})
	// The authoritative tombstone lands while the menu is open.
	store.Tombstone("m1")

	require.NoError(t, menu.Select(ActionDelete))
	assert.Empty(t, emit.events, "no request for an already-tombstoned message")
}

func TestSelectWithNoMenuOpen(t *testing.T) {
	menu, _, emit, clip, _ := newMenuForTest("me")
	require.NoError(t, menu.Select(ActionCopy))
	assert.Empty(t, emit.events)
	assert.Empty(t, clip.texts)
}
