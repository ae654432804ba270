package chatclient

import "github.com/gosuda/wifi-chat/chatwire"

// The engine paints through these surfaces. All calls arrive on the engine
// loop, so implementations must not block and must not call back into the
// engine synchronously.

// Renderer receives region-scoped repaint signals from the message store:
// a full repaint on bootstrap, incremental signals for append and tombstone.
type Renderer interface {
	RenderAll(msgs []chatwire.Message)
	RenderAppend(msg chatwire.Message)
	RenderUpdate(msg chatwire.Message)
}

// ConnectivityIndicator is toggled on every connection state transition.
type ConnectivityIndicator interface {
	SetConnected(connected bool)
}

// TypingIndicator shows whether anyone else is typing. The user named is
// the most recent signaler, not the whole presence set.
type TypingIndicator interface {
	SetTypingIndicator(visible bool, user string)
}

// ProgressSurface is the single shared upload progress indicator. Concurrent
// uploads overwrite each other's fraction here, last writer wins.
type ProgressSurface interface {
	ShowUploadProgress(name string, fraction float64)
	HideUploadProgress()
}

// MenuSurface displays the per-message context menu.
type MenuSurface interface {
	ShowContextMenu(m Menu)
	HideContextMenu()
}

// Notifier carries the remaining user-visible signals.
type Notifier interface {
	SetUsername(name string)
	SetOnlineCount(n int)
	ShowError(text string)
}

// UI is everything a host must implement to render the session.
type UI interface {
	Renderer
	ConnectivityIndicator
	TypingIndicator
	ProgressSurface
	MenuSurface
	Notifier
}

// Clipboard receives the raw text of copied messages.
type Clipboard interface {
	WriteText(text string) error
}
