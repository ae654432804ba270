package chatclient

import (
	"sync"

	"github.com/gosuda/wifi-chat/chatwire"
)

// fakeUI records every surface call. The mutex lets tests that exercise
// upload goroutines read it safely.
type fakeUI struct {
	mu sync.Mutex

	renderAll    [][]chatwire.Message
	appended     []chatwire.Message
	updated      []chatwire.Message
	connected    []bool
	typing       []typingSignal
	progress     []progressSignal
	progressHide int
	menus        []Menu
	menuHides    int
	usernames    []string
	onlineCounts []int
	errors       []string
}

type typingSignal struct {
	visible bool
	user    string
}

type progressSignal struct {
	name     string
	fraction float64
}

func (f *fakeUI) RenderAll(msgs []chatwire.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderAll = append(f.renderAll, msgs)
}

func (f *fakeUI) RenderAppend(m chatwire.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, m)
}

func (f *fakeUI) RenderUpdate(m chatwire.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, m)
}

func (f *fakeUI) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, connected)
}

func (f *fakeUI) SetTypingIndicator(visible bool, user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typingSignal{visible, user})
}

func (f *fakeUI) ShowUploadProgress(name string, fraction float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, progressSignal{name, fraction})
}

func (f *fakeUI) HideUploadProgress() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressHide++
}

func (f *fakeUI) ShowContextMenu(m Menu) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus = append(f.menus, m)
}

func (f *fakeUI) HideContextMenu() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menuHides++
}

func (f *fakeUI) SetUsername(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usernames = append(f.usernames, name)
}

func (f *fakeUI) SetOnlineCount(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onlineCounts = append(f.onlineCounts, n)
}

func (f *fakeUI) ShowError(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
}

func (f *fakeUI) lastTyping() (typingSignal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.typing) == 0 {
		return typingSignal{}, false
	}
	return f.typing[len(f.typing)-1], true
}

type fakeClipboard struct {
	texts []string
	err   error
}

func (c *fakeClipboard) WriteText(text string) error {
	if c.err != nil {
		return c.err
	}
	c.texts = append(c.texts, text)
	return nil
}

// recordedEmit captures outbound events instead of writing to a channel.
type recordedEmit struct {
	events []string
	data   []any
	err    error
}

func (r *recordedEmit) emit(event string, data any) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	r.data = append(r.data, data)
	return nil
}

func msg(id, userID, body string) chatwire.Message {
	return chatwire.Message{
		ID:        id,
		User:      "User_" + userID,
		UserID:    userID,
		Body:      body,
		Timestamp: "2026-08-30T12:00:00Z",
	}
}
