package chatclient

import (
	"time"

	"github.com/gosuda/wifi-chat/chatwire"
)

// QuietInterval is how long after the last keystroke the typing-stop signal
// fires.
const QuietInterval = 1000 * time.Millisecond

// ScheduleFunc arms a one-shot timer. The callback must be delivered on the
// engine loop; the returned func cancels a timer that has not fired yet.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func())

// PresenceTracker handles both halves of typing presence.
//
// Local half: the first input change in a quiet period emits typing_start
// immediately; every change re-arms a single quiet timer whose firing emits
// typing_stop, so exactly one stop goes out per quiet period no matter how
// many keystrokes fed it. A successful send emits typing_stop at once,
// unconditionally, and disarms the timer.
//
// Remote half: the set of usernames currently typing, self excluded.
// Entries have no timeout; a peer that drops mid-word stays in the set
// until its typing=false arrives.
type PresenceTracker struct {
	emit      func(event string)
	indicator TypingIndicator
	schedule  ScheduleFunc
	quiet     time.Duration

	self      string
	signaling bool
	cancel    func()
	timerGen  uint64

	typing       map[string]struct{}
	lastSignaler string
}

func NewPresenceTracker(emit func(event string), indicator TypingIndicator, schedule ScheduleFunc) *PresenceTracker {
	return &PresenceTracker{
		emit:      emit,
		indicator: indicator,
		schedule:  schedule,
		quiet:     QuietInterval,
		typing:    make(map[string]struct{}),
	}
}

// SetSelf records the local username for self-exclusion.
func (p *PresenceTracker) SetSelf(username string) { p.self = username }

// InputChanged reacts to one local text-input change.
func (p *PresenceTracker) InputChanged() {
	if !p.signaling {
		p.signaling = true
		p.emit(chatwire.EventTypingStart)
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.timerGen++
	gen := p.timerGen
	p.cancel = p.schedule(p.quiet, func() { p.quietElapsed(gen) })
}

func (p *PresenceTracker) quietElapsed(gen uint64) {
	// A keystroke or send may have re-armed or stopped the cycle after this
	// firing was already queued.
	if gen != p.timerGen || !p.signaling {
		return
	}
	p.signaling = false
	p.cancel = nil
	p.emit(chatwire.EventTypingStop)
}

// MessageSent emits the stop immediately, bypassing the quiet timer. The
// stop goes out even when no start preceded it (a send with no tracked
// keystrokes, e.g. a pasted-and-sent line); the extra frame is harmless
// and keeps send unconditional on the wire.
func (p *PresenceTracker) MessageSent() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.timerGen++
	p.signaling = false
	p.emit(chatwire.EventTypingStop)
}

// HandleRemote applies one user_typing event to the presence set and
// refreshes the indicator.
func (p *PresenceTracker) HandleRemote(user string, typing bool) {
	if user == p.self {
		return
	}
	if typing {
		p.typing[user] = struct{}{}
		p.lastSignaler = user
	} else {
		delete(p.typing, user)
	}
	p.indicator.SetTypingIndicator(len(p.typing) > 0, p.lastSignaler)
}

// Reset drops all presence state; called when the channel goes down.
func (p *PresenceTracker) Reset() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.timerGen++
	p.signaling = false
	p.typing = make(map[string]struct{})
	p.lastSignaler = ""
	p.self = ""
	p.indicator.SetTypingIndicator(false, "")
}

// TypingUsers returns the current remote presence set.
func (p *PresenceTracker) TypingUsers() []string {
	out := make([]string, 0, len(p.typing))
	for u := range p.typing {
		out = append(out, u)
	}
	return out
}

// Visible reports whether the indicator should be shown: exactly the
// non-emptiness of the presence set after self-exclusion.
func (p *PresenceTracker) Visible() bool { return len(p.typing) > 0 }
