package core

import (
	"sync"
	"time"

	"github.com/vovakirdan/strangerchat/internal/proto"
)

// DefaultTypingTimeout is the inactivity period after which stopTyping is sent.
const DefaultTypingTimeout = 2 * time.Second

// Signal is a typing presence notification for the peer.
type Signal int

const (
	// SignalTyping tells the peer the local user started typing.
	SignalTyping Signal = iota + 1
	// SignalStopTyping tells the peer the local user stopped typing.
	SignalStopTyping
)

// Event returns the protocol event carrying the signal.
func (s Signal) Event() proto.ClientEvent {
	if s == SignalTyping {
		return proto.Typing{}
	}
	return proto.StopTyping{}
}

// Timer is a pending deferred action.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through RealAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc runs f on its own goroutine after d.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// TypingSignaler debounces local keystrokes into typing/stopTyping signals.
//
// It owns a single countdown. Every keystroke cancels and replaces it. When the
// countdown elapses the signaler calls onExpire with the countdown token; the
// owner then calls Expire with that token from its own goroutine, so a stale
// countdown that fired while being replaced is recognised and ignored.
type TypingSignaler struct {
	mu       sync.Mutex
	delay    time.Duration
	after    AfterFunc
	onExpire func(token uint64)

	timer  Timer
	token  uint64
	active bool
}

// NewTypingSignaler builds a signaler. A zero delay uses DefaultTypingTimeout and
// a nil after uses RealAfterFunc.
func NewTypingSignaler(delay time.Duration, after AfterFunc, onExpire func(token uint64)) *TypingSignaler {
	if delay <= 0 {
		delay = DefaultTypingTimeout
	}
	if after == nil {
		after = RealAfterFunc
	}
	if onExpire == nil {
		onExpire = func(uint64) {}
	}
	return &TypingSignaler{delay: delay, after: after, onExpire: onExpire}
}

// Keystroke restarts the countdown and returns SignalTyping when the user was idle.
func (t *TypingSignaler) Keystroke() (Signal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := !t.active
	t.active = true

	if t.timer != nil {
		t.timer.Stop()
	}
	t.token++
	token := t.token
	t.timer = t.after(t.delay, func() { t.onExpire(token) })

	if start {
		return SignalTyping, true
	}
	return 0, false
}

// Expire handles a fired countdown and returns SignalStopTyping exactly once per burst.
func (t *TypingSignaler) Expire(token uint64) (Signal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active || token != t.token {
		return 0, false
	}
	t.active = false
	t.timer = nil
	return SignalStopTyping, true
}

// Stop cancels the countdown. It returns SignalStopTyping only if one was pending.
func (t *TypingSignaler) Stop() (Signal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.token++

	if !t.active {
		return 0, false
	}
	t.active = false
	return SignalStopTyping, true
}

// Active reports whether a typing burst is in progress.
func (t *TypingSignaler) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
