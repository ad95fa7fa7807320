package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/strangerchat/internal/proto"
	"github.com/vovakirdan/strangerchat/internal/store"
)

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	d       time.Duration
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f, d: d}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// pending returns timers that were neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireAll elapses every pending timer.
func (c *fakeClock) fireAll() int {
	timers := c.pending()
	for _, t := range timers {
		c.mu.Lock()
		t.fired = true
		c.mu.Unlock()
		t.f()
	}
	return len(timers)
}

// fakeChannel records sent events and lets the test inject server events.
type fakeChannel struct {
	mu      sync.Mutex
	sent    []proto.ClientEvent
	events  chan proto.ServerEvent
	closed  bool
	err     error
	sendErr error
	once    sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan proto.ServerEvent, 32)}
}

func (c *fakeChannel) Send(ev proto.ClientEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, ev)
	return nil
}

func (c *fakeChannel) Events() <-chan proto.ServerEvent { return c.events }

func (c *fakeChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.once.Do(func() { close(c.events) })
	return nil
}

// drop simulates the server going away.
func (c *fakeChannel) drop(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.once.Do(func() { close(c.events) })
}

func (c *fakeChannel) push(ev proto.ServerEvent) {
	c.events <- ev
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) sentEvents() []proto.ClientEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]proto.ClientEvent(nil), c.sent...)
}

func (c *fakeChannel) sentNames() []string {
	var names []string
	for _, ev := range c.sentEvents() {
		names = append(names, ev.EventName())
	}
	return names
}

// fakeDialer returns a fresh fakeChannel per dial, or err when set.
type fakeDialer struct {
	mu       sync.Mutex
	err      error
	channels []*fakeChannel
}

func (d *fakeDialer) Dial(context.Context) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	ch := newFakeChannel()
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

func (d *fakeDialer) last() *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}

// failingKV fails every operation.
type failingKV struct{}

var errStorageDown = errors.New("storage down")

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errStorageDown }
func (failingKV) Set(context.Context, string, string) error         { return errStorageDown }
func (failingKV) Remove(context.Context, string) error              { return errStorageDown }
func (failingKV) Close() error                                      { return nil }

type testSession struct {
	*Session
	dialer *fakeDialer
	clock  *fakeClock
	kv     *store.Memory
}

type sessionSetup struct {
	interests  []string
	agreed     bool
	privileged bool
	banned     []string
	sanitizer  Sanitizer
}

func startSession(t *testing.T, setup sessionSetup) *testSession {
	t.Helper()

	ctx := context.Background()
	kv := store.NewMemory()
	if setup.interests != nil {
		ids := NewIdentityStore(kv, nil)
		ids.Load(ctx)
		ids.SetInterests(ctx, setup.interests)
	}
	if setup.agreed {
		_ = kv.Set(ctx, KeyAgreement, "true")
	}
	if setup.privileged {
		_ = kv.Set(ctx, KeyPrivileged, "true")
	}

	dialer := &fakeDialer{}
	clock := &fakeClock{}
	sanitizer := setup.sanitizer
	if sanitizer == nil {
		sanitizer = SanitizerFunc(maskWords)
	}

	s := NewSession(Options{
		Identity:  NewIdentityStore(kv, nil),
		Dialer:    dialer,
		Pipeline:  NewPipeline(sanitizer, setup.banned),
		AfterFunc: clock.AfterFunc,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(runCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testSession{Session: s, dialer: dialer, clock: clock, kv: kv}
}

// maskWords replaces every exact banned word with asterisks.
func maskWords(text string, banned []string) string {
	for _, w := range banned {
		if text == w {
			return strings.Repeat("*", len(w))
		}
	}
	return text
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (ts *testSession) waitState(t *testing.T, want State) Snapshot {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return ts.Snapshot().State == want })
	return ts.Snapshot()
}

// connected drives the session to WaitingForMatch and returns its channel.
func (ts *testSession) connected(t *testing.T) *fakeChannel {
	t.Helper()

	dials := ts.dialer.dials()
	if err := ts.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "register", func() bool {
		return ts.dialer.dials() > dials && len(ts.dialer.last().sentEvents()) > 0
	})
	ch := ts.dialer.last()
	ch.push(proto.Connected{})
	ts.waitState(t, StateWaitingForMatch)
	return ch
}

// chatting drives the session to Chatting and returns its channel.
func (ts *testSession) chatting(t *testing.T) *fakeChannel {
	t.Helper()

	ch := ts.connected(t)
	ch.push(proto.Matched{UserID: "peer1", Interests: []string{"Music"}})
	ts.waitState(t, StateChatting)
	return ch
}
