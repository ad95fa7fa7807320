package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/log"
	"github.com/vovakirdan/strangerchat/internal/proto"
)

// DefaultDialTimeout bounds how long opening the channel may take.
const DefaultDialTimeout = 10 * time.Second

// intentKind describes what the user wants to do.
type intentKind int

const (
	intentConnect intentKind = iota
	intentDisconnect
	intentSend
	intentKeystroke
	intentSetInterests
	intentToggleInterest
	intentSetAgreement
)

// intent is a user action serialized into the session loop.
type intent struct {
	kind      intentKind
	text      string
	interests []string
	agreed    bool
	reply     chan error
}

// Messages posted to the loop by the goroutines the session starts.
type (
	inboundEvent struct {
		gen uint64
		ev  proto.ServerEvent
	}
	channelClosed struct {
		gen uint64
		err error
	}
	dialResult struct {
		gen uint64
		ch  Channel
		err error
	}
	typingExpired struct {
		token uint64
	}
)

// Options configures a Session.
type Options struct {
	Identity        *IdentityStore
	Dialer          Dialer
	Pipeline        *Pipeline
	TypingTimeout   time.Duration
	AfterFunc       AfterFunc
	DialTimeout     time.Duration
	PrivilegedToken string
	Logger          *zerolog.Logger
}

// Session is the client state machine. All transitions run on the goroutine
// executing Run; the public methods hand intents to it and wait until they
// are applied, which never involves waiting on the network.
type Session struct {
	identity    *IdentityStore
	dialer      Dialer
	pipeline    *Pipeline
	typing      *TypingSignaler
	dialTimeout time.Duration
	token       string
	log         *zerolog.Logger

	intents  chan *intent
	internal chan any
	done     chan struct{}
	started  atomic.Bool

	// Owned by the loop goroutine.
	ctx context.Context
	st  Snapshot
	ch  Channel
	gen uint64

	mu      sync.RWMutex
	snap    Snapshot
	updates chan Snapshot
}

// NewSession builds a session and loads the local identity.
func NewSession(opts Options) *Session {
	s := &Session{
		identity:    opts.Identity,
		dialer:      opts.Dialer,
		pipeline:    opts.Pipeline,
		dialTimeout: opts.DialTimeout,
		token:       opts.PrivilegedToken,
		log:         log.OrNop(opts.Logger),
		intents:     make(chan *intent),
		internal:    make(chan any, 64),
		done:        make(chan struct{}),
		ctx:         context.Background(),
		updates:     make(chan Snapshot, 1),
	}
	if s.identity == nil {
		s.identity = NewIdentityStore(nil, opts.Logger)
	}
	if s.pipeline == nil {
		s.pipeline = NewPipeline(nil, nil)
	}
	if s.dialTimeout <= 0 {
		s.dialTimeout = DefaultDialTimeout
	}
	s.typing = NewTypingSignaler(opts.TypingTimeout, opts.AfterFunc, func(token uint64) {
		s.post(typingExpired{token: token})
	})

	s.identity.Load(s.ctx)
	s.publish()
	return s
}

// Run processes intents and channel events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	defer close(s.done)

	s.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.publish()
			return nil
		case in := <-s.intents:
			err := s.handleIntent(in)
			s.publish()
			in.reply <- err
		case msg := <-s.internal:
			s.handleInternal(msg)
			s.publish()
		}
	}
}

// Connect registers with the server when interests and agreement are set.
// A validation failure is returned and also surfaced as LastError.
func (s *Session) Connect() error {
	return s.do(&intent{kind: intentConnect})
}

// Disconnect leaves the chat. State is Idle when it returns.
func (s *Session) Disconnect() error {
	return s.do(&intent{kind: intentDisconnect})
}

// Send sanitizes and sends text to the peer. Blank text is ignored.
func (s *Session) Send(text string) error {
	return s.do(&intent{kind: intentSend, text: text})
}

// Keystroke reports local typing activity.
func (s *Session) Keystroke() error {
	return s.do(&intent{kind: intentKeystroke})
}

// SetInterests replaces and persists the interest set.
func (s *Session) SetInterests(interests []string) error {
	return s.do(&intent{kind: intentSetInterests, interests: interests})
}

// ToggleInterest adds or removes one interest.
func (s *Session) ToggleInterest(name string) error {
	return s.do(&intent{kind: intentToggleInterest, text: name})
}

// SetAgreement records the disclaimer acceptance.
func (s *Session) SetAgreement(agreed bool) error {
	return s.do(&intent{kind: intentSetAgreement, agreed: agreed})
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Updates delivers the latest snapshot after every change. Intermediate
// snapshots are dropped when the reader is slower than the session.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

func (s *Session) do(in *intent) error {
	in.reply = make(chan error, 1)
	select {
	case s.intents <- in:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case err := <-in.reply:
		return err
	case <-s.done:
		select {
		case err := <-in.reply:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

func (s *Session) post(msg any) bool {
	select {
	case s.internal <- msg:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) handleIntent(in *intent) error {
	switch in.kind {
	case intentConnect:
		return s.connect()
	case intentDisconnect:
		s.disconnect()
	case intentSend:
		return s.send(in.text)
	case intentKeystroke:
		if s.st.State != StateChatting {
			return nil
		}
		if sig, ok := s.typing.Keystroke(); ok {
			s.write(sig.Event())
		}
	case intentSetInterests:
		s.identity.SetInterests(s.ctx, in.interests)
	case intentToggleInterest:
		s.identity.ToggleInterest(s.ctx, in.text)
	case intentSetAgreement:
		s.identity.SetAgreement(s.ctx, in.agreed)
	}
	return nil
}

func (s *Session) connect() error {
	if s.st.State != StateIdle {
		return nil
	}

	ident := s.identity.Identity()
	if ident.ID == "" || len(ident.Interests) == 0 || !s.identity.Agreement() {
		err := sessionError(ErrCodeValidation, ValidationText)
		s.setError(err)
		return err
	}

	s.st.State = StateConnecting
	s.st.Messages = nil
	s.clearError()
	s.log.Info().Strs("interests", ident.Interests).Msg("connecting")

	if s.ch != nil {
		s.register()
		return nil
	}

	gen, runCtx := s.gen, s.ctx
	go func() {
		ctx, cancel := context.WithTimeout(runCtx, s.dialTimeout)
		defer cancel()
		ch, err := s.dialer.Dial(ctx)
		if !s.post(dialResult{gen: gen, ch: ch, err: err}) && ch != nil {
			_ = ch.Close()
		}
	}()
	return nil
}

func (s *Session) handleDial(r dialResult) {
	if r.gen != s.gen || s.st.State != StateConnecting || s.ch != nil {
		if r.ch != nil {
			_ = r.ch.Close()
		}
		return
	}
	if r.err != nil {
		s.log.Warn().Err(r.err).Msg("dial failed")
		s.leaveToIdle()
		s.setError(sessionError(ErrCodeConnection, dialFailedText))
		return
	}

	s.ch = r.ch
	go s.forward(s.gen, r.ch)
	s.register()
}

func (s *Session) register() {
	ident := s.identity.Identity()
	s.write(proto.Register{
		ID:         ident.ID,
		Interests:  ident.Interests,
		Privileged: ident.Privileged,
		Token:      s.token,
	})
}

// forward pumps one channel's events into the loop tagged with its generation.
func (s *Session) forward(gen uint64, ch Channel) {
	for ev := range ch.Events() {
		if !s.post(inboundEvent{gen: gen, ev: ev}) {
			return
		}
	}
	s.post(channelClosed{gen: gen, err: ch.Err()})
}

func (s *Session) disconnect() {
	if s.st.State == StateIdle && s.ch == nil {
		return
	}

	if sig, ok := s.typing.Stop(); ok {
		s.write(sig.Event())
	}
	s.write(proto.ManualDisconnect{})
	s.closeChannel()

	s.leaveToIdle()
	s.st.Messages = nil
	s.log.Info().Msg("disconnected by user")
}

func (s *Session) send(text string) error {
	if s.st.State != StateChatting {
		return nil
	}

	msg, payload, ok := s.pipeline.Outbound(text, s.identity.Identity().Privileged)
	if !ok {
		return nil
	}
	if !s.write(payload) {
		err := sessionError(ErrCodeConnection, "Message could not be sent.")
		s.setError(err)
		return err
	}
	s.st.Messages = append(s.st.Messages, msg)
	return nil
}

func (s *Session) handleInternal(msg any) {
	switch m := msg.(type) {
	case inboundEvent:
		if m.gen != s.gen {
			s.log.Debug().Str("event", m.ev.EventName()).Msg("dropping event from closed channel")
			return
		}
		s.handleEvent(m.ev)
	case channelClosed:
		if m.gen != s.gen {
			return
		}
		s.ch = nil
		s.gen++
		s.typing.Stop()
		if s.st.State != StateIdle {
			s.log.Warn().Err(m.err).Msg("connection lost")
			s.leaveToIdle()
			s.setError(sessionError(ErrCodeConnection, ConnectionLostText))
		}
	case dialResult:
		s.handleDial(m)
	case typingExpired:
		if sig, ok := s.typing.Expire(m.token); ok {
			s.write(sig.Event())
		}
	}
}

func (s *Session) handleEvent(ev proto.ServerEvent) {
	s.log.Debug().Str("event", ev.EventName()).Str("state", s.st.State.String()).Msg("server event")

	switch e := ev.(type) {
	case proto.Welcome:
		s.appendMessage(SystemMessage(e.Text))
	case proto.OnlineUsers:
		s.st.OnlineUsers = e.Count
	case proto.Connected:
		if e.OnlineUsers != nil {
			s.st.OnlineUsers = *e.OnlineUsers
		}
		if s.st.State == StateConnecting {
			s.st.State = StateWaitingForMatch
			s.appendMessage(SystemMessage(ConnectedNotice))
		}
	case proto.Matched:
		if s.st.State != StateConnecting && s.st.State != StateWaitingForMatch {
			return
		}
		s.st.Peer = &Peer{ID: e.UserID, Interests: e.Interests, Privileged: e.Privileged}
		s.st.PeerTyping = false
		s.st.State = StateChatting
		s.appendMessage(SystemMessage(MatchedNotice(e.Interests)))
		s.log.Info().Str("peer_id", e.UserID).Msg("matched")
	case proto.ReceiveMessage:
		if s.st.State == StateChatting {
			s.appendMessage(s.pipeline.Inbound(e))
		}
	case proto.Typing:
		if s.st.State == StateChatting {
			s.st.PeerTyping = true
		}
	case proto.StopTyping:
		if s.st.State == StateChatting {
			s.st.PeerTyping = false
		}
	case proto.PartnerDisconnected:
		if s.st.State != StateChatting {
			return
		}
		if sig, ok := s.typing.Stop(); ok {
			s.write(sig.Event())
		}
		s.st.Peer = nil
		s.st.PeerTyping = false
		s.st.State = StateWaitingForMatch
		s.appendMessage(SystemMessage(e.Text))
		s.log.Info().Msg("partner disconnected, waiting for a new match")
	case proto.Error:
		// The rejected registration is withdrawn and its channel retired, so
		// a late matched for it cannot reach the next attempt.
		if s.st.State != StateIdle {
			if sig, ok := s.typing.Stop(); ok {
				s.write(sig.Event())
			}
			s.write(proto.ManualDisconnect{})
			s.closeChannel()
			s.leaveToIdle()
		}
		s.setError(sessionError(ErrCodeProtocol, e.Text))
		s.log.Warn().Str("error", e.Text).Msg("server rejected session")
	}
}

func (s *Session) write(ev proto.ClientEvent) bool {
	if s.ch == nil {
		return false
	}
	if err := s.ch.Send(ev); err != nil {
		s.log.Warn().Err(err).Str("event", ev.EventName()).Msg("send failed")
		return false
	}
	return true
}

func (s *Session) closeChannel() {
	if s.ch == nil {
		return
	}
	if err := s.ch.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close channel")
	}
	s.ch = nil
	s.gen++
}

func (s *Session) shutdown() {
	s.typing.Stop()
	if s.st.State != StateIdle {
		s.write(proto.ManualDisconnect{})
	}
	s.closeChannel()
	s.leaveToIdle()
}

func (s *Session) leaveToIdle() {
	s.st.State = StateIdle
	s.st.Peer = nil
	s.st.PeerTyping = false
}

func (s *Session) appendMessage(m Message) {
	s.st.Messages = append(s.st.Messages, m)
}

func (s *Session) setError(err *SessionError) {
	s.st.LastError = err.Message
	s.st.Err = err
}

func (s *Session) clearError() {
	s.st.LastError = ""
	s.st.Err = nil
}

func (s *Session) publish() {
	s.st.Identity = s.identity.Identity()
	s.st.Agreement = s.identity.Agreement()
	snap := s.st.clone()

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	select {
	case s.updates <- snap:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- snap:
		default:
		}
	}
}
