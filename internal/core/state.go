package core

import "slices"

// State is the session lifecycle stage.
type State int

const (
	// StateIdle means no registration is in progress.
	StateIdle State = iota
	// StateConnecting means the channel is opening or register was sent.
	StateConnecting
	// StateWaitingForMatch means the server acknowledged and is looking for a peer.
	StateWaitingForMatch
	// StateChatting means a peer is matched.
	StateChatting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateWaitingForMatch:
		return "waiting_for_match"
	case StateChatting:
		return "chatting"
	default:
		return "unknown"
	}
}

// Peer is the matched stranger.
type Peer struct {
	ID         string
	Interests  []string
	Privileged bool
}

// Snapshot is a copy of everything the presentation layer renders.
type Snapshot struct {
	State       State
	Identity    Identity
	Agreement   bool
	Peer        *Peer
	Messages    []Message
	OnlineUsers int
	PeerTyping  bool
	LastError   string
	Err         error
}

func (s Snapshot) clone() Snapshot {
	s.Identity = s.Identity.clone()
	if s.Peer != nil {
		p := *s.Peer
		p.Interests = slices.Clone(p.Interests)
		s.Peer = &p
	}
	s.Messages = slices.Clone(s.Messages)
	return s
}
