package core

import (
	"context"

	"github.com/vovakirdan/strangerchat/internal/proto"
)

// Channel is the bidirectional connection to the matchmaking server.
type Channel interface {
	// Send queues an event without waiting for the network.
	Send(ev proto.ClientEvent) error
	// Events yields validated server events and is closed when the channel ends.
	Events() <-chan proto.ServerEvent
	// Err explains why Events was closed; nil after Close.
	Err() error
	// Close flushes queued events and tears the connection down.
	Close() error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}
