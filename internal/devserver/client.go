package devserver

import (
	"github.com/vovakirdan/strangerchat/internal/proto"
)

const clientBuffer = 16

// Client is one WebSocket connection as seen by the hub.
type Client struct {
	ConnID string
	Events chan proto.ServerEvent

	// Set by the hub once the connection registers.
	UserID     string
	Interests  []string
	Privileged bool

	registered bool
	limiter    *messageLimiter
}

// NewClient constructs a client with an initialized event buffer.
func NewClient(connID string, limiter *messageLimiter) *Client {
	return &Client{
		ConnID:  connID,
		Events:  make(chan proto.ServerEvent, clientBuffer),
		limiter: limiter,
	}
}

// deliver queues ev, dropping it for a slow consumer.
func (c *Client) deliver(ev proto.ServerEvent) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
