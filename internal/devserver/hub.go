package devserver

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/auth"
	"github.com/vovakirdan/strangerchat/internal/core"
	"github.com/vovakirdan/strangerchat/internal/log"
	"github.com/vovakirdan/strangerchat/internal/proto"
)

// Texts the hub sends to clients.
const (
	WelcomeText           = "Welcome to StrangerChat! Be respectful and have fun."
	PartnerLeftText       = "Your chat partner has disconnected. Finding you a new partner..."
	InvalidTokenText      = "Invalid privileged token."
	AlreadyRegisteredText = "Already registered."
)

// Stats is a point-in-time view of the hub.
type Stats struct {
	Online  int `json:"online_users"`
	Waiting int `json:"waiting"`
	Pairs   int `json:"pairs"`
}

var errHubStopped = errors.New("hub stopped")

type command struct {
	client *Client
	ev     proto.ClientEvent
}

// HubOptions configures a Hub.
type HubOptions struct {
	// JWT enables privilege checks when set. Without it the client flag is trusted.
	JWT       *auth.JWTConfig
	Sanitizer core.Sanitizer
	Banned    []string
	Logger    *zerolog.Logger
}

// Hub pairs waiting clients by shared interests and relays between partners.
// All state is owned by the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	commands   chan command
	stats      chan chan Stats
	done       chan struct{}

	clients  map[*Client]struct{}
	waiting  []*Client
	partners map[*Client]*Client

	jwt       *auth.JWTConfig
	sanitizer core.Sanitizer
	banned    []string
	log       *zerolog.Logger
}

// NewHub creates a matchmaking hub.
func NewHub(opts HubOptions) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan command, 64),
		stats:      make(chan chan Stats),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		partners:   make(map[*Client]*Client),
		jwt:        opts.JWT,
		sanitizer:  opts.Sanitizer,
		banned:     slices.Clone(opts.Banned),
		log:        log.OrNop(opts.Logger),
	}
}

// RegisterClient attaches a new connection. It reports false once the hub stopped.
func (h *Hub) RegisterClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient detaches a connection and releases its partner.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Submit hands a decoded client event to the hub.
func (h *Hub) Submit(c *Client, ev proto.ClientEvent) {
	select {
	case h.commands <- command{client: c, ev: ev}:
	case <-h.done:
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Stats returns the current counters.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-h.done:
		return Stats{}, errHubStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			c.deliver(proto.Welcome{Text: WelcomeText})
			h.log.Debug().Str("conn_id", c.ConnID).Msg("client attached")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			wasRegistered := c.registered
			h.leave(c)
			delete(h.clients, c)
			close(c.Events)
			h.log.Debug().Str("conn_id", c.ConnID).Msg("client detached")
			if wasRegistered {
				h.broadcastOnline()
			}
		case cmd := <-h.commands:
			if _, ok := h.clients[cmd.client]; !ok {
				continue
			}
			h.handle(cmd.client, cmd.ev)
		case reply := <-h.stats:
			reply <- h.snapshot()
		}
	}
}

func (h *Hub) handle(c *Client, ev proto.ClientEvent) {
	switch e := ev.(type) {
	case proto.Register:
		h.handleRegister(c, e)
	case proto.SendMessage:
		partner := h.partners[c]
		if partner == nil {
			return
		}
		if !c.limiter.allow() {
			h.log.Warn().Str("user_id", c.UserID).Msg("message rate exceeded, dropping")
			return
		}
		privileged := e.Privileged && c.Privileged
		text := e.Text
		if !privileged && h.sanitizer != nil {
			text = h.sanitizer.Clean(text, h.banned)
		}
		partner.deliver(proto.ReceiveMessage{Text: text, Privileged: privileged})
	case proto.Typing:
		if partner := h.partners[c]; partner != nil {
			partner.deliver(proto.Typing{})
		}
	case proto.StopTyping:
		if partner := h.partners[c]; partner != nil {
			partner.deliver(proto.StopTyping{})
		}
	case proto.ManualDisconnect:
		if !c.registered {
			return
		}
		h.leave(c)
		h.log.Info().Str("user_id", c.UserID).Msg("user left")
		h.broadcastOnline()
	}
}

func (h *Hub) handleRegister(c *Client, reg proto.Register) {
	if c.registered {
		c.deliver(proto.Error{Text: AlreadyRegisteredText})
		return
	}

	privileged := reg.Privileged
	if privileged && h.jwt != nil {
		if err := auth.VerifyPrivilege(h.jwt, reg.Token, reg.ID); err != nil {
			h.log.Warn().Err(err).Str("user_id", reg.ID).Msg("privileged registration rejected")
			c.deliver(proto.Error{Text: InvalidTokenText})
			return
		}
	}

	c.UserID = reg.ID
	c.Interests = slices.Clone(reg.Interests)
	c.Privileged = privileged
	c.registered = true

	online := h.online()
	c.deliver(proto.Connected{OnlineUsers: &online})
	h.log.Info().Str("user_id", c.UserID).Strs("interests", c.Interests).Bool("privileged", privileged).Msg("user registered")

	h.broadcastOnline()
	h.enqueue(c)
}

// enqueue pairs c with the longest-waiting compatible client or queues it.
func (h *Hub) enqueue(c *Client) {
	for i, other := range h.waiting {
		if other == c || other.UserID == c.UserID {
			continue
		}
		shared := sharedInterests(c.Interests, other.Interests)
		if len(shared) == 0 {
			continue
		}
		h.waiting = slices.Delete(h.waiting, i, i+1)
		h.partners[c] = other
		h.partners[other] = c
		c.deliver(proto.Matched{UserID: other.UserID, Interests: shared, Privileged: other.Privileged})
		other.deliver(proto.Matched{UserID: c.UserID, Interests: shared, Privileged: c.Privileged})
		h.log.Info().Str("user_a", other.UserID).Str("user_b", c.UserID).Strs("shared", shared).Msg("matched")
		return
	}
	h.waiting = append(h.waiting, c)
}

// leave unregisters c, notifying and requeueing its partner.
func (h *Hub) leave(c *Client) {
	if idx := slices.Index(h.waiting, c); idx >= 0 {
		h.waiting = slices.Delete(h.waiting, idx, idx+1)
	}
	if partner := h.partners[c]; partner != nil {
		delete(h.partners, c)
		delete(h.partners, partner)
		partner.deliver(proto.PartnerDisconnected{Text: PartnerLeftText})
		h.enqueue(partner)
	}
	c.registered = false
}

func (h *Hub) broadcastOnline() {
	ev := proto.OnlineUsers{Count: h.online()}
	for c := range h.clients {
		if c.registered {
			c.deliver(ev)
		}
	}
}

func (h *Hub) online() int {
	n := 0
	for c := range h.clients {
		if c.registered {
			n++
		}
	}
	return n
}

func (h *Hub) snapshot() Stats {
	return Stats{
		Online:  h.online(),
		Waiting: len(h.waiting),
		Pairs:   len(h.partners) / 2,
	}
}

// sharedInterests returns the interests of a that b also has, in a's order.
func sharedInterests(a, b []string) []string {
	var out []string
	for _, item := range a {
		if slices.Contains(b, item) {
			out = append(out, item)
		}
	}
	return out
}
