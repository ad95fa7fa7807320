package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/core"
	"github.com/vovakirdan/strangerchat/internal/log"
	"github.com/vovakirdan/strangerchat/internal/proto"
)

const (
	// DefaultOutboxSize is the number of events queued before Send fails.
	DefaultOutboxSize = 32

	writeTimeout = 5 * time.Second
	readLimit    = 64 << 10
)

var (
	// ErrOutboxFull is returned when the writer cannot keep up.
	ErrOutboxFull = errors.New("outbox full")
	// ErrClosed is returned by Send after Close or after the connection failed.
	ErrClosed = errors.New("channel closed")
)

// Dialer opens WebSocket channels to the matchmaking server.
type Dialer struct {
	url    string
	outbox int
	log    *zerolog.Logger
}

// NewDialer builds a dialer for url. A non-positive outbox uses DefaultOutboxSize.
func NewDialer(url string, outbox int, logger *zerolog.Logger) *Dialer {
	if outbox <= 0 {
		outbox = DefaultOutboxSize
	}
	return &Dialer{url: url, outbox: outbox, log: log.OrNop(logger)}
}

// Dial connects and starts the reader and writer goroutines.
func (d *Dialer) Dial(ctx context.Context) (core.Channel, error) {
	conn, _, err := websocket.Dial(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.url, err)
	}
	d.log.Info().Str("url", d.url).Msg("connected to server")
	return newChannel(conn, d.outbox, d.log), nil
}

// Channel is a core.Channel over one WebSocket connection.
type Channel struct {
	conn   *websocket.Conn
	outbox chan proto.Envelope
	events chan proto.ServerEvent
	ctx    context.Context
	cancel context.CancelFunc
	log    *zerolog.Logger

	mu     sync.Mutex
	closed bool
	failed bool
	err    error
}

func newChannel(conn *websocket.Conn, outbox int, logger *zerolog.Logger) *Channel {
	conn.SetReadLimit(readLimit)
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		conn:   conn,
		outbox: make(chan proto.Envelope, outbox),
		events: make(chan proto.ServerEvent, outbox),
		ctx:    ctx,
		cancel: cancel,
		log:    logger,
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Send queues ev for the writer. It never waits on the network.
func (c *Channel) Send(ev proto.ClientEvent) error {
	env, err := proto.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failed {
		return ErrClosed
	}
	select {
	case c.outbox <- env:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Events yields decoded server events until the connection ends.
func (c *Channel) Events() <-chan proto.ServerEvent {
	return c.events
}

// Err reports why the connection ended. It is nil after Close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.err
}

// Close stops accepting events. Queued events are flushed before the
// connection is closed normally; Close itself does not wait for that.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.outbox)
	return nil
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	if !c.failed && !c.closed {
		c.err = err
	}
	c.failed = true
	c.mu.Unlock()
	c.cancel()
}

func (c *Channel) readLoop() {
	defer close(c.events)

	for {
		var env proto.Envelope
		if err := wsjson.Read(c.ctx, c.conn, &env); err != nil {
			if !expectedClose(err) {
				c.log.Warn().Err(err).Msg("read ws event")
			}
			c.fail(readError(err))
			_ = c.conn.CloseNow()
			return
		}

		ev, err := proto.DecodeServerEvent(env)
		if err != nil {
			c.log.Debug().Err(err).Str("event", env.Event).Msg("dropping server event")
			continue
		}

		select {
		case c.events <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Channel) writeLoop() {
	for {
		select {
		case env, ok := <-c.outbox:
			if !ok {
				c.log.Debug().Msg("outbox flushed, closing connection")
				_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
				c.cancel()
				return
			}
			if err := c.write(env); err != nil {
				c.log.Error().Err(err).Str("event", env.Event).Msg("write ws event")
				c.fail(err)
				_ = c.conn.CloseNow()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Channel) write(env proto.Envelope) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, env)
}

func expectedClose(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

func readError(err error) error {
	if s := websocket.CloseStatus(err); s != -1 {
		return fmt.Errorf("server closed connection (%s): %w", s, err)
	}
	return err
}
