package devserver

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/log"
	"github.com/vovakirdan/strangerchat/internal/proto"
	"github.com/vovakirdan/strangerchat/internal/utils"
)

const invalidRequestText = "Invalid request."

// WSHandler upgrades HTTP connections and bridges them to the Hub.
type WSHandler struct {
	hub          *Hub
	messageRate  float64
	messageBurst int
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *Hub, messageRate float64, messageBurst int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, messageRate: messageRate, messageBurst: messageBurst, log: log.OrNop(logger)}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := NewClient(utils.NewID(utils.UserIDLength), newMessageLimiter(h.messageRate, h.messageBurst))
	if !h.hub.RegisterClient(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ConnID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}

		ev, err := proto.DecodeClientEvent(env)
		switch {
		case errors.Is(err, proto.ErrUnknownEvent):
			h.log.Debug().Str("event", env.Event).Str("conn_id", client.ConnID).Msg("ignoring unknown event")
			continue
		case err != nil:
			h.log.Warn().Err(err).Str("conn_id", client.ConnID).Msg("rejecting malformed event")
			if env.Event == proto.EventRegister {
				client.deliver(proto.Error{Text: invalidRequestText})
			}
			continue
		}

		h.hub.Submit(client, ev)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		select {
		case ev, ok := <-client.Events:
			if !ok {
				return nil
			}
			env, err := proto.Encode(ev)
			if err != nil {
				h.log.Error().Err(err).Str("event", ev.EventName()).Msg("encode event")
				continue
			}
			if err := wsjson.Write(ctx, conn, env); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ConnID).Msg("write ws event")
				return err
			}
		case <-h.hub.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
