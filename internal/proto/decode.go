package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownEvent is returned for event names outside the protocol.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformed is returned when a payload does not match its schema.
	ErrMalformed = errors.New("malformed payload")
)

func malformed(event, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, event, reason)
}

// DecodeServerEvent validates an envelope received by the client.
func DecodeServerEvent(env Envelope) (ServerEvent, error) {
	switch env.Event {
	case EventWelcome:
		text, err := decodeText(env)
		if err != nil {
			return nil, err
		}
		return Welcome{Text: text}, nil
	case EventConnected:
		var raw struct {
			OnlineUsers *int `json:"online_users"`
		}
		if err := decodeObject(env, &raw); err != nil {
			return nil, err
		}
		if raw.OnlineUsers != nil && *raw.OnlineUsers < 0 {
			return nil, malformed(env.Event, "negative online_users")
		}
		return Connected{OnlineUsers: raw.OnlineUsers}, nil
	case EventOnlineUsers:
		var raw struct {
			OnlineUsers *int `json:"online_users"`
		}
		if err := decodeObject(env, &raw); err != nil {
			return nil, err
		}
		if raw.OnlineUsers == nil {
			return nil, malformed(env.Event, "missing online_users")
		}
		if *raw.OnlineUsers < 0 {
			return nil, malformed(env.Event, "negative online_users")
		}
		return OnlineUsers{Count: *raw.OnlineUsers}, nil
	case EventMatched:
		var raw struct {
			UserID     *string  `json:"userId"`
			Interests  []string `json:"interests"`
			Privileged bool     `json:"privileged"`
		}
		if err := decodeObject(env, &raw); err != nil {
			return nil, err
		}
		if raw.UserID == nil || *raw.UserID == "" {
			return nil, malformed(env.Event, "missing userId")
		}
		if raw.Interests == nil {
			return nil, malformed(env.Event, "missing interests")
		}
		return Matched{UserID: *raw.UserID, Interests: raw.Interests, Privileged: raw.Privileged}, nil
	case EventReceiveMessage:
		var raw struct {
			Text       *string `json:"text"`
			Privileged bool    `json:"privileged"`
		}
		if err := decodeObject(env, &raw); err != nil {
			return nil, err
		}
		if raw.Text == nil {
			return nil, malformed(env.Event, "missing text")
		}
		return ReceiveMessage{Text: *raw.Text, Privileged: raw.Privileged}, nil
	case EventTyping:
		return Typing{}, nil
	case EventStopTyping:
		return StopTyping{}, nil
	case EventPartnerDisconnected:
		text, err := decodeText(env)
		if err != nil {
			return nil, err
		}
		return PartnerDisconnected{Text: text}, nil
	case EventError:
		text, err := decodeText(env)
		if err != nil {
			return nil, err
		}
		return Error{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// DecodeClientEvent validates an envelope received by the server.
func DecodeClientEvent(env Envelope) (ClientEvent, error) {
	switch env.Event {
	case EventRegister:
		var raw struct {
			ID         *string  `json:"id"`
			Interests  []string `json:"interests"`
			Privileged bool     `json:"privileged"`
			Token      string   `json:"token"`
		}
		if err := decodeObject(env, &raw); err != nil {
			return nil, err
		}
		if raw.ID == nil || strings.TrimSpace(*raw.ID) == "" {
			return nil, malformed(env.Event, "missing id")
		}
		interests := make([]string, 0, len(raw.Interests))
		for _, in := range raw.Interests {
			if in = strings.TrimSpace(in); in != "" {
				interests = append(interests, in)
			}
		}
		if len(interests) == 0 {
			return nil, malformed(env.Event, "no interests")
		}
		return Register{ID: *raw.ID, Interests: interests, Privileged: raw.Privileged, Token: raw.Token}, nil
	case EventSendMessage:
		var raw struct {
			Text       *string `json:"text"`
			Privileged bool    `json:"privileged"`
		}
		if err := decodeObject(env, &raw); err != nil {
			return nil, err
		}
		if raw.Text == nil {
			return nil, malformed(env.Event, "missing text")
		}
		return SendMessage{Text: *raw.Text, Privileged: raw.Privileged}, nil
	case EventTyping:
		return Typing{}, nil
	case EventStopTyping:
		return StopTyping{}, nil
	case EventManualDisconnect:
		return ManualDisconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func isEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeObject(env Envelope, v any) error {
	if isEmpty(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return malformed(env.Event, err.Error())
	}
	return nil
}

// decodeText accepts either {"text": "..."} or a bare JSON string.
func decodeText(env Envelope) (string, error) {
	if isEmpty(env.Data) {
		return "", malformed(env.Event, "missing text")
	}
	var bare string
	if err := json.Unmarshal(env.Data, &bare); err == nil {
		return bare, nil
	}
	var raw struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return "", malformed(env.Event, err.Error())
	}
	if raw.Text == nil {
		return "", malformed(env.Event, "missing text")
	}
	return *raw.Text, nil
}
