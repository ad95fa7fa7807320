package proto

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func env(event, data string) Envelope {
	e := Envelope{Event: event}
	if data != "" {
		e.Data = json.RawMessage(data)
	}
	return e
}

func TestDecodeServerEventValid(t *testing.T) {
	five := 5
	tests := []struct {
		name string
		in   Envelope
		want ServerEvent
	}{
		{"welcome object", env(EventWelcome, `{"text":"hi"}`), Welcome{Text: "hi"}},
		{"welcome bare string", env(EventWelcome, `"hi"`), Welcome{Text: "hi"}},
		{"connected without count", env(EventConnected, ""), Connected{}},
		{"connected with count", env(EventConnected, `{"online_users":5}`), Connected{OnlineUsers: &five}},
		{"online users", env(EventOnlineUsers, `{"online_users":5}`), OnlineUsers{Count: 5}},
		{"matched", env(EventMatched, `{"userId":"u1","interests":["Music","Tech"],"privileged":true}`),
			Matched{UserID: "u1", Interests: []string{"Music", "Tech"}, Privileged: true}},
		{"receive message", env(EventReceiveMessage, `{"text":"yo","privileged":false}`), ReceiveMessage{Text: "yo"}},
		{"typing", env(EventTyping, ""), Typing{}},
		{"stop typing", env(EventStopTyping, `{}`), StopTyping{}},
		{"partner disconnected", env(EventPartnerDisconnected, `{"text":"bye"}`), PartnerDisconnected{Text: "bye"}},
		{"error bare string", env(EventError, `"duplicate id"`), Error{Text: "duplicate id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeServerEvent(tt.in)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeServerEventRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   Envelope
	}{
		{"welcome without text", env(EventWelcome, `{}`)},
		{"online users missing", env(EventOnlineUsers, `{}`)},
		{"online users negative", env(EventOnlineUsers, `{"online_users":-1}`)},
		{"online users wrong type", env(EventOnlineUsers, `{"online_users":"five"}`)},
		{"matched without user", env(EventMatched, `{"interests":["Music"]}`)},
		{"matched without interests", env(EventMatched, `{"userId":"u1"}`)},
		{"receive without text", env(EventReceiveMessage, `{"privileged":true}`)},
		{"error empty", env(EventError, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeServerEvent(tt.in); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	if _, err := DecodeServerEvent(env("bogus", `{}`)); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := DecodeClientEvent(env(EventWelcome, `{"text":"x"}`)); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent for server-only event, got %v", err)
	}
}

func TestDecodeClientRegister(t *testing.T) {
	got, err := DecodeClientEvent(env(EventRegister, `{"id":"abc","interests":[" Music ",""],"privileged":true,"token":"t"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Register{ID: "abc", Interests: []string{"Music"}, Privileged: true, Token: "t"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	if _, err := DecodeClientEvent(env(EventRegister, `{"id":"abc","interests":[]}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty interests, got %v", err)
	}
	if _, err := DecodeClientEvent(env(EventRegister, `{"interests":["Music"]}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing id, got %v", err)
	}
}

func TestEncodeRoundTripThroughDecoders(t *testing.T) {
	out, err := Encode(Register{ID: "abc", Interests: []string{"Music"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out.Event != EventRegister {
		t.Fatalf("unexpected event name %q", out.Event)
	}
	if _, err := DecodeClientEvent(out); err != nil {
		t.Fatalf("decode encoded register: %v", err)
	}

	typing, err := Encode(Typing{})
	if err != nil {
		t.Fatalf("encode typing: %v", err)
	}
	if string(typing.Data) != "{}" {
		t.Fatalf("typing payload should be empty object, got %s", typing.Data)
	}

	matched, err := Encode(Matched{UserID: "u", Interests: []string{"Tech"}})
	if err != nil {
		t.Fatalf("encode matched: %v", err)
	}
	if _, err := DecodeServerEvent(matched); err != nil {
		t.Fatalf("decode encoded matched: %v", err)
	}
}
