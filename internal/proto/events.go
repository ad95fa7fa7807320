package proto

import "encoding/json"

// Envelope is the frame exchanged over the channel in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event names sent by the client.
const (
	EventRegister         = "register"
	EventSendMessage      = "sendMessage"
	EventTyping           = "typing"
	EventStopTyping       = "stopTyping"
	EventManualDisconnect = "manualDisconnect"
)

// Event names sent by the server. typing and stopTyping are shared with the client side.
const (
	EventWelcome             = "welcome"
	EventConnected           = "connected"
	EventOnlineUsers         = "onlineUsers"
	EventMatched             = "matched"
	EventReceiveMessage      = "receiveMessage"
	EventPartnerDisconnected = "chatPartnerDisconnected"
	EventError               = "error"
)

// Event is implemented by every typed payload.
type Event interface {
	EventName() string
}

// ClientEvent is an event the client sends to the server.
type ClientEvent interface {
	Event
	clientEvent()
}

// ServerEvent is an event the server sends to the client.
type ServerEvent interface {
	Event
	serverEvent()
}

// Register announces the local identity and asks to be matched.
type Register struct {
	ID         string   `json:"id"`
	Interests  []string `json:"interests"`
	Privileged bool     `json:"privileged"`
	Token      string   `json:"token,omitempty"`
}

// SendMessage carries an already sanitized chat line.
type SendMessage struct {
	Text       string `json:"text"`
	Privileged bool   `json:"privileged"`
}

// Typing signals that a participant started typing.
type Typing struct{}

// StopTyping signals that a participant stopped typing.
type StopTyping struct{}

// ManualDisconnect tells the server the user left on purpose.
type ManualDisconnect struct{}

// Welcome is a one-time greeting.
type Welcome struct {
	Text string `json:"text"`
}

// Connected acknowledges a registration. OnlineUsers is nil when the server omits it.
type Connected struct {
	OnlineUsers *int `json:"online_users,omitempty"`
}

// OnlineUsers reports the current number of connected users.
type OnlineUsers struct {
	Count int `json:"online_users"`
}

// Matched announces the paired peer.
type Matched struct {
	UserID     string   `json:"userId"`
	Interests  []string `json:"interests"`
	Privileged bool     `json:"privileged"`
}

// ReceiveMessage is a chat line relayed from the peer.
type ReceiveMessage struct {
	Text       string `json:"text"`
	Privileged bool   `json:"privileged"`
}

// PartnerDisconnected tells the client its peer left.
type PartnerDisconnected struct {
	Text string `json:"text"`
}

// Error is a server-side rejection.
type Error struct {
	Text string `json:"text"`
}

func (Register) EventName() string            { return EventRegister }
func (SendMessage) EventName() string         { return EventSendMessage }
func (Typing) EventName() string              { return EventTyping }
func (StopTyping) EventName() string          { return EventStopTyping }
func (ManualDisconnect) EventName() string    { return EventManualDisconnect }
func (Welcome) EventName() string             { return EventWelcome }
func (Connected) EventName() string           { return EventConnected }
func (OnlineUsers) EventName() string         { return EventOnlineUsers }
func (Matched) EventName() string             { return EventMatched }
func (ReceiveMessage) EventName() string      { return EventReceiveMessage }
func (PartnerDisconnected) EventName() string { return EventPartnerDisconnected }
func (Error) EventName() string               { return EventError }

func (Register) clientEvent()         {}
func (SendMessage) clientEvent()      {}
func (Typing) clientEvent()           {}
func (StopTyping) clientEvent()       {}
func (ManualDisconnect) clientEvent() {}

func (Welcome) serverEvent()             {}
func (Connected) serverEvent()           {}
func (OnlineUsers) serverEvent()         {}
func (Matched) serverEvent()             {}
func (ReceiveMessage) serverEvent()      {}
func (Typing) serverEvent()              {}
func (StopTyping) serverEvent()          {}
func (PartnerDisconnected) serverEvent() {}
func (Error) serverEvent()               {}

// Encode wraps a typed event into an envelope.
func Encode(ev Event) (Envelope, error) {
	switch ev.(type) {
	case Typing, StopTyping, ManualDisconnect:
		return Envelope{Event: ev.EventName(), Data: json.RawMessage("{}")}, nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: ev.EventName(), Data: data}, nil
}
