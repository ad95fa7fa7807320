package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender tells who produced a message.
type Sender int

const (
	// SenderSelf marks messages typed by the local user.
	SenderSelf Sender = iota
	// SenderPeer marks messages from the matched stranger.
	SenderPeer
	// SenderSystem marks connection, match and disconnect notices.
	SenderSystem
	// SenderPrivileged marks messages from a peer that declared itself privileged.
	SenderPrivileged
)

func (s Sender) String() string {
	switch s {
	case SenderSelf:
		return "You"
	case SenderPeer:
		return "Stranger"
	case SenderSystem:
		return "System"
	case SenderPrivileged:
		return "Admin"
	default:
		return "Unknown"
	}
}

// Message is one entry of the chat log.
type Message struct {
	ID        string
	Sender    Sender
	Text      string
	CreatedAt time.Time
}

// Notices appended to the log by the session itself.
const (
	ConnectedNotice         = "Connected to server. Finding Chat Partner..."
	matchedNoticePrefix     = "You have been matched with a user interested in "
	partnerLeftNoticePrefix = "Your chat partner has disconnected"
)

func newMessage(sender Sender, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// SystemMessage builds a notice entry.
func SystemMessage(text string) Message {
	return newMessage(SenderSystem, text)
}

// MatchedNotice is the notice appended when a peer is found.
func MatchedNotice(interests []string) string {
	return matchedNoticePrefix + strings.Join(interests, ", ")
}

// IsMatchedNotice reports whether m announces a new match.
func (m Message) IsMatchedNotice() bool {
	return m.Sender == SenderSystem && strings.HasPrefix(m.Text, matchedNoticePrefix)
}

// IsPartnerLeftNotice reports whether m announces that the peer left.
func (m Message) IsPartnerLeftNotice() bool {
	return m.Sender == SenderSystem && strings.HasPrefix(m.Text, partnerLeftNoticePrefix)
}
