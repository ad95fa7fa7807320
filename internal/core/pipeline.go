package core

import (
	"slices"
	"strings"

	"github.com/vovakirdan/strangerchat/internal/proto"
)

// Sanitizer masks banned words in text.
type Sanitizer interface {
	Clean(text string, banned []string) string
}

// SanitizerFunc adapts a function to Sanitizer.
type SanitizerFunc func(text string, banned []string) string

func (f SanitizerFunc) Clean(text string, banned []string) string {
	return f(text, banned)
}

// Pipeline turns typed text into log entries and payloads, and classifies relayed text.
type Pipeline struct {
	sanitizer Sanitizer
	banned    []string
}

// NewPipeline builds a pipeline. A nil sanitizer sends text unmodified.
func NewPipeline(sanitizer Sanitizer, banned []string) *Pipeline {
	return &Pipeline{sanitizer: sanitizer, banned: slices.Clone(banned)}
}

// Outbound prepares text for sending. ok is false when there is nothing to send.
func (p *Pipeline) Outbound(text string, privileged bool) (Message, proto.SendMessage, bool) {
	if strings.TrimSpace(text) == "" {
		return Message{}, proto.SendMessage{}, false
	}

	cleaned := text
	if !privileged && p.sanitizer != nil {
		cleaned = p.sanitizer.Clean(text, p.banned)
	}
	if strings.TrimSpace(cleaned) == "" {
		return Message{}, proto.SendMessage{}, false
	}

	return newMessage(SenderSelf, cleaned), proto.SendMessage{Text: cleaned, Privileged: privileged}, true
}

// Inbound classifies a relayed message.
func (p *Pipeline) Inbound(ev proto.ReceiveMessage) Message {
	if ev.Privileged {
		return newMessage(SenderPrivileged, ev.Text)
	}
	return newMessage(SenderPeer, ev.Text)
}
