package tui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/strangerchat/internal/core"
)

const maxInfoLines = 4

// Session is the part of core.Session the interface drives.
type Session interface {
	Connect() error
	Disconnect() error
	Send(text string) error
	Keystroke() error
	SetInterests(interests []string) error
	ToggleInterest(name string) error
	SetAgreement(agreed bool) error
	Snapshot() core.Snapshot
	Updates() <-chan core.Snapshot
}

type snapshotMsg core.Snapshot

type localMsg struct {
	line string
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	selfStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	peerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	adminStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	systemStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("247"))
	matchedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	leftStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	typingStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("247"))
	checkedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disclaimerBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("208")).Padding(0, 1)
)

// Model is the bubbletea model of the chat client.
type Model struct {
	input   textinput.Model
	session Session
	snap    core.Snapshot

	info           []string
	showDisclaimer bool
	width          int
	height         int
}

// New builds a model rendering s.
func New(s Session) Model {
	input := textinput.New()
	input.Placeholder = "Type a message or /help"
	input.CharLimit = 1000
	input.Focus()

	snap := s.Snapshot()
	return Model{
		input:          input,
		session:        s,
		snap:           snap,
		showDisclaimer: !snap.Agreement,
	}
}

func waitUpdates(ch <-chan core.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-ch)
	}
}

func logLine(s string) tea.Cmd {
	return func() tea.Msg { return localMsg{line: s} }
}

// Init starts listening for session snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitUpdates(m.session.Updates()), textinput.Blink)
}

// Update handles keys, snapshots and local notes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-4)
		return m, nil
	case snapshotMsg:
		m.snap = core.Snapshot(msg)
		return m, waitUpdates(m.session.Updates())
	case localMsg:
		m.info = append(m.info, msg.line)
		if len(m.info) > maxInfoLines {
			m.info = m.info[len(m.info)-maxInfoLines:]
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if strings.HasPrefix(line, "/") {
				return m.handleCommand(line)
			}
			return m, m.send(line)
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before && m.snap.State == core.StateChatting {
		if err := m.session.Keystroke(); err != nil {
			return m, tea.Batch(cmd, logLine("typing: "+err.Error()))
		}
	}
	return m, cmd
}

func (m Model) send(line string) tea.Cmd {
	if m.snap.State != core.StateChatting {
		return logLine("Not chatting yet. Use /connect to find a partner.")
	}
	if err := m.session.Send(line); err != nil {
		return logLine("send: " + err.Error())
	}
	return nil
}

func (m Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/help":
		return m, logLine("/connect /disconnect /interests [a, b] /toggle <name|number> /agree /disagree /disclaimer /quit")
	case "/connect":
		if err := m.session.Connect(); err != nil {
			// Validation failures are already shown as LastError.
			if errors.Is(err, core.ErrValidation) {
				return m, nil
			}
			return m, logLine("connect: " + err.Error())
		}
		m.showDisclaimer = false
		return m, nil
	case "/disconnect", "/leave":
		if err := m.session.Disconnect(); err != nil {
			return m, logLine("disconnect: " + err.Error())
		}
		return m, nil
	case "/interests":
		if arg == "" {
			return m, logLine("Interests: " + strings.Join(m.snap.Identity.Interests, ", "))
		}
		var interests []string
		for _, item := range strings.Split(arg, ",") {
			interests = append(interests, strings.TrimSpace(item))
		}
		if err := m.session.SetInterests(interests); err != nil {
			return m, logLine("interests: " + err.Error())
		}
		return m, nil
	case "/toggle":
		interest, ok := resolveInterest(displayedInterests(m.snap), arg)
		if !ok {
			return m, logLine("Unknown interest " + strconv.Quote(arg))
		}
		if err := m.session.ToggleInterest(interest); err != nil {
			return m, logLine("toggle: " + err.Error())
		}
		return m, nil
	case "/agree", "/disagree":
		agreed := name == "/agree"
		if err := m.session.SetAgreement(agreed); err != nil {
			return m, logLine("agreement: " + err.Error())
		}
		m.showDisclaimer = !agreed
		return m, nil
	case "/disclaimer":
		m.showDisclaimer = !m.showDisclaimer
		return m, nil
	default:
		return m, logLine("Unknown command " + name + ", try /help")
	}
}

// resolveInterest accepts an entry of the displayed list by 1-based number or
// case-insensitive name.
func resolveInterest(list []string, arg string) (string, bool) {
	if arg == "" {
		return "", false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(list) {
			return "", false
		}
		return list[n-1], true
	}
	for _, interest := range list {
		if strings.EqualFold(interest, arg) {
			return interest, true
		}
	}
	return "", false
}

// View renders the current snapshot.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("StrangerChat"))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(statusLine(m.snap)))
	b.WriteString("\n")

	if m.showDisclaimer {
		b.WriteString(disclaimerBox.Render("Security Disclaimer\n" + core.Disclaimer + "\nType /agree to accept."))
		b.WriteString("\n")
	}

	panelWidth := max(20, m.width-2)
	if m.snap.State == core.StateIdle {
		b.WriteString(boxStyle.Width(panelWidth).Render(interestList(m.snap)))
		b.WriteString("\n")
	}

	b.WriteString(boxStyle.Width(panelWidth).Render(m.chatBody()))
	b.WriteString("\n")

	if m.snap.LastError != "" {
		b.WriteString(errorStyle.Render(m.snap.LastError))
		b.WriteString("\n")
	}
	for _, line := range m.info {
		b.WriteString(statusStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) chatBody() string {
	switch m.snap.State {
	case core.StateConnecting:
		return "Connecting..."
	case core.StateIdle:
		if len(m.snap.Messages) == 0 {
			return "Pick interests, /agree and /connect to find a stranger."
		}
	}

	lines := make([]string, 0, len(m.snap.Messages)+1)
	for _, msg := range m.snap.Messages {
		lines = append(lines, renderMessage(msg))
	}
	if m.snap.PeerTyping {
		lines = append(lines, typingStyle.Render("Stranger is typing..."))
	}

	if limit := m.height - 12; limit > 3 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return strings.Join(lines, "\n")
}

func statusLine(snap core.Snapshot) string {
	status := fmt.Sprintf("state=%s users online: %d", snap.State, snap.OnlineUsers)
	if snap.Peer != nil {
		status += " peer=" + snap.Peer.ID
		if snap.Peer.Privileged {
			status += " (admin)"
		}
	}
	if !snap.Agreement {
		status += " disclaimer not accepted"
	}
	return status
}

// displayedInterests is the catalogue followed by custom interests, in the
// order the checklist numbers them.
func displayedInterests(snap core.Snapshot) []string {
	list := slices.Clone(core.AvailableInterests)
	for _, extra := range snap.Identity.Interests {
		if !slices.Contains(list, extra) {
			list = append(list, extra)
		}
	}
	return list
}

func interestList(snap core.Snapshot) string {
	lines := []string{"Interests (/toggle <number>):"}
	for i, interest := range displayedInterests(snap) {
		mark := "[ ]"
		if slices.Contains(snap.Identity.Interests, interest) {
			mark = checkedStyle.Render("[x]")
		}
		lines = append(lines, fmt.Sprintf("%s %2d. %s", mark, i+1, interest))
	}
	agreed := "[ ]"
	if snap.Agreement {
		agreed = checkedStyle.Render("[x]")
	}
	lines = append(lines, agreed+" I agree to the terms and conditions (/agree)")
	return strings.Join(lines, "\n")
}

func renderMessage(msg core.Message) string {
	label := msg.Sender.String() + ":"
	text := msg.Text

	switch msg.Sender {
	case core.SenderSelf:
		label = selfStyle.Render(label)
	case core.SenderPeer:
		label = peerStyle.Render(label)
	case core.SenderPrivileged:
		label = adminStyle.Render(label)
	case core.SenderSystem:
		label = systemStyle.Render(label)
		switch {
		case msg.IsMatchedNotice():
			text = matchedStyle.Render(text)
		case msg.IsPartnerLeftNotice():
			text = leftStyle.Render(text)
		}
	}
	return label + " " + text
}
