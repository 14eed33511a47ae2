// Package tui renders a chat session in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"estatechat/internal/chat"
	"estatechat/internal/domain"
)

// ScrollDelay batches bursts of incoming messages into one scroll.
const ScrollDelay = 50 * time.Millisecond

// Session is the part of *chat.Session the view drives.
type Session interface {
	Updates() <-chan chat.Snapshot
	SelectConversation(id string) error
	SendMessage(text string) error
	RetryPending(localID string) error
	DismissPending(localID string) error
}

type pane int

const (
	paneRooms pane = iota
	paneChat
)

type (
	snapshotMsg chat.Snapshot
	closedMsg   struct{}
	scrollMsg   struct{ seq int }
	errMsg      struct{ err error }
)

type Model struct {
	sess      Session
	me        string
	mediaBase string

	snap   chat.Snapshot
	cursor int
	focus  pane
	closed bool
	flash  string

	input textinput.Model
	vp    viewport.Model

	width, height int
	sidebarWidth  int

	scrollSeq   int
	contentSize int
	contentConv string
}

func New(sess Session, me, mediaBase string) Model {
	input := textinput.New()
	input.Placeholder = "Write a message..."
	input.CharLimit = domain.MaxMessageRunes

	return Model{
		sess:      sess,
		me:        me,
		mediaBase: mediaBase,
		input:     input,
		vp:        viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.sess.Updates()))
}

func waitForUpdate(ch <-chan chat.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.vp.SetContent(m.renderMessages())
		m.vp.GotoBottom()

	case snapshotMsg:
		cmds = append(cmds, m.applySnapshot(chat.Snapshot(msg)))
		if !m.closed {
			cmds = append(cmds, waitForUpdate(m.sess.Updates()))
		}

	case closedMsg:
		m.closed = true
		m.snap.Status = chat.StatusClosed

	case scrollMsg:
		if msg.seq == m.scrollSeq {
			m.vp.GotoBottom()
		}

	case errMsg:
		m.flash = msg.err.Error()
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.toggleFocus()
		return m, nil
	}
	m.flash = ""

	if m.focus == paneRooms {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.snap.Conversations)-1 {
				m.cursor++
			}
		case "enter", "l":
			if m.cursor < len(m.snap.Conversations) {
				id := m.snap.Conversations[m.cursor].ConversationID
				m.setFocus(paneChat)
				return m, m.intent(func() error { return m.sess.SelectConversation(id) })
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.setFocus(paneRooms)
		return m, nil
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.intent(func() error { return m.sess.SendMessage(text) })
	case "ctrl+r":
		if p, ok := m.firstFailed(); ok {
			return m, m.intent(func() error { return m.sess.RetryPending(p.LocalID) })
		}
		return m, nil
	case "ctrl+x":
		if p, ok := m.firstFailed(); ok {
			return m, m.intent(func() error { return m.sess.DismissPending(p.LocalID) })
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) intent(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m *Model) toggleFocus() {
	if m.focus == paneRooms {
		m.setFocus(paneChat)
	} else {
		m.setFocus(paneRooms)
	}
}

func (m *Model) setFocus(p pane) {
	m.focus = p
	if p == paneChat {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// applySnapshot stores the new state and schedules a debounced scroll when
// the active conversation grew.
func (m *Model) applySnapshot(snap chat.Snapshot) tea.Cmd {
	var cursorID string
	if m.cursor < len(m.snap.Conversations) {
		cursorID = m.snap.Conversations[m.cursor].ConversationID
	}
	m.snap = snap
	m.cursor = 0
	for i, c := range snap.Conversations {
		if c.ConversationID == cursorID {
			m.cursor = i
			break
		}
	}

	m.vp.SetContent(m.renderMessages())

	size := len(snap.Messages) + len(snap.Pending)
	grew := snap.ActiveID != m.contentConv || size > m.contentSize
	m.contentConv, m.contentSize = snap.ActiveID, size
	if !grew {
		return nil
	}
	m.scrollSeq++
	seq := m.scrollSeq
	return tea.Tick(ScrollDelay, func(time.Time) tea.Msg { return scrollMsg{seq: seq} })
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.sidebarWidth = width / 4
	if m.sidebarWidth < 28 {
		m.sidebarWidth = 28
	}
	chatWidth := width - m.sidebarWidth - 4
	if chatWidth < 20 {
		chatWidth = 20
	}
	vpHeight := height - 9
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.vp = viewport.New(chatWidth-4, vpHeight)
	m.input.Width = chatWidth - 6
}

func (m Model) firstFailed() (chat.Pending, bool) {
	for _, p := range m.snap.Pending {
		if p.Failed {
			return p, true
		}
	}
	return chat.Pending{}, false
}

func (m Model) active() (domain.Conversation, bool) {
	for _, c := range m.snap.Conversations {
		if c.ConversationID == m.snap.ActiveID {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

func (m Model) View() string {
	if m.width == 0 {
		return "connecting..."
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.chatView())
	if banner := m.banner(); banner != "" {
		return lipgloss.JoinVertical(lipgloss.Left, banner, body)
	}
	return body
}

func (m Model) banner() string {
	switch m.snap.Status {
	case chat.StatusReconnecting:
		return reconnectingBanner.Render("Connection lost, reconnecting...")
	case chat.StatusDisconnected:
		return disconnectedBanner.Render("Disconnected: chat server unreachable, still retrying")
	case chat.StatusClosed:
		return disconnectedBanner.Render("Session closed. Press ctrl+c to quit.")
	}
	return ""
}

func (m Model) sidebarView() string {
	var b strings.Builder

	name := m.snap.Profile.UserName
	if name == "" {
		name = m.me
	}
	b.WriteString(titleStyle.Render(name))
	b.WriteString("\n\n")

	if len(m.snap.Conversations) == 0 {
		b.WriteString(mutedStyle.Render("No conversations yet."))
	}
	for i, c := range m.snap.Conversations {
		line := c.CounterpartName
		if c.UnreadCount > 0 {
			line += " " + badgeStyle.Render(fmt.Sprint(c.UnreadCount))
		}
		if c.SubjectListingTitle != "" {
			line += "\n" + mutedStyle.Render(truncate(c.SubjectListingTitle, m.sidebarWidth-6))
		}
		if c.LastMessagePreview != "" {
			line += "\n" + mutedStyle.Render(truncate(c.LastMessagePreview, m.sidebarWidth-6))
		}

		if i == m.cursor && m.focus == paneRooms {
			b.WriteString(selectedItemStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	style := sidebarStyle.Width(m.sidebarWidth - 2)
	if m.focus == paneRooms {
		style = style.BorderForeground(warnColor)
	}
	return style.Render(b.String())
}

func (m Model) chatView() string {
	chatWidth := m.width - m.sidebarWidth - 4
	style := chatWindowStyle.Width(chatWidth)
	if m.focus == paneChat {
		style = style.BorderForeground(warnColor)
	}

	conv, ok := m.active()
	if !ok {
		return style.Render(mutedStyle.Render("Select a conversation to start chatting"))
	}

	header := conv.CounterpartName
	if conv.SubjectListingTitle != "" {
		header += mutedStyle.Render(" · " + conv.SubjectListingTitle)
	}
	if img := domain.MediaURL(m.mediaBase, conv.SubjectListingImageRef); img != "" {
		header += "\n" + mutedStyle.Render(img)
	}

	footer := m.input.View()
	if m.flash != "" {
		footer = failedStyle.Render(m.flash) + "\n" + footer
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Width(chatWidth-2).Render(header),
		m.vp.View(),
		footerStyle.Width(chatWidth-2).Render(footer),
	))
}

func (m Model) renderMessages() string {
	conv, _ := m.active()

	var b strings.Builder
	for _, msg := range m.snap.Messages {
		stamp := ""
		if t := msg.Time(); !t.IsZero() {
			stamp = mutedStyle.Render(t.Local().Format("15:04")) + " "
		}
		if msg.SenderID == m.me {
			seen := ""
			if msg.IsSeen {
				seen = mutedStyle.Render(" ✓")
			}
			fmt.Fprintf(&b, "%s%s: %s%s\n", stamp, ownMessageStyle.Render("You"), msg.Text, seen)
			continue
		}
		fmt.Fprintf(&b, "%s%s: %s\n", stamp, otherMessageStyle.Render(conv.CounterpartName), msg.Text)
	}
	for _, p := range m.snap.Pending {
		if p.Failed {
			fmt.Fprintf(&b, "%s: %s %s\n", ownMessageStyle.Render("You"), p.Text,
				failedStyle.Render("(failed to send: ctrl+r retry, ctrl+x dismiss)"))
			continue
		}
		fmt.Fprintf(&b, "%s: %s %s\n", ownMessageStyle.Render("You"), p.Text, mutedStyle.Render("(sending...)"))
	}
	return b.String()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width < 4 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
