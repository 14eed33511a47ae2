package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatechat/internal/chat"
	"estatechat/internal/domain"
)

type fakeSession struct {
	updates   chan chat.Snapshot
	selected  []string
	sent      []string
	retried   []string
	dismissed []string
	sendErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{updates: make(chan chat.Snapshot, 1)}
}

func (f *fakeSession) Updates() <-chan chat.Snapshot { return f.updates }

func (f *fakeSession) SelectConversation(id string) error {
	f.selected = append(f.selected, id)
	return nil
}

func (f *fakeSession) SendMessage(text string) error {
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeSession) RetryPending(id string) error {
	f.retried = append(f.retried, id)
	return nil
}

func (f *fakeSession) DismissPending(id string) error {
	f.dismissed = append(f.dismissed, id)
	return nil
}

func baseSnapshot() chat.Snapshot {
	return chat.Snapshot{
		Status:  chat.StatusOnline,
		Profile: domain.Profile{UserName: "Dana"},
		Conversations: []domain.Conversation{
			{ConversationID: "r1", CounterpartName: "Sunrise Realty", SubjectListingTitle: "2BR near the park", UnreadCount: 3},
			{ConversationID: "r2", CounterpartName: "Harbor Homes", LastMessagePreview: "See you then"},
		},
	}
}

func ready(t *testing.T, sess *fakeSession) Model {
	t.Helper()
	m := New(sess, "me", "https://img.test")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	next, _ = next.Update(snapshotMsg(baseSnapshot()))
	return next.(Model)
}

func press(t *testing.T, m Model, key tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	return next.(Model), cmd
}

func TestViewShowsRoomsAndBadges(t *testing.T) {
	m := ready(t, newFakeSession())
	view := m.View()

	assert.Contains(t, view, "Dana")
	assert.Contains(t, view, "Sunrise Realty")
	assert.Contains(t, view, "2BR near the park")
	assert.Contains(t, view, "Harbor Homes")
	assert.Contains(t, view, "See you then")
	assert.Contains(t, view, "3")
	assert.Contains(t, view, "Select a conversation")
}

func TestSelectAndSend(t *testing.T) {
	sess := newFakeSession()
	m := ready(t, sess)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []string{"r2"}, sess.selected)
	assert.Equal(t, paneChat, m.focus)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Is parking included?")})
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"Is parking included?"}, sess.sent)
	assert.Empty(t, m.input.Value())

	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "blank input sends nothing")
}

func TestSendErrorIsShown(t *testing.T) {
	sess := newFakeSession()
	sess.sendErr = domain.ErrRateLimited
	m := ready(t, sess)

	snap := baseSnapshot()
	snap.ActiveID = "r1"
	next, _ := m.Update(snapshotMsg(snap))
	m = next.(Model)
	m.setFocus(paneChat)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hello")})
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()
	require.IsType(t, errMsg{}, msg)
	assert.True(t, errors.Is(msg.(errMsg).err, domain.ErrRateLimited))

	next, _ = m.Update(msg)
	assert.Contains(t, next.View(), domain.ErrRateLimited.Error())
}

func TestActiveConversationRendering(t *testing.T) {
	m := ready(t, newFakeSession())

	snap := baseSnapshot()
	snap.ActiveID = "r1"
	snap.Conversations[0].SubjectListingImageRef = "listings/7.jpg"
	snap.Messages = []domain.Message{
		{ID: "m1", SenderID: "u2", Text: "Welcome!", Timestamp: "2024-05-01T10:30:00Z"},
		{ID: "m2", SenderID: "me", Text: "Thanks", IsSeen: true},
	}
	snap.Pending = []chat.Pending{
		{LocalID: "local-1", ConversationID: "r1", Text: "Still there?"},
		{LocalID: "local-2", ConversationID: "r1", Text: "Hello?", Failed: true},
	}
	next, _ := m.Update(snapshotMsg(snap))
	m = next.(Model)

	content := m.renderMessages()
	assert.Contains(t, content, "Sunrise Realty: Welcome!")
	assert.Contains(t, content, "You: Thanks")
	assert.Contains(t, content, "✓")
	assert.Contains(t, content, "sending")
	assert.Contains(t, content, "failed to send")
	assert.Contains(t, m.View(), "https://img.test/listings/7.jpg")
}

func TestRetryAndDismissFailed(t *testing.T) {
	sess := newFakeSession()
	m := ready(t, sess)

	snap := baseSnapshot()
	snap.ActiveID = "r1"
	snap.Pending = []chat.Pending{{LocalID: "local-9", ConversationID: "r1", Text: "hi", Failed: true}}
	next, _ := m.Update(snapshotMsg(snap))
	m = next.(Model)
	m.setFocus(paneChat)

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	cmd()
	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	cmd()
	assert.Equal(t, []string{"local-9"}, sess.retried)
	assert.Equal(t, []string{"local-9"}, sess.dismissed)
}

func TestStatusBanners(t *testing.T) {
	m := ready(t, newFakeSession())

	snap := baseSnapshot()
	snap.Status = chat.StatusReconnecting
	next, _ := m.Update(snapshotMsg(snap))
	assert.Contains(t, next.View(), "reconnecting")

	snap.Status = chat.StatusDisconnected
	next, _ = next.Update(snapshotMsg(snap))
	assert.Contains(t, next.View(), "Disconnected")

	next, _ = next.Update(closedMsg{})
	assert.Contains(t, next.View(), "Session closed")
}

func TestScrollIsDebounced(t *testing.T) {
	m := ready(t, newFakeSession())
	snap := baseSnapshot()
	snap.ActiveID = "r1"

	next, _ := m.Update(snapshotMsg(snap))
	snap.Messages = []domain.Message{{ID: "m1", SenderID: "u2", Text: "one"}}
	next, _ = next.Update(snapshotMsg(snap))
	snap.Messages = append(snap.Messages, domain.Message{ID: "m2", SenderID: "u2", Text: "two"})
	next, _ = next.Update(snapshotMsg(snap))
	m = next.(Model)
	latest := m.scrollSeq

	// Unchanged content schedules nothing.
	assert.Nil(t, m.applySnapshot(snap))
	assert.Equal(t, latest, m.scrollSeq)

	next, _ = m.Update(scrollMsg{seq: latest - 1})
	assert.Equal(t, latest, next.(Model).scrollSeq)
	next, _ = next.Update(scrollMsg{seq: latest})
	assert.True(t, next.(Model).vp.AtBottom())
}

func TestCursorFollowsConversationAcrossReorder(t *testing.T) {
	m := ready(t, newFakeSession())
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, m.cursor)

	snap := baseSnapshot()
	snap.Conversations[0], snap.Conversations[1] = snap.Conversations[1], snap.Conversations[0]
	next, _ := m.Update(snapshotMsg(snap))
	assert.Equal(t, 0, next.(Model).cursor)
}
