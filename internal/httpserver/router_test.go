package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatechat/internal/chat"
	"estatechat/internal/domain"
	"estatechat/internal/httpserver"
	"estatechat/internal/protocol"
	"estatechat/internal/security"
	"estatechat/internal/service"
	"estatechat/internal/store/sqlite"
	"estatechat/internal/ws"
)

type peer struct {
	srv      *httptest.Server
	messages *sqlite.MessageRepo
}

func startPeer(t *testing.T) peer {
	t.Helper()
	db, err := sqlite.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	users := sqlite.NewUserRepo(db)
	rooms := sqlite.NewRoomRepo(db)
	members := sqlite.NewMemberRepo(db)
	messages := sqlite.NewMessageRepo(db)

	auth := service.NewAuthService(users, security.NewTokenService("test-secret", time.Hour), security.NewPasswordHasher(4))
	chats := service.NewChatService(users, rooms, members, messages, 0)
	require.NoError(t, service.SeedDemo(context.Background(), auth, users, rooms, messages))
	require.NoError(t, service.SeedDemo(context.Background(), auth, users, rooms, messages), "seeding twice is a no-op")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(httpserver.NewRouter(httpserver.Deps{
		Auth:   auth,
		Chats:  chats,
		Hub:    ws.NewHub(),
		Logger: log,
	}))
	t.Cleanup(srv.Close)
	return peer{srv: srv, messages: messages}
}

func login(t *testing.T, p peer, username, password string) (*http.Response, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(p.srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealthAndLogin(t *testing.T) {
	p := startPeer(t)

	resp, err := http.Get(p.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out := login(t, p, "dana", service.DemoPassword)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["access_token"])
	assert.NotEmpty(t, out["user_id"])

	resp, _ = login(t, p, "dana", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListRoomsRequiresToken(t *testing.T) {
	p := startPeer(t)

	resp, err := http.Get(p.srv.URL + "/api/rooms")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, out := login(t, p, "dana", service.DemoPassword)
	req, _ := http.NewRequest(http.MethodGet, p.srv.URL+"/api/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+out["access_token"].(string))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms struct {
		Rooms    []domain.Conversation `json:"rooms"`
		UserName string                `json:"userName"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	assert.Len(t, rooms.Rooms, 2)
	assert.Equal(t, "Dana Levi", rooms.UserName)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	p := startPeer(t)

	url := "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/ws/not-a-token"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFailedHistoryRequestGetsEmptyReply(t *testing.T) {
	p := startPeer(t)
	_, out := login(t, p, "dana", service.DemoPassword)

	url := "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/ws/" + out["access_token"].(string)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := protocol.Decode(data)
	require.NoError(t, err)
	require.IsType(t, protocol.ChatRooms{}, ev)

	frame, err := protocol.Encode(protocol.RetrieveMessages{ConversationID: "not-a-room"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	ev, err = protocol.Decode(data)
	require.NoError(t, err)
	hist, ok := ev.(protocol.History)
	require.True(t, ok, "got %T", ev)
	assert.Empty(t, hist.Messages)
}

func TestClientSessionAgainstPeer(t *testing.T) {
	p := startPeer(t)
	_, out := login(t, p, "dana", service.DemoPassword)
	userID := out["user_id"].(string)

	sess := chat.NewSession(domain.Identity{UserID: userID, Token: out["access_token"].(string)}, chat.Options{
		WSBase: "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/ws/",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()
	t.Cleanup(func() {
		sess.Close()
		<-done
	})

	var snap chat.Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = sess.Snapshot()
		return err == nil && snap.Status == chat.StatusOnline && len(snap.Conversations) == 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Dana Levi", snap.Profile.UserName)

	var sunrise domain.Conversation
	for _, c := range snap.Conversations {
		if c.CounterpartName == "Sunrise Realty" {
			sunrise = c
		}
	}
	require.NotEmpty(t, sunrise.ConversationID)
	assert.Equal(t, 1, sunrise.UnreadCount)
	assert.Equal(t, "Yes! Would you like to schedule a viewing?", sunrise.LastMessagePreview)

	require.NoError(t, sess.SelectConversation(sunrise.ConversationID))
	require.Eventually(t, func() bool {
		snap, _ = sess.Snapshot()
		return len(snap.Messages) == 2 && snap.Messages[1].IsSeen
	}, 3*time.Second, 10*time.Millisecond)

	roomID, err := strconv.ParseInt(sunrise.ConversationID, 10, 64)
	require.NoError(t, err)
	uid, err := strconv.ParseInt(userID, 10, 64)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := p.messages.CountUnseen(context.Background(), roomID, uid)
		return err == nil && n == 0
	}, 3*time.Second, 10*time.Millisecond, "seen ack reaches the server")

	require.NoError(t, sess.SendMessage("Friday at 6 works for me."))
	require.Eventually(t, func() bool {
		snap, _ = sess.Snapshot()
		return len(snap.Messages) == 3 && len(snap.Pending) == 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, userID, snap.Messages[2].SenderID)
	for _, c := range snap.Conversations {
		if c.ConversationID == sunrise.ConversationID {
			assert.Equal(t, "Friday at 6 works for me.", c.LastMessagePreview)
			assert.Zero(t, c.UnreadCount)
		}
	}
}
