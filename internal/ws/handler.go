package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"estatechat/internal/protocol"
	"estatechat/internal/service"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits native clients, which send no Origin header, and
// browsers from the allowed list.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		_, ok := allowed[u.Scheme+"://"+u.Host]
		return ok
	}
}

// Handler serves chat connections at /ws/{token}.
type Handler struct {
	hub      *Hub
	auth     *service.AuthService
	chats    *service.ChatService
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, auth *service.AuthService, chats *service.ChatService, allowedOrigins []string, log *slog.Logger) *Handler {
	return &Handler{
		hub:   hub,
		auth:  auth,
		chats: chats,
		log:   log.With("component", "ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: makeCheckOrigin(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.auth.Authenticate(ctx, chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := h.log.With("user_id", user.ID)
	c := &client{conn: conn}
	h.hub.register(user.ID, c)
	defer h.hub.unregister(user.ID, c)
	log.Info("connected")

	if err := h.sendRooms(ctx, user.ID, c); err != nil {
		log.Error("send chat rooms", "error", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read", "error", err)
			}
			log.Info("disconnected")
			return
		}

		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			log.Warn("dropping command", "error", err)
			continue
		}
		if err := h.dispatch(ctx, user.ID, c, cmd); err != nil {
			log.Warn("command failed", "type", cmd.CommandType(), "error", err)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, userID int64, c *client, cmd protocol.Command) error {
	switch cmd := cmd.(type) {
	case protocol.SendMessage:
		msg, err := h.chats.PostMessage(ctx, userID, cmd.ConversationID, cmd.Text)
		if err != nil {
			return err
		}
		return h.broadcast(ctx, msg.ConversationID, protocol.ChatMessage{ConversationID: msg.ConversationID, Message: msg})

	case protocol.RetrieveMessages:
		msgs, err := h.chats.History(ctx, userID, cmd.ConversationID)
		if err != nil {
			// Every request gets a response; clients match them by order.
			if rerr := h.reply(c, protocol.History{}); rerr != nil {
				return rerr
			}
			return err
		}
		return h.reply(c, protocol.History{Messages: msgs})

	case protocol.IsSeen:
		ids, err := h.chats.SeenInRoom(ctx, userID, cmd.ConversationID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := h.reply(c, protocol.SeenMessage{MessageID: id}); err != nil {
				return err
			}
		}
		return nil

	case protocol.SetMessageSeen:
		msg, changed, err := h.chats.MarkSeen(ctx, userID, cmd.MessageID)
		if err != nil || !changed {
			return err
		}
		return h.broadcast(ctx, msg.ConversationID, protocol.SeenMessage{MessageID: msg.ID})

	default:
		return errors.New("unsupported command")
	}
}

func (h *Handler) sendRooms(ctx context.Context, userID int64, c *client) error {
	rooms, profile, err := h.chats.ListRooms(ctx, userID)
	if err != nil {
		return err
	}
	return h.reply(c, protocol.ChatRooms{Rooms: rooms, Profile: profile})
}

func (h *Handler) reply(c *client, ev protocol.Event) error {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return c.send(data)
}

func (h *Handler) broadcast(ctx context.Context, roomID string, ev protocol.Event) error {
	members, err := h.chats.MemberIDs(ctx, roomID)
	if err != nil {
		return err
	}
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	h.hub.SendToUsers(members, data)
	return nil
}

