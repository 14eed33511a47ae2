// Package protocol implements the chat wire format: JSON text frames with a
// "type" discriminator.
package protocol

import "estatechat/internal/domain"

// Frame types. "retrieve-message" is used in both directions: as a history
// request from the client and as the history response from the server.
const (
	TypeSendMessage     = "send-message"
	TypeRetrieveMessage = "retrieve-message"
	TypeIsSeen          = "is_seen"
	TypeSetMessageSeen  = "set_message_seen"

	TypeChatRooms   = "chat_rooms"
	TypeChatMessage = "chat_message"
	TypeSeenMessage = "seen-message"
)

// Command is an outbound (client to server) frame.
type Command interface {
	CommandType() string
}

// SendMessage posts text into a conversation.
type SendMessage struct {
	ConversationID string
	Text           string
}

// RetrieveMessages requests the full history of a conversation.
type RetrieveMessages struct {
	ConversationID string
}

// IsSeen requests a seen-status sync for a conversation.
type IsSeen struct {
	ConversationID string
}

// SetMessageSeen acknowledges a single message as read.
type SetMessageSeen struct {
	MessageID string
}

func (SendMessage) CommandType() string      { return TypeSendMessage }
func (RetrieveMessages) CommandType() string { return TypeRetrieveMessage }
func (IsSeen) CommandType() string           { return TypeIsSeen }
func (SetMessageSeen) CommandType() string   { return TypeSetMessageSeen }

// Event is an inbound (server to client) frame.
type Event interface {
	EventType() string
}

// ChatRooms is the conversation snapshot sent once after the connection opens.
type ChatRooms struct {
	Rooms   []domain.Conversation
	Profile domain.Profile
}

// ChatMessage announces a new message in a room the user belongs to,
// sent by either party.
type ChatMessage struct {
	ConversationID string
	Message        domain.Message
}

// History answers a RetrieveMessages request.
type History struct {
	Messages []domain.Message
}

// SeenMessage confirms that a message's seen state changed.
type SeenMessage struct {
	MessageID string
}

func (ChatRooms) EventType() string   { return TypeChatRooms }
func (ChatMessage) EventType() string { return TypeChatMessage }
func (History) EventType() string     { return TypeRetrieveMessage }
func (SeenMessage) EventType() string { return TypeSeenMessage }

// wire shapes

type envelope struct {
	Type string `json:"type"`
}

type roomFrame struct {
	Type       string `json:"type"`
	ChatRoomID string `json:"chat_room_id"`
}

type sendMessageFrame struct {
	Type       string `json:"type"`
	ChatRoomID string `json:"chat_room_id"`
	Message    string `json:"message"`
}

type messageIDFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

type chatRoomsData struct {
	Rooms            []domain.Conversation `json:"rooms"`
	UserProfileImage string                `json:"userProfileImage"`
	UserName         string                `json:"userName"`
}

type chatRoomsFrame struct {
	Type string        `json:"type"`
	Data chatRoomsData `json:"data"`
}

type chatMessageFrame struct {
	Type       string         `json:"type"`
	ChatRoomID string         `json:"chat_room_id"`
	Message    domain.Message `json:"message"`
}

type historyFrame struct {
	Type     string           `json:"type"`
	Messages []domain.Message `json:"messages"`
}
