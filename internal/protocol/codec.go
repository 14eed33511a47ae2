package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"estatechat/internal/domain"
)

// Decoding errors. Callers log and drop the offending frame; none of them is
// a reason to tear the connection down.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown frame type")
	ErrInvalidFrame   = errors.New("invalid frame")
)

// ValidateText applies the local send rules to message text.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageRunes {
		return domain.ErrMessageTooLong
	}
	return nil
}

// Encode serializes an outbound command.
func Encode(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case SendMessage:
		if c.ConversationID == "" {
			return nil, fmt.Errorf("%w: send-message without chat_room_id", ErrInvalidFrame)
		}
		if err := ValidateText(c.Text); err != nil {
			return nil, err
		}
		return json.Marshal(sendMessageFrame{Type: TypeSendMessage, ChatRoomID: c.ConversationID, Message: c.Text})
	case RetrieveMessages:
		return encodeRoom(TypeRetrieveMessage, c.ConversationID)
	case IsSeen:
		return encodeRoom(TypeIsSeen, c.ConversationID)
	case SetMessageSeen:
		if c.MessageID == "" {
			return nil, fmt.Errorf("%w: set_message_seen without message_id", ErrInvalidFrame)
		}
		return json.Marshal(messageIDFrame{Type: TypeSetMessageSeen, MessageID: c.MessageID})
	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrInvalidFrame)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, cmd)
	}
}

func encodeRoom(typ, roomID string) ([]byte, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: %s without chat_room_id", ErrInvalidFrame, typ)
	}
	return json.Marshal(roomFrame{Type: typ, ChatRoomID: roomID})
}

// Decode parses an inbound frame into a typed event.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch env.Type {
	case TypeChatRooms:
		var f chatRoomsFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: chat_rooms: %v", ErrMalformedFrame, err)
		}
		rooms := make([]domain.Conversation, 0, len(f.Data.Rooms))
		for _, r := range f.Data.Rooms {
			if r.ConversationID == "" {
				continue
			}
			if r.UnreadCount < 0 {
				r.UnreadCount = 0
			}
			rooms = append(rooms, r)
		}
		return ChatRooms{
			Rooms:   rooms,
			Profile: domain.Profile{UserName: f.Data.UserName, UserProfileImage: f.Data.UserProfileImage},
		}, nil

	case TypeChatMessage:
		var f chatMessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: chat_message: %v", ErrMalformedFrame, err)
		}
		if f.ChatRoomID == "" {
			f.ChatRoomID = f.Message.ConversationID
		}
		if f.ChatRoomID == "" {
			return nil, fmt.Errorf("%w: chat_message without chat_room_id", ErrInvalidFrame)
		}
		if f.Message.ConversationID == "" {
			f.Message.ConversationID = f.ChatRoomID
		}
		return ChatMessage{ConversationID: f.ChatRoomID, Message: f.Message}, nil

	case TypeRetrieveMessage:
		var f historyFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: retrieve-message: %v", ErrMalformedFrame, err)
		}
		return History{Messages: f.Messages}, nil

	case TypeSeenMessage:
		var f messageIDFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: seen-message: %v", ErrMalformedFrame, err)
		}
		if f.MessageID == "" {
			return nil, fmt.Errorf("%w: seen-message without message_id", ErrInvalidFrame)
		}
		return SeenMessage{MessageID: f.MessageID}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// DecodeCommand parses a client frame. It is the server-side mirror of Encode.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch env.Type {
	case TypeSendMessage:
		var f sendMessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: send-message: %v", ErrMalformedFrame, err)
		}
		if f.ChatRoomID == "" {
			return nil, fmt.Errorf("%w: send-message without chat_room_id", ErrInvalidFrame)
		}
		if err := ValidateText(f.Message); err != nil {
			return nil, err
		}
		return SendMessage{ConversationID: f.ChatRoomID, Text: f.Message}, nil

	case TypeRetrieveMessage, TypeIsSeen:
		var f roomFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
		if f.ChatRoomID == "" {
			return nil, fmt.Errorf("%w: %s without chat_room_id", ErrInvalidFrame, env.Type)
		}
		if env.Type == TypeIsSeen {
			return IsSeen{ConversationID: f.ChatRoomID}, nil
		}
		return RetrieveMessages{ConversationID: f.ChatRoomID}, nil

	case TypeSetMessageSeen:
		var f messageIDFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: set_message_seen: %v", ErrMalformedFrame, err)
		}
		if f.MessageID == "" {
			return nil, fmt.Errorf("%w: set_message_seen without message_id", ErrInvalidFrame)
		}
		return SetMessageSeen{MessageID: f.MessageID}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// EncodeEvent serializes a server event.
func EncodeEvent(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case ChatRooms:
		rooms := e.Rooms
		if rooms == nil {
			rooms = []domain.Conversation{}
		}
		return json.Marshal(chatRoomsFrame{Type: TypeChatRooms, Data: chatRoomsData{
			Rooms:            rooms,
			UserProfileImage: e.Profile.UserProfileImage,
			UserName:         e.Profile.UserName,
		}})
	case ChatMessage:
		return json.Marshal(chatMessageFrame{Type: TypeChatMessage, ChatRoomID: e.ConversationID, Message: e.Message})
	case History:
		msgs := e.Messages
		if msgs == nil {
			msgs = []domain.Message{}
		}
		return json.Marshal(historyFrame{Type: TypeRetrieveMessage, Messages: msgs})
	case SeenMessage:
		return json.Marshal(messageIDFrame{Type: TypeSeenMessage, MessageID: e.MessageID})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, ev)
	}
}
