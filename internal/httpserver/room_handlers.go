package httpserver

import (
	"net/http"

	"estatechat/internal/service"
)

type roomsResponse struct {
	Rooms            any    `json:"rooms"`
	UserName         string `json:"userName"`
	UserProfileImage string `json:"userProfileImage"`
}

// handleListRooms returns the same room list a websocket client receives on
// connect.
func handleListRooms(chats *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		rooms, profile, err := chats.ListRooms(r.Context(), user.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rooms"})
			return
		}
		writeJSON(w, http.StatusOK, roomsResponse{
			Rooms:            rooms,
			UserName:         profile.UserName,
			UserProfileImage: profile.UserProfileImage,
		})
	}
}
