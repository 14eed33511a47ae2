package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"estatechat/internal/obs"
	"estatechat/internal/service"
	"estatechat/internal/ws"
)

type Deps struct {
	Auth        *service.AuthService
	Chats       *service.ChatService
	Hub         *ws.Hub
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter wires the development peer's HTTP routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/auth/login", handleLogin(d.Auth))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Auth))
			r.Get("/auth/me", handleMe())
			r.Get("/rooms", handleListRooms(d.Chats))
		})
	})

	// The token is part of the path; clients append it verbatim.
	r.Method(http.MethodGet, "/ws/{token}", ws.NewHandler(d.Hub, d.Auth, d.Chats, d.CORSOrigins, d.Logger))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
