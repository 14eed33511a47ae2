// Command server runs a development chat peer that speaks the client's
// websocket protocol. It stores data in SQLite, or PostgreSQL when
// DATABASE_URL is set.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estatechat/internal/config"
	"estatechat/internal/domain"
	"estatechat/internal/httpserver"
	"estatechat/internal/obs"
	"estatechat/internal/security"
	"estatechat/internal/service"
	"estatechat/internal/store/postgres"
	"estatechat/internal/store/sqlite"
	"estatechat/internal/ws"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		obs.NewLogger("production").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := obs.NewLogger(cfg.Env)

	db, repos, err := openStore(cfg, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	userRepo, roomRepo, memberRepo, msgRepo := repos.users, repos.rooms, repos.members, repos.messages

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	authSvc := service.NewAuthService(userRepo, tokenSvc, security.NewPasswordHasher(0))
	chatSvc := service.NewChatService(userRepo, roomRepo, memberRepo, msgRepo, service.DefaultHistoryLimit)

	if cfg.SeedDemo {
		if err := service.SeedDemo(context.Background(), authSvc, userRepo, roomRepo, msgRepo); err != nil {
			log.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:        authSvc,
		Chats:       chatSvc,
		Hub:         ws.NewHub(),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting chat server", "addr", cfg.HTTPAddr(), "app", cfg.AppName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

type repositories struct {
	users    domain.UserRepository
	rooms    domain.RoomRepository
	members  domain.MemberRepository
	messages domain.MessageRepository
}

func openStore(cfg *config.Server, log *slog.Logger) (*sql.DB, repositories, error) {
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, repositories{}, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		log.Info("using postgres store")
		return db, repositories{
			users:    postgres.NewUserRepo(db),
			rooms:    postgres.NewRoomRepo(db),
			members:  postgres.NewMemberRepo(db),
			messages: postgres.NewMessageRepo(db),
		}, nil
	}

	db, err := sqlite.Open(cfg.DSN)
	if err != nil {
		return nil, repositories{}, err
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return nil, repositories{}, err
	}
	log.Info("using sqlite store", "dsn", cfg.DSN)
	return db, repositories{
		users:    sqlite.NewUserRepo(db),
		rooms:    sqlite.NewRoomRepo(db),
		members:  sqlite.NewMemberRepo(db),
		messages: sqlite.NewMessageRepo(db),
	}, nil
}
