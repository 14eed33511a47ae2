package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"estatechat/internal/transport"
)

// Client configures the chat client.
type Client struct {
	Env          string
	WSBase       string
	Token        string
	UserID       string
	MediaBaseURL string
	LogFile      string

	Transport transport.Options
	SendRate  rate.Limit
	SendBurst int
}

// Server configures the development chat peer.
type Server struct {
	AppName string
	Env     string
	Host    string
	Port    int
	DSN     string
	// DatabaseURL selects PostgreSQL over SQLite when set.
	DatabaseURL string

	JWTSecret          string
	AccessTokenMinutes int

	CORSOrigins []string
	SeedDemo    bool
}

// LoadClient reads client settings from the environment. Token and user id
// may be left empty here and filled from flags; Validate checks them.
func LoadClient() *Client {
	t := transport.DefaultOptions()
	t.ReconnectInitial = getEnvAsDuration("CHAT_RECONNECT_INITIAL", t.ReconnectInitial)
	t.ReconnectMax = getEnvAsDuration("CHAT_RECONNECT_MAX", t.ReconnectMax)
	t.SendRetryInterval = getEnvAsDuration("CHAT_SEND_RETRY_INTERVAL", t.SendRetryInterval)
	t.SendRetryLimit = getEnvAsInt("CHAT_SEND_RETRY_LIMIT", t.SendRetryLimit)
	t.DisconnectAfter = getEnvAsInt("CHAT_DISCONNECT_AFTER", t.DisconnectAfter)
	t.PingInterval = getEnvAsDuration("CHAT_PING_INTERVAL", t.PingInterval)

	return &Client{
		Env:          getEnv("APP_ENV", "development"),
		WSBase:       getEnv("CHAT_WS_BASE", "ws://localhost:8000/ws/"),
		Token:        os.Getenv("CHAT_TOKEN"),
		UserID:       os.Getenv("CHAT_USER_ID"),
		MediaBaseURL: os.Getenv("MEDIA_BASE_URL"),
		LogFile:      getEnv("LOG_FILE", "chatclient.log"),
		Transport:    t,
		SendRate:     rate.Limit(getEnvAsFloat("CHAT_SEND_RATE", 5)),
		SendBurst:    getEnvAsInt("CHAT_SEND_BURST", 10),
	}
}

func (c *Client) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("CHAT_TOKEN is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("CHAT_USER_ID is required")
	}
	if !strings.HasPrefix(c.WSBase, "ws://") && !strings.HasPrefix(c.WSBase, "wss://") {
		return fmt.Errorf("CHAT_WS_BASE must be a ws:// or wss:// url, got %q", c.WSBase)
	}
	return nil
}

func LoadServer() (*Server, error) {
	cfg := &Server{
		AppName: getEnv("APP_NAME", "estatechat dev peer"),
		Env:     getEnv("APP_ENV", "development"),
		Host:    getEnv("HTTP_HOST", "0.0.0.0"),
		Port:    getEnvAsInt("HTTP_PORT", 8000),
		DSN:     getEnv("SQLITE_DSN", "file:estatechat.db?_pragma=foreign_keys(1)"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_MINUTES", 60*24),
		SeedDemo:           getEnvAsBool("SEED_DEMO_DATA", true),
	}

	cors := getEnv("CORS_ORIGINS", "")
	if cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func (c *Server) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvAsDuration accepts Go durations ("750ms") or plain milliseconds.
func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
