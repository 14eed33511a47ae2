package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"estatechat/internal/chat"
	"estatechat/internal/config"
	"estatechat/internal/domain"
	"estatechat/internal/obs"
	"estatechat/internal/tui"
)

var cfg = config.LoadClient()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatclient",
	Short: "Terminal chat client for listing conversations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		logFile, err := obs.OpenLogFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		log := obs.NewLoggerTo(logFile, cfg.Env, false)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess := chat.NewSession(domain.Identity{UserID: cfg.UserID, Token: cfg.Token}, chat.Options{
			WSBase:    cfg.WSBase,
			Logger:    log,
			Transport: cfg.Transport,
			SendRate:  cfg.SendRate,
			SendBurst: cfg.SendBurst,
		})

		runErr := make(chan error, 1)
		go func() { runErr <- sess.Run(ctx) }()

		p := tea.NewProgram(tui.New(sess, cfg.UserID, cfg.MediaBaseURL), tea.WithAltScreen(), tea.WithContext(ctx))
		_, uiErr := p.Run()

		sess.Close()
		<-runErr
		log.Info("client stopped")

		if uiErr != nil && ctx.Err() == nil {
			return fmt.Errorf("run ui: %w", uiErr)
		}
		return nil
	},
}

var (
	loginServer   string
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Fetch a chat token from a development server.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := json.Marshal(map[string]string{
			"username": loginUsername,
			"password": loginPassword,
		})
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Post(strings.TrimRight(loginServer, "/")+"/api/auth/login", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("login request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("login failed: %s", resp.Status)
		}
		var out struct {
			AccessToken string `json:"access_token"`
			UserID      string `json:"user_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode login response: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "export CHAT_TOKEN=%s\nexport CHAT_USER_ID=%s\n", out.AccessToken, out.UserID)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cfg.Token, "token", "t", cfg.Token,
		"Access token appended to the websocket URL. Defaults to $CHAT_TOKEN.")
	rootCmd.Flags().StringVarP(&cfg.UserID, "user", "u", cfg.UserID,
		"Current user id, used to tell own messages apart. Defaults to $CHAT_USER_ID.")
	rootCmd.Flags().StringVar(&cfg.WSBase, "ws-base", cfg.WSBase,
		"Websocket base URL; the token is appended verbatim.")
	rootCmd.Flags().StringVar(&cfg.LogFile, "log", cfg.LogFile,
		"Log output path.")

	loginCmd.Flags().StringVarP(&loginServer, "server", "s", "http://localhost:8000",
		"Development server base URL.")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "U", "",
		"Account username.")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "P", "",
		"Account password.")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd)
}
