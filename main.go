package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"studentwelfare-chat-relay/config"
	"studentwelfare-chat-relay/hub"
	"studentwelfare-chat-relay/protocol"
	ws "studentwelfare-chat-relay/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	registry := hub.NewRegistry()
	controller := protocol.NewController(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(cfg, controller))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(registry))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		slog.Info("relay starting", "port", cfg.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Sessions are in-memory only and are abandoned; only the HTTP
	// listener is drained.
	slog.Info("relay shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

func wsHandler(cfg config.Config, handler *protocol.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The upstream auth layer issues this cookie when it validates
		// the principal; a connection without it is rejected before it
		// reaches the relay state machine. The relay itself performs no
		// credential checks.
		if _, err := r.Cookie(cfg.AuthCookieName); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		ws.NewConn(uuid.New().String(), conn, handler).Start()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(registry *hub.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, participants := registry.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"sessions": sessions, "participants": participants})
	}
}
