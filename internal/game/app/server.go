// Package server hosts the game service: orchestrator, broker, and the
// HTTP/WebSocket command surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	httpapi "github.com/Plabrum/trackstar/internal/game/api/http"
	"github.com/Plabrum/trackstar/internal/game/api/ws"
	"github.com/Plabrum/trackstar/internal/game/auth"
	"github.com/Plabrum/trackstar/internal/game/pubsub"
	"github.com/Plabrum/trackstar/internal/game/score"
	"github.com/Plabrum/trackstar/internal/game/service"
	"github.com/Plabrum/trackstar/internal/game/storage/sqlite"
	"github.com/Plabrum/trackstar/internal/platform/config"
)

// Config holds the server's environment configuration.
type Config struct {
	Addr   string `env:"TRACKSTAR_HTTP_ADDR" envDefault:"localhost:8080"`
	DBPath string `env:"TRACKSTAR_DB_PATH" envDefault:"data/trackstar.db"`
}

// Server hosts the game service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured server listening on the configured address.
func New(cfg Config) (*Server, error) {
	store, err := openGameStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.LoadConfigFromEnv(nil)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var scoring score.Config
	if err := config.ParseEnv(&scoring); err != nil {
		_ = store.Close()
		return nil, err
	}
	var lobby service.LobbyConfig
	if err := config.ParseEnv(&lobby); err != nil {
		_ = store.Close()
		return nil, err
	}

	broker := pubsub.NewBroker()
	svc, err := service.New(store, service.Options{
		Publisher: broker,
		Tokens:    tokens,
		Scoring:   scoring,
		Lobby:     lobby,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	handler := httpapi.NewHandler(svc, tokens, ws.NewHandler(broker, nil), nil)
	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: handler.Router()},
		store:      store,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	log.Printf("game server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func (s *Server) closeStore() {
	if err := s.store.Close(); err != nil {
		log.Printf("close game store: %v", err)
	}
}

func openGameStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "trackstar.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open game sqlite store: %w", err)
	}
	return store, nil
}
