package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/auth"
	"github.com/vovakirdan/strangerchat/internal/config"
	"github.com/vovakirdan/strangerchat/internal/core"
	"github.com/vovakirdan/strangerchat/internal/devserver"
	"github.com/vovakirdan/strangerchat/internal/sanitize"
	"github.com/vovakirdan/strangerchat/internal/store"
	"github.com/vovakirdan/strangerchat/internal/store/sqlite"
	"github.com/vovakirdan/strangerchat/internal/transport/ws"
	"github.com/vovakirdan/strangerchat/internal/tui"
)

// Chat wires storage, the session engine, the WebSocket transport and the terminal UI.
type Chat struct {
	session *core.Session
	store   store.KV
	log     *zerolog.Logger
}

// NewChat constructs the chat client from configuration.
func NewChat(cfg config.Config, logger *zerolog.Logger) *Chat {
	kv := openStore(cfg.DataPath, logger)

	identity := core.NewIdentityStore(kv, logger)
	session := core.NewSession(core.Options{
		Identity:        identity,
		Dialer:          ws.NewDialer(cfg.ServerURL, cfg.OutboxSize, logger),
		Pipeline:        core.NewPipeline(sanitize.New(), cfg.BannedWords),
		TypingTimeout:   cfg.TypingTimeout,
		DialTimeout:     cfg.DialTimeout,
		PrivilegedToken: cfg.PrivilegedToken,
		Logger:          logger,
	})

	return &Chat{session: session, store: kv, log: logger}
}

// openStore opens the SQLite store. A nil result makes the identity memory-only.
func openStore(path string, logger *zerolog.Logger) store.KV {
	st, err := sqlite.New(path)
	if err != nil {
		logger.Warn().Err(err).Str("data_path", path).Msg("storage unavailable, identity will not persist")
		return nil
	}
	logger.Info().Str("data_path", path).Msg("storage initialized")
	return st
}

// Run shows the UI and blocks until the user quits or ctx is cancelled.
func (c *Chat) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- c.session.Run(ctx)
	}()

	program := tea.NewProgram(tui.New(c.session), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}

	cancel()
	if sessionErr := <-sessionDone; sessionErr != nil && err == nil {
		err = sessionErr
	}
	c.cleanup()
	return err
}

func (c *Chat) cleanup() {
	if c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		c.log.Warn().Err(err).Msg("failed to close store")
	} else {
		c.log.Info().Msg("store closed")
	}
}

// Server runs the development matchmaking server.
type Server struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *devserver.Hub
	log             *zerolog.Logger
}

// NewServer constructs the matchmaking server from configuration.
func NewServer(cfg config.Config, logger *zerolog.Logger) *Server {
	var jwtConfig *auth.JWTConfig
	if cfg.Server.AdminSecret != "" {
		jwtConfig = auth.NewJWTConfig(cfg.Server.AdminSecret, 0)
		logger.Info().Msg("privileged registrations require a signed token")
	} else {
		logger.Warn().Msg("admin_secret not set, privileged flag is trusted as sent")
	}

	hub := devserver.NewHub(devserver.HubOptions{
		JWT:       jwtConfig,
		Sanitizer: relayCleaner(cfg.Server),
		Banned:    cfg.BannedWords,
		Logger:    logger,
	})

	return &Server{
		server:          devserver.NewServer(hub, cfg.Server, logger),
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		hub:             hub,
		log:             logger,
	}
}

// relayCleaner builds the sanitizer applied to relayed text. Markup stripping
// is off unless strip_markup is set, so text arrives as typed.
func relayCleaner(cfg config.ServerConfig) *sanitize.Cleaner {
	if cfg.StripMarkup {
		return sanitize.New(sanitize.WithMarkupStripping())
	}
	return sanitize.New()
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("matchmaking server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- fmt.Errorf("listen: %w", err)
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Shutdown does not track hijacked WebSocket connections; stopping the hub ends their handlers.
		stopHub()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
