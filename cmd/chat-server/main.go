package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-chat/internal/archive"
	"github.com/weiawesome/wes-io-chat/internal/auth"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/handler"
	"github.com/weiawesome/wes-io-chat/internal/history"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/service"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// History store
	store, err := newHistoryStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize history store")
	}
	store = history.WithTimeout(store, cfg.History.OpTimeout)
	logger.Info().Str("driver", cfg.History.Driver).Int("max_messages", store.Limit()).Msg("history store ready")

	// Archive sink
	archiver, err := archive.New(cfg.Archive)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize archive")
	}

	// Token verifier
	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Leeway)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token verifier")
	}

	// Services
	registry := hub.NewRegistry()
	chatSvc := service.NewChatService(verifier, store, registry, archiver)
	historySvc := service.NewHistoryService(store)

	// Handlers
	wsHandler := handler.NewWSHandler(chatSvc, cfg.WebSocket)
	authMiddleware := middleware.NewAuthMiddleware(auth.ValidateFunc(verifier))
	httpHandler := handler.NewHandler(chatSvc, historySvc, authMiddleware, wsHandler, cfg.WebSocket.Path)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("ws_path", cfg.WebSocket.Path).Msg("chat-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down chat-service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by Shutdown.
		err := server.Shutdown(shutdownCtx)
		closed := registry.CloseAll(domain.CloseGoingAway, domain.ReasonShutdown)
		logger.Info().Int("connections", closed).Msg("closing live connections")
		if werr := wsHandler.Wait(shutdownCtx); werr != nil {
			logger.Warn().Err(werr).Msg("connections still open at shutdown deadline")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	if err := archiver.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close archive")
	}
	if err := store.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close history store")
	}
	logger.Info().Msg("chat-service stopped")
}

func newHistoryStore(cfg *config.Config) (history.Store, error) {
	if cfg.History.Driver == "memory" {
		return history.NewMemoryStore(cfg.History.MaxMessages), nil
	}
	client, err := history.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	return history.NewRedisStore(client, cfg.History.KeyPrefix, cfg.History.MaxMessages), nil
}
