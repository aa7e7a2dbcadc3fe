package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/api"
	"github.com/notifyhub/delivery-dispatch/internal/backend"
	"github.com/notifyhub/delivery-dispatch/internal/backend/email"
	"github.com/notifyhub/delivery-dispatch/internal/backend/irc"
	"github.com/notifyhub/delivery-dispatch/internal/broker"
	"github.com/notifyhub/delivery-dispatch/internal/config"
	"github.com/notifyhub/delivery-dispatch/internal/db"
	"github.com/notifyhub/delivery-dispatch/internal/directory"
	"github.com/notifyhub/delivery-dispatch/internal/dispatch"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
	"github.com/notifyhub/delivery-dispatch/internal/metrics"
	"github.com/notifyhub/delivery-dispatch/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	subs := store.NewPgSubscriptionStore(pool)
	dir := directory.New()

	bk, err := broker.Dial(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer bk.Close() //nolint:errcheck

	// Context for all background goroutines; cancelled on shutdown.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// ---- delivery backends ----
	backends := make(map[domain.BackendKind]backend.Backend)

	if cfg.EmailEnabled {
		eb, err := email.New(email.Options{
			Host:        cfg.SMTPHostname,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			RequireAuth: cfg.SMTPRequireAuth,
			RequireTLS:  cfg.SMTPRequireTLS,
			From:        cfg.EmailFromAddress,
		}, logger)
		if err != nil {
			logger.Fatal("failed to build email backend", zap.Error(err))
		}
		backends[domain.BackendEmail] = eb
	}

	if cfg.IRCEnabled {
		session := irc.NewSession(irc.Options{
			Server:           cfg.IRCEndpoint,
			Nick:             cfg.IRCNick,
			NickServPassword: cfg.IRCPassword,
			UseTLS:           cfg.IRCUseTLS,
			LineRate:         cfg.IRCLineRate,
		}, logger)
		go func() {
			if err := session.Run(runCtx); err != nil {
				logger.Error("irc session ended", zap.Error(err))
			}
		}()
		backends[domain.BackendIRC] = irc.NewBackend(session, cfg.IRCConnectWait, logger)
	}

	if len(backends) == 0 {
		logger.Fatal("no delivery backends enabled; set IRC_ENABLED or EMAIL_ENABLED")
	}

	// ---- dispatch service ----
	onDelivered, onFailed, onControl, onConsumers := m.DispatchHooks()
	svc := dispatch.New(bk, subs, dir, backends, cfg.ControlQueue, logger, dispatch.Hooks{
		OnDelivered: onDelivered,
		OnFailed:    onFailed,
		OnControl:   onControl,
		OnConsumers: onConsumers,
	})
	if err := svc.Start(runCtx); err != nil {
		logger.Fatal("failed to start dispatch service", zap.Error(err))
	}

	// ---- HTTP server ----
	router := api.NewRouter(dir, reg, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Cancel consumers and drain in-flight deliveries.
	svc.Stop(shutdownCtx)

	// 3. Disconnect the IRC session and any other background goroutines.
	cancelRun()

	logger.Info("dispatcher stopped cleanly")
}
