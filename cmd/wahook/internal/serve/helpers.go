package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinyland-inc/wahook/cmd/wahook/internal"
	"github.com/tinyland-inc/wahook/pkg/bus"
	"github.com/tinyland-inc/wahook/pkg/forward"
	"github.com/tinyland-inc/wahook/pkg/health"
	"github.com/tinyland-inc/wahook/pkg/identity"
	"github.com/tinyland-inc/wahook/pkg/intake"
	"github.com/tinyland-inc/wahook/pkg/lifecycle"
	"github.com/tinyland-inc/wahook/pkg/logger"
	"github.com/tinyland-inc/wahook/pkg/transport/bridge"
)

func serveCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger.SetLevelFromString(cfg.LogLevel)
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store := identity.NewStore(cfg.IdentityCachePath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("error loading identity cache %s: %w", cfg.IdentityCachePath, err)
	}
	logger.InfoCF("serve", "Identity cache loaded", map[string]any{
		"path":    cfg.IdentityCachePath,
		"entries": store.Len(),
	})

	if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
		return fmt.Errorf("error creating session dir %s: %w", cfg.SessionDir, err)
	}

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	resolver := identity.NewResolver(store, cfg.Forward.UnresolvedPolicy)
	pipeline := intake.NewPipeline(resolver, msgBus, intake.Options{
		CodeOnly:  cfg.Forward.CodeOnly,
		AllowFrom: cfg.AllowFrom,
	})
	forwarder := forward.New(cfg.WebhookURL, cfg.Forward.Timeout(), msgBus)

	dialer := bridge.NewDialer(cfg.Bridge.URL, cfg.Bridge.HandshakeTimeout())
	manager := lifecycle.NewManager(dialer, pipeline, store, lifecycle.Options{
		CredsDir:                cfg.SessionDir,
		Backoff:                 lifecycle.Backoff{Delay: cfg.Session.ReconnectBackoff()},
		KeepaliveInterval:       cfg.Session.KeepaliveInterval(),
		ResetIdentitiesOnLogout: cfg.Session.ResetIdentitiesOnLogout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startedAt := time.Now()
	var healthServer *health.Server
	if cfg.Gateway.Enabled {
		healthServer = health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, func() health.Status {
			return health.Status{
				State:         string(manager.State()),
				CacheSize:     store.Len(),
				Delivery:      forwarder.Stats(),
				UptimeSeconds: int64(time.Since(startedAt).Seconds()),
			}
		})
		go func() {
			if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
			}
		}()
		fmt.Printf("Health endpoints available at http://%s:%d/health and /status\n",
			cfg.Gateway.Host, cfg.Gateway.Port)
	}

	go forwarder.Run(ctx)
	go func() {
		if err := manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorCF("serve", "Lifecycle manager stopped", map[string]any{"error": err.Error()})
		}
	}()

	fmt.Printf("wahook started, forwarding to %s\n", cfg.WebhookURL)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		healthServer.Stop(shutdownCtx) //nolint:errcheck // best-effort shutdown
		shutdownCancel()
	}
	msgBus.Close()
	fmt.Println("wahook stopped")

	return nil
}
