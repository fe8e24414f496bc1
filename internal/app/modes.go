package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/notify"
	"github.com/hypelabs/hyperd/internal/server"
	"github.com/hypelabs/hyperd/internal/server/handler"
	"github.com/hypelabs/hyperd/internal/server/ws"
	"github.com/hypelabs/hyperd/internal/service"
)

// ServerMode starts the HTTP API, the WebSocket hub, and the notification
// bridge. It blocks until the context is cancelled or a goroutine fails.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	a.startEventBridge(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs only the settlement archiver sweep loop.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startArchiver(ctx, g, deps); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	return g.Wait()
}

// FullMode runs the HTTP API, the WebSocket hub, the notification bridge,
// and the settlement archiver together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	a.startEventBridge(ctx, g, deps)
	if a.cfg.Archive.Enabled {
		if err := a.startArchiver(ctx, g, deps); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}
	return g.Wait()
}

// startHTTPServer adds the WebSocket hub and the HTTP server goroutines to
// the given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by configuration")
		return nil
	}

	marketSvc := service.NewMarketService(
		deps.Engine, deps.Ledger,
		deps.GlobalStore, deps.MarketStore, deps.ResolutionStore, deps.TradeStore,
		deps.MarketCache, deps.LockManager, deps.SignalBus,
		a.logger,
	)

	// Bootstrap the protocol singleton from the [protocol] section. An
	// already-initialized protocol is left untouched; without the ledger
	// addresses configured the singleton must come through POST /api/global.
	if p := a.cfg.Protocol; p.Authority != "" && p.QuoteMint != "" {
		if _, err := marketSvc.EnsureGlobal(ctx, p.GlobalID, domain.GlobalParams{
			Authority:           domain.Address(p.Authority),
			QuoteMint:           domain.Address(p.QuoteMint),
			Treasury:            domain.Address(p.Treasury),
			AttentionFeeBps:     p.AttentionFeeBps,
			CreatorFeeBps:       p.CreatorFeeBps,
			TreasuryFeeBps:      p.TreasuryFeeBps,
			BondVolumeTarget:    p.BondVolumeTarget,
			BondLiquidityTarget: p.BondLiquidityTarget,
		}); err != nil {
			return fmt.Errorf("bootstrap global state: %w", err)
		}
	} else {
		a.logger.InfoContext(ctx, "protocol bootstrap skipped, authority or quote mint not configured")
	}
	simpleSvc := service.NewSimpleService(
		deps.Engine,
		deps.GlobalStore, deps.SimpleMarketStore, deps.PositionStore,
		deps.LockManager, deps.SignalBus,
		a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.AdminAPIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger, deps.HealthChecks...),
			Markets: handler.NewMarketHandler(marketSvc, a.logger),
			Simple:  handler.NewSimpleHandler(simpleSvc, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return nil
}

// startEventBridge forwards protocol events to the configured notification
// channels. It is a no-op when no notification sender is configured.
func (a *App) startEventBridge(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier == nil {
		return
	}
	bridge := notify.NewEventBridge(deps.SignalBus, deps.Notifier, service.ChannelEvents, a.logger)
	g.Go(func() error {
		return bridge.Run(ctx)
	})
}

// startArchiver adds the settlement archiver sweep loop to the errgroup.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil || deps.BlobReader == nil {
		return fmt.Errorf("archiver requires object storage (set archive.enabled and the s3 section)")
	}

	archiveSvc := service.NewArchiveService(
		deps.Archiver,
		deps.BlobReader,
		deps.MarketStore,
		deps.ResolutionStore,
		deps.SignalBus,
		deps.RateLimiter,
		a.cfg.Archive.ScanInterval.Duration,
		a.cfg.Archive.PruneArchived,
		a.logger,
	)
	g.Go(func() error {
		return archiveSvc.Run(ctx)
	})
	return nil
}
