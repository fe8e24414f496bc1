package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hypelabs/hyperd/internal/domain"
)

// ArchiveService periodically sweeps finalized markets into cold storage:
// it scans bonded markets, and for each one whose resolution has finalized
// writes a settlement snapshot through the Archiver, skipping markets whose
// snapshot already exists.
type ArchiveService struct {
	archiver    domain.Archiver
	reader      domain.BlobReader
	markets     domain.MarketStore
	resolutions domain.ResolutionStore
	bus         domain.SignalBus
	limiter     domain.RateLimiter
	scanDur     time.Duration
	prune       bool
	logger      *slog.Logger
}

// archiveUploadKey throttles settlement uploads across every replica running
// a sweep, so a backlog of finalized markets does not burst into object
// storage all at once.
const archiveUploadKey = "archive:upload"

// NewArchiveService creates an ArchiveService. scanInterval is how often the
// sweep runs; prune controls whether archived trade rows are deleted from
// the hot store. A nil limiter disables upload pacing.
func NewArchiveService(
	archiver domain.Archiver,
	reader domain.BlobReader,
	markets domain.MarketStore,
	resolutions domain.ResolutionStore,
	bus domain.SignalBus,
	limiter domain.RateLimiter,
	scanInterval time.Duration,
	prune bool,
	logger *slog.Logger,
) *ArchiveService {
	if scanInterval <= 0 {
		scanInterval = 10 * time.Minute
	}
	return &ArchiveService{
		archiver:    archiver,
		reader:      reader,
		markets:     markets,
		resolutions: resolutions,
		bus:         bus,
		limiter:     limiter,
		scanDur:     scanInterval,
		prune:       prune,
		logger:      logger.With(slog.String("component", "archive_service")),
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Call in a
// goroutine.
func (a *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.scanDur)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				a.logger.ErrorContext(ctx, "settlement sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep performs one archival pass and returns the first scan error. Archive
// failures for individual markets are logged and do not stop the pass.
func (a *ArchiveService) Sweep(ctx context.Context) error {
	// Resolutions only exist for bonded markets, so the scan is bounded by
	// the bonded set. Page through it in fixed-size chunks.
	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		markets, err := a.markets.List(ctx, domain.MarketStateBonded, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return err
		}
		if len(markets) == 0 {
			return nil
		}
		for _, m := range markets {
			if err := a.archiveIfFinalized(ctx, m.ID); err != nil {
				a.logger.WarnContext(ctx, "archive market failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if len(markets) < pageSize {
			return nil
		}
	}
}

func (a *ArchiveService) archiveIfFinalized(ctx context.Context, marketID string) error {
	res, err := a.resolutions.GetByMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if res.State != domain.ResolutionFinalized {
		return nil
	}

	archived, err := a.reader.Exists(ctx, "settlements/"+marketID+"/summary.json")
	if err != nil {
		return err
	}
	if archived {
		return nil
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, archiveUploadKey); err != nil {
			return err
		}
	}

	trades, err := a.archiver.ArchiveSettlement(ctx, marketID, a.prune)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "settlement archived",
		slog.String("market_id", marketID),
		slog.Int64("trades", trades),
	)
	publish(ctx, a.bus, a.logger, ChannelEvents, map[string]any{
		"event":     EventSettlementArchive,
		"market_id": marketID,
		"trades":    trades,
	})
	return nil
}
