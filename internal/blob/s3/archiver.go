package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hypelabs/hyperd/internal/domain"
)

// Archiver implements domain.Archiver by snapshotting a finalized market's
// state and full trade history into object storage. The snapshot is written
// as two objects under a per-market prefix:
//
//	settlements/{marketID}/summary.json  - market + resolution
//	settlements/{marketID}/trades.jsonl  - one trade receipt per line
//
// Pruning of the archived trade rows from the hot store is performed only
// after both uploads succeed, so a failed upload never loses history.
type Archiver struct {
	writer      domain.BlobWriter
	markets     domain.MarketStore
	resolutions domain.ResolutionStore
	trades      domain.TradeStore
}

// NewArchiver creates an Archiver over the given blob writer and stores.
func NewArchiver(
	writer domain.BlobWriter,
	markets domain.MarketStore,
	resolutions domain.ResolutionStore,
	trades domain.TradeStore,
) *Archiver {
	return &Archiver{
		writer:      writer,
		markets:     markets,
		resolutions: resolutions,
		trades:      trades,
	}
}

// settlementSummary is the JSON shape of the summary object.
type settlementSummary struct {
	Market     domain.Market      `json:"market"`
	Curve      domain.BondingCurve `json:"curve"`
	Resolution *domain.Resolution `json:"resolution,omitempty"`
	TradeCount int                `json:"trade_count"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// ArchiveSettlement snapshots the market, its resolution, and every recorded
// trade to object storage, then optionally prunes the trade rows. It returns
// the number of trades archived.
func (a *Archiver) ArchiveSettlement(ctx context.Context, marketID string, prune bool) (int64, error) {
	market, curve, err := a.markets.GetByID(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: load market: %w", marketID, err)
	}

	var resolution *domain.Resolution
	res, err := a.resolutions.GetByMarket(ctx, marketID)
	switch {
	case err == nil:
		resolution = &res
	case errors.Is(err, domain.ErrNotFound):
		// Discovery-phase markets have no resolution yet; archive without one.
	default:
		return 0, fmt.Errorf("s3blob: archive %s: load resolution: %w", marketID, err)
	}

	trades, err := a.trades.ListByMarket(ctx, marketID, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: load trades: %w", marketID, err)
	}

	summary := settlementSummary{
		Market:     market,
		Curve:      curve,
		Resolution: resolution,
		TradeCount: len(trades),
		ArchivedAt: time.Now().UTC(),
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: marshal summary: %w", marketID, err)
	}

	tradesJSONL, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: marshal trades: %w", marketID, err)
	}

	summaryPath := settlementPath(marketID, "summary.json")
	if err := a.writer.Put(ctx, summaryPath, bytes.NewReader(summaryJSON), "application/json"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: upload summary: %w", marketID, err)
	}

	tradesPath := settlementPath(marketID, "trades.jsonl")
	if err := a.writer.Put(ctx, tradesPath, bytes.NewReader(tradesJSONL), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: upload trades: %w", marketID, err)
	}

	count := int64(len(trades))

	if prune && count > 0 {
		deleted, err := a.trades.DeleteByMarket(ctx, marketID)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive %s: prune trades: %w", marketID, err)
		}
		if deleted != count {
			// Trades inserted between snapshot and prune stay in the hot
			// store until the next archive pass.
			return count, nil
		}
	}

	return count, nil
}

// settlementPath builds the S3 key for a settlement snapshot object.
func settlementPath(marketID, name string) string {
	return fmt.Sprintf("settlements/%s/%s", marketID, name)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
