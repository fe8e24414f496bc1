package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hypelabs/hyperd/internal/crypto"
	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/service"
)

// MarketService defines the methods the market handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type MarketService interface {
	InitializeGlobal(ctx context.Context, id string, params domain.GlobalParams) (domain.GlobalState, error)
	GetGlobal(ctx context.Context) (domain.GlobalState, error)
	CreateMarket(ctx context.Context, creator domain.Address, args domain.MarketCreationArgs) (domain.Market, error)
	Trade(ctx context.Context, marketID string, user domain.Address, args domain.TradeArgs) (domain.TradeReceipt, error)
	Bond(ctx context.Context, marketID string, resolver domain.Address) (domain.Resolution, error)
	Resolve(ctx context.Context, att crypto.Attestation, sigHex string) (domain.Resolution, error)
	Redeem(ctx context.Context, marketID string, user domain.Address, quantity uint64) (uint64, error)
	Harvest(ctx context.Context, marketID string, caller domain.Address) (service.HarvestReceipt, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListMarkets(ctx context.Context, state domain.MarketState, opts domain.ListOpts) ([]domain.Market, error)
	GetResolution(ctx context.Context, marketID string) (domain.Resolution, error)
	ListTrades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeReceipt, error)
	QuoteTrade(ctx context.Context, marketID string, direction domain.TradeDirection, quantity uint64) (service.TradeQuote, error)
}

// MarketHandler serves the bonding-curve market endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

type initGlobalRequest struct {
	ID                  string `json:"id"`
	Authority           string `json:"authority"`
	QuoteMint           string `json:"quote_mint"`
	Treasury            string `json:"treasury"`
	AttentionFeeBps     uint16 `json:"attention_fee_bps"`
	CreatorFeeBps       uint16 `json:"creator_fee_bps"`
	TreasuryFeeBps      uint16 `json:"treasury_fee_bps"`
	BondVolumeTarget    uint64 `json:"bond_volume_target"`
	BondLiquidityTarget uint64 `json:"bond_liquidity_target"`
}

// InitializeGlobal creates the protocol singleton.
// POST /api/global
func (h *MarketHandler) InitializeGlobal(w http.ResponseWriter, r *http.Request) {
	var req initGlobalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	g, err := h.markets.InitializeGlobal(r.Context(), req.ID, domain.GlobalParams{
		Authority:           domain.Address(req.Authority),
		QuoteMint:           domain.Address(req.QuoteMint),
		Treasury:            domain.Address(req.Treasury),
		AttentionFeeBps:     req.AttentionFeeBps,
		CreatorFeeBps:       req.CreatorFeeBps,
		TreasuryFeeBps:      req.TreasuryFeeBps,
		BondVolumeTarget:    req.BondVolumeTarget,
		BondLiquidityTarget: req.BondLiquidityTarget,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// GetGlobal returns the protocol singleton.
// GET /api/global
func (h *MarketHandler) GetGlobal(w http.ResponseWriter, r *http.Request) {
	g, err := h.markets.GetGlobal(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type createMarketRequest struct {
	Creator               string  `json:"creator"`
	BasePrice             uint64  `json:"base_price"`
	SlopeBps              uint64  `json:"slope_bps"`
	CurvatureBps          uint64  `json:"curvature_bps"`
	MaxSupply             uint64  `json:"max_supply"`
	Metadata              string  `json:"metadata"`
	BondVolumeOverride    *uint64 `json:"bond_volume_override,omitempty"`
	BondLiquidityOverride *uint64 `json:"bond_liquidity_override,omitempty"`
}

// CreateMarket opens a new discovery-phase market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Creator == "" {
		writeError(w, http.StatusBadRequest, "creator is required")
		return
	}

	m, err := h.markets.CreateMarket(r.Context(), domain.Address(req.Creator), domain.MarketCreationArgs{
		BasePrice:             req.BasePrice,
		SlopeBps:              req.SlopeBps,
		CurvatureBps:          req.CurvatureBps,
		MaxSupply:             req.MaxSupply,
		Metadata:              []byte(req.Metadata),
		BondVolumeOverride:    req.BondVolumeOverride,
		BondLiquidityOverride: req.BondLiquidityOverride,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GetMarket returns one market.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetMarket(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMarkets returns markets filtered by lifecycle state.
// GET /api/markets?state=discovery&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	state := domain.MarketState(r.URL.Query().Get("state"))
	if state == "" {
		state = domain.MarketStateDiscovery
	}
	if state != domain.MarketStateDiscovery && state != domain.MarketStateBonded {
		writeError(w, http.StatusBadRequest, "invalid state filter")
		return
	}

	opts := parseListOpts(r)
	markets, err := h.markets.ListMarkets(r.Context(), state, opts)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

type tradeRequest struct {
	User       string `json:"user"`
	Direction  string `json:"direction"`
	Quantity   uint64 `json:"quantity"`
	MaxSpend   uint64 `json:"max_spend"`
	MinReceive uint64 `json:"min_receive"`
}

// Trade executes a buy or sell against a discovery market.
// POST /api/markets/{id}/trade
func (h *MarketHandler) Trade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	receipt, err := h.markets.Trade(r.Context(), pathParam(r, "id"), domain.Address(req.User), domain.TradeArgs{
		Direction:  domain.TradeDirection(req.Direction),
		Quantity:   req.Quantity,
		MaxSpend:   req.MaxSpend,
		MinReceive: req.MinReceive,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// QuoteTrade previews a trade without executing it.
// GET /api/markets/{id}/quote?direction=buy&quantity=10
func (h *MarketHandler) QuoteTrade(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	direction := domain.TradeDirection(q.Get("direction"))
	quantity, err := parseUint(q.Get("quantity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quantity")
		return
	}

	quote, err := h.markets.QuoteTrade(r.Context(), pathParam(r, "id"), direction, quantity)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type bondRequest struct {
	Resolver string `json:"resolver"`
}

// Bond promotes a discovery market that has met its bond targets.
// POST /api/markets/{id}/bond
func (h *MarketHandler) Bond(w http.ResponseWriter, r *http.Request) {
	var req bondRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Resolver == "" {
		writeError(w, http.StatusBadRequest, "resolver is required")
		return
	}

	res, err := h.markets.Bond(r.Context(), pathParam(r, "id"), domain.Address(req.Resolver))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type resolveRequest struct {
	Outcome         string `json:"outcome"`
	SettlementPrice uint64 `json:"settlement_price"`
	Timestamp       int64  `json:"timestamp"`
	Signature       string `json:"signature"`
}

// Resolve finalizes a bonded market's resolution from a signed attestation.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Signature == "" {
		writeError(w, http.StatusBadRequest, "signature is required")
		return
	}

	att := crypto.Attestation{
		MarketID:        pathParam(r, "id"),
		Outcome:         req.Outcome,
		SettlementPrice: req.SettlementPrice,
		Timestamp:       req.Timestamp,
	}
	res, err := h.markets.Resolve(r.Context(), att, req.Signature)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type redeemRequest struct {
	User     string `json:"user"`
	Quantity uint64 `json:"quantity"`
}

// Redeem burns shares against a finalized resolution.
// POST /api/markets/{id}/redeem
func (h *MarketHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	payout, err := h.markets.Redeem(r.Context(), pathParam(r, "id"), domain.Address(req.User), req.Quantity)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"payout": payout})
}

type harvestRequest struct {
	Caller string `json:"caller"`
}

// Harvest sweeps accrued attention fees and mints the caller's reward.
// POST /api/markets/{id}/harvest
func (h *MarketHandler) Harvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	receipt, err := h.markets.Harvest(r.Context(), pathParam(r, "id"), domain.Address(req.Caller))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// GetResolution returns the resolution bound to a market.
// GET /api/markets/{id}/resolution
func (h *MarketHandler) GetResolution(w http.ResponseWriter, r *http.Request) {
	res, err := h.markets.GetResolution(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListTrades returns a market's trade history, newest first.
// GET /api/markets/{id}/trades
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.markets.ListTrades(r.Context(), pathParam(r, "id"), parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}
