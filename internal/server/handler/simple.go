package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hypelabs/hyperd/internal/domain"
)

// SimpleService defines the methods the simple-market handler requires from
// the service layer.
type SimpleService interface {
	Create(ctx context.Context, creator, resolver domain.Address) (domain.SimpleMarket, error)
	Buy(ctx context.Context, marketID string, buyer domain.Address, side domain.Side, amount uint64) (uint64, error)
	Sell(ctx context.Context, marketID string, seller domain.Address, side domain.Side, shares uint64) (uint64, error)
	Resolve(ctx context.Context, marketID string, caller domain.Address, winning domain.Side) (domain.SimpleMarket, error)
	Claim(ctx context.Context, marketID string, claimer domain.Address) (uint64, error)
	GetMarket(ctx context.Context, id string) (domain.SimpleMarket, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.SimpleMarket, error)
	GetPosition(ctx context.Context, marketID string, user domain.Address) (domain.UserPosition, error)
}

// SimpleHandler serves the constant-product binary market endpoints.
type SimpleHandler struct {
	simple SimpleService
	logger *slog.Logger
}

// NewSimpleHandler creates a SimpleHandler with the given service and logger.
func NewSimpleHandler(simple SimpleService, logger *slog.Logger) *SimpleHandler {
	return &SimpleHandler{
		simple: simple,
		logger: logger,
	}
}

type createSimpleRequest struct {
	Creator  string `json:"creator"`
	Resolver string `json:"resolver"`
}

// Create seeds a new binary market from the creator's funds.
// POST /api/simple
func (h *SimpleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSimpleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Creator == "" || req.Resolver == "" {
		writeError(w, http.StatusBadRequest, "creator and resolver are required")
		return
	}

	m, err := h.simple.Create(r.Context(), domain.Address(req.Creator), domain.Address(req.Resolver))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GetMarket returns one simple market.
// GET /api/simple/{id}
func (h *SimpleHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.simple.GetMarket(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMarkets returns simple markets, newest first.
// GET /api/simple
func (h *SimpleHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	markets, err := h.simple.ListMarkets(r.Context(), opts)
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

type simpleTradeRequest struct {
	User   string `json:"user"`
	Side   string `json:"side"`
	Amount uint64 `json:"amount"`
	Shares uint64 `json:"shares"`
}

// Buy purchases shares on one side of a market.
// POST /api/simple/{id}/buy
func (h *SimpleHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req simpleTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	shares, err := h.simple.Buy(r.Context(), pathParam(r, "id"), domain.Address(req.User), domain.Side(req.Side), req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"shares": shares})
}

// Sell redeems shares back into one side of a market.
// POST /api/simple/{id}/sell
func (h *SimpleHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req simpleTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	payout, err := h.simple.Sell(r.Context(), pathParam(r, "id"), domain.Address(req.User), domain.Side(req.Side), req.Shares)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"payout": payout})
}

type simpleResolveRequest struct {
	Caller      string `json:"caller"`
	WinningSide string `json:"winning_side"`
}

// Resolve records the winning side.
// POST /api/simple/{id}/resolve
func (h *SimpleHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req simpleResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	m, err := h.simple.Resolve(r.Context(), pathParam(r, "id"), domain.Address(req.Caller), domain.Side(req.WinningSide))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type claimRequest struct {
	User string `json:"user"`
}

// Claim pays a winning position its cut of the losing pool.
// POST /api/simple/{id}/claim
func (h *SimpleHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	payout, err := h.simple.Claim(r.Context(), pathParam(r, "id"), domain.Address(req.User))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"payout": payout})
}

// GetPosition returns one user's position in one market.
// GET /api/simple/{id}/positions/{user}
func (h *SimpleHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.simple.GetPosition(r.Context(), pathParam(r, "id"), domain.Address(pathParam(r, "user")))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
