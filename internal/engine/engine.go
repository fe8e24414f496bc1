// Package engine implements the two market lifecycle state machines: the
// bonding-curve (price discovery) market and the constant-product simple
// market. Every operation follows the same discipline: validate the current
// state, compute all arithmetic, then move value through the ledger, and
// mutate entity state only after every computation has succeeded. Callers
// persist the mutated entities only on success, so an error never leaves
// partial state behind.
package engine

import (
	"log/slog"
	"math/bits"

	"github.com/hypelabs/hyperd/internal/domain"
)

// AttnRewardRatio is the number of attention reward tokens minted per unit
// of attention fee harvested.
const AttnRewardRatio uint64 = 10

// Engine executes lifecycle operations against entities, moving value
// through the injected ledger collaborator.
type Engine struct {
	ledger domain.Ledger
	logger *slog.Logger
}

// New creates an Engine bound to a ledger.
func New(ledger domain.Ledger, logger *slog.Logger) *Engine {
	return &Engine{
		ledger: ledger,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// addU64 is overflow-checked addition; it fails closed with ErrMathOverflow.
func addU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrMathOverflow
	}
	return sum, nil
}

// mulU64 is overflow-checked multiplication.
func mulU64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, domain.ErrMathOverflow
	}
	return lo, nil
}

// subU64 is underflow-checked subtraction.
func subU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, domain.ErrMathOverflow
	}
	return diff, nil
}

// shareAccount derives the vault holding a user's shares of one market mint.
func (e *Engine) shareAccount(marketID string, user domain.Address) domain.Address {
	return e.ledger.DeriveAddress([]byte("shares"), []byte(marketID), []byte(user))
}

// attnAccount derives the vault holding a user's attention reward tokens.
func (e *Engine) attnAccount(user domain.Address) domain.Address {
	return e.ledger.DeriveAddress([]byte("attn"), []byte(user))
}
