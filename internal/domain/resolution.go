package domain

import "time"

// ResolutionState is the settlement phase of a bonded market's resolution.
type ResolutionState string

const (
	ResolutionPending   ResolutionState = "pending"
	ResolutionFinalized ResolutionState = "finalized"
)

// Outcome is the resolver's decision for a bonded market.
type Outcome string

const (
	OutcomeUndecided Outcome = "undecided"
	OutcomeYes       Outcome = "yes"
	OutcomeNo        Outcome = "no"
)

// Resolution is created when a market bonds and finalized exactly once by
// the designated resolver. A finalized resolution always carries a decided
// outcome: Finalize is the only mutation path and it rejects Undecided.
type Resolution struct {
	MarketID        string
	Resolver        Address
	State           ResolutionState
	Outcome         Outcome
	SettlementPrice uint64
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// NewResolution returns a pending, undecided resolution bound to the given
// resolver identity.
func NewResolution(marketID string, resolver Address, now time.Time) *Resolution {
	return &Resolution{
		MarketID:  marketID,
		Resolver:  resolver,
		State:     ResolutionPending,
		Outcome:   OutcomeUndecided,
		CreatedAt: now,
	}
}

// Finalize transitions the resolution to Finalized with the given outcome and
// settlement price. It fails with ErrResolutionFinal if already finalized and
// with ErrInvalidOutcome for Undecided, leaving the resolution untouched in
// both cases.
func (r *Resolution) Finalize(outcome Outcome, settlementPrice uint64, now time.Time) error {
	if r.State != ResolutionPending {
		return ErrResolutionFinal
	}
	if outcome != OutcomeYes && outcome != OutcomeNo {
		return ErrInvalidOutcome
	}
	r.State = ResolutionFinalized
	r.Outcome = outcome
	r.SettlementPrice = settlementPrice
	r.ResolvedAt = &now
	return nil
}
