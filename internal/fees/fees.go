// Package fees divides a gross trade amount into basis-point fee buckets.
package fees

import (
	"math/bits"

	"github.com/hypelabs/hyperd/internal/domain"
)

const bpsDenominator = 10_000

// Split carries the three fee buckets cut from one gross amount.
type Split struct {
	AttentionFee uint64
	CreatorFee   uint64
	TreasuryFee  uint64
}

// New computes each fee as amount*bps/10^4 with the multiply widened to 128
// bits. The caller-side invariant that the three rates sum to at most 10000
// is enforced at configuration time (GlobalState.ValidateFees), which is
// what guarantees Total() never exceeds amount.
func New(amount uint64, attentionBps, creatorBps, treasuryBps uint16) (Split, error) {
	attention, err := mulBps(amount, attentionBps)
	if err != nil {
		return Split{}, err
	}
	creator, err := mulBps(amount, creatorBps)
	if err != nil {
		return Split{}, err
	}
	treasury, err := mulBps(amount, treasuryBps)
	if err != nil {
		return Split{}, err
	}
	return Split{AttentionFee: attention, CreatorFee: creator, TreasuryFee: treasury}, nil
}

// Total is the sum of the three buckets.
func (s Split) Total() uint64 {
	return s.AttentionFee + s.CreatorFee + s.TreasuryFee
}

// mulBps returns amount*bps/10^4, truncating. The quotient of the 128-bit
// product over 10^4 could only exceed 64 bits for bps > 10^4, which
// configuration validation rules out, but the check fails closed rather than
// assuming it.
func mulBps(amount uint64, bps uint16) (uint64, error) {
	hi, lo := bits.Mul64(amount, uint64(bps))
	if hi >= bpsDenominator {
		return 0, domain.ErrMathOverflow
	}
	quo, _ := bits.Div64(hi, lo, bpsDenominator)
	return quo, nil
}
