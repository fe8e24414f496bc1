// Package curve implements the quadratic bonding-curve quote math. The spot
// price at supply s is
//
//	p(s) = base_price + slope_bps*s/10^4 + curvature_bps*s^2/10^9
//
// and a batch buy or sell is priced as the discrete integral of p over the
// supply range it covers. All arithmetic runs in a 256-bit domain with
// checked operations and truncating division, multiply before divide, so
// results are bit-identical across implementations for the same inputs.
package curve

import (
	"github.com/holiman/uint256"

	"github.com/hypelabs/hyperd/internal/domain"
)

const (
	bpsDenominator       = 10_000
	curvatureDenominator = 1_000_000_000
)

// QuoteForPurchase returns the total quote cost of buying quantity shares
// starting at currentSupply. It fails with domain.ErrMathOverflow if any
// intermediate step overflows or the result does not fit in a uint64; it
// never wraps.
func QuoteForPurchase(basePrice, slopeBps, curvatureBps, currentSupply, quantity uint64) (uint64, error) {
	return integrate(basePrice, slopeBps, curvatureBps, currentSupply, quantity)
}

// QuoteForSale returns the quote payout of selling quantity shares down from
// currentSupply. It is the same integral evaluated from the post-sale supply,
// so an immediate buy-then-sell round trip nets out exactly (fees aside).
// Selling more than the current supply fails with ErrInsufficientLiquidity.
func QuoteForSale(basePrice, slopeBps, curvatureBps, currentSupply, quantity uint64) (uint64, error) {
	if quantity > currentSupply {
		return 0, domain.ErrInsufficientLiquidity
	}
	return integrate(basePrice, slopeBps, curvatureBps, currentSupply-quantity, quantity)
}

// integrate computes sum_{i=0}^{qty-1} p(from+i) as three closed-form terms:
//
//	linear    = qty * (base + slope*from/10^4)
//	slope     = slope * qty*(qty-1)/2 / 10^4          (arithmetic series)
//	curvature = curv * qty*(qty-1)*(2*from+qty-1) / 10^9
//
// The truncation points (one /10^4 per slope use, one /10^9 for curvature)
// are load-bearing: moving a division changes rounding and therefore the
// quoted price.
func integrate(basePrice, slopeBps, curvatureBps, fromSupply, quantity uint64) (uint64, error) {
	base := uint256.NewInt(basePrice)
	slope := uint256.NewInt(slopeBps)
	curv := uint256.NewInt(curvatureBps)
	supply := uint256.NewInt(fromSupply)
	qty := uint256.NewInt(quantity)

	one := uint256.NewInt(1)
	two := uint256.NewInt(2)
	bpsDen := uint256.NewInt(bpsDenominator)
	curvDen := uint256.NewInt(curvatureDenominator)

	// qty-1 underflows for quantity == 0; a zero-share trade has no price.
	qtyMinusOne := new(uint256.Int)
	if _, underflow := qtyMinusOne.SubOverflow(qty, one); underflow {
		return 0, domain.ErrMathOverflow
	}

	// linear term: qty * (base + slope*supply/10^4)
	spot := new(uint256.Int)
	if _, overflow := spot.MulOverflow(slope, supply); overflow {
		return 0, domain.ErrMathOverflow
	}
	spot.Div(spot, bpsDen)
	if _, overflow := spot.AddOverflow(spot, base); overflow {
		return 0, domain.ErrMathOverflow
	}
	linear := new(uint256.Int)
	if _, overflow := linear.MulOverflow(qty, spot); overflow {
		return 0, domain.ErrMathOverflow
	}

	// slope component: slope * (qty*(qty-1)/2) / 10^4
	series := new(uint256.Int)
	if _, overflow := series.MulOverflow(qty, qtyMinusOne); overflow {
		return 0, domain.ErrMathOverflow
	}
	series.Div(series, two)
	slopeComp := new(uint256.Int)
	if _, overflow := slopeComp.MulOverflow(slope, series); overflow {
		return 0, domain.ErrMathOverflow
	}
	slopeComp.Div(slopeComp, bpsDen)

	// curvature component: curv * qty*(qty-1) * (2*supply + qty - 1) / 10^9
	pairs := new(uint256.Int)
	if _, overflow := pairs.MulOverflow(qty, qtyMinusOne); overflow {
		return 0, domain.ErrMathOverflow
	}
	span := new(uint256.Int)
	if _, overflow := span.MulOverflow(supply, two); overflow {
		return 0, domain.ErrMathOverflow
	}
	if _, overflow := span.AddOverflow(span, qtyMinusOne); overflow {
		return 0, domain.ErrMathOverflow
	}
	curvComp := new(uint256.Int)
	if _, overflow := curvComp.MulOverflow(pairs, span); overflow {
		return 0, domain.ErrMathOverflow
	}
	if _, overflow := curvComp.MulOverflow(curvComp, curv); overflow {
		return 0, domain.ErrMathOverflow
	}
	curvComp.Div(curvComp, curvDen)

	total := new(uint256.Int)
	if _, overflow := total.AddOverflow(linear, slopeComp); overflow {
		return 0, domain.ErrMathOverflow
	}
	if _, overflow := total.AddOverflow(total, curvComp); overflow {
		return 0, domain.ErrMathOverflow
	}

	if !total.IsUint64() {
		return 0, domain.ErrMathOverflow
	}
	return total.Uint64(), nil
}
