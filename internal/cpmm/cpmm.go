// Package cpmm implements constant-product share issuance and redemption for
// a two-pool binary market. The invariant k = yes_pool * no_pool is held
// while one pool absorbs a deposit or funds a withdrawal; the share delta is
// how far the opposite pool's implied balance moves.
//
// Unlike the bonding-curve path, k and the pool deltas deliberately use
// saturating arithmetic: pools are lamport-scale uint64 values, the widened
// product always fits 128 bits, and saturation bounds any residual loss
// instead of aborting the trade.
package cpmm

import "github.com/holiman/uint256"

// IssueShares returns the shares minted to a buyer who deposits amount into
// currentPool. With k fixed, growing the buyer's pool shrinks the implied
// opposite pool; that shrinkage is the buyer's share count. Division floors
// and a zero post-deposit pool yields zero shares.
func IssueShares(oppositePool, currentPool, amount uint64) uint64 {
	k := product(oppositePool, currentPool)
	newPool := new(uint256.Int).AddUint64(uint256.NewInt(currentPool), amount)
	if newPool.IsZero() {
		return 0
	}
	newOpposite := new(uint256.Int).Div(k, newPool)
	return saturatingDelta(oppositePool, newOpposite)
}

// RedeemReturn returns the payout for selling shares back into the market:
// the opposite pool's implied balance grows by the shares and the seller's
// pool shrinks to keep k constant; the shrinkage is the payout.
func RedeemReturn(oppositePool, currentPool, shares uint64) uint64 {
	k := product(oppositePool, currentPool)
	newOpposite := new(uint256.Int).AddUint64(uint256.NewInt(oppositePool), shares)
	if newOpposite.IsZero() {
		return 0
	}
	newPool := new(uint256.Int).Div(k, newOpposite)
	return saturatingDelta(currentPool, newPool)
}

// product widens both pools before multiplying; two uint64 factors can never
// overflow the 256-bit domain.
func product(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// saturatingDelta returns before - after clamped at zero, narrowed to uint64.
func saturatingDelta(before uint64, after *uint256.Int) uint64 {
	b := uint256.NewInt(before)
	if after.Cmp(b) >= 0 {
		return 0
	}
	delta := new(uint256.Int).Sub(b, after)
	// after < before <= 2^64-1, so the delta always narrows.
	return delta.Uint64()
}
