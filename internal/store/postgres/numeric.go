package postgres

import (
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericFromBig wraps a big.Int for a NUMERIC(39,0) column. A nil value
// encodes as zero so entity constructors that leave big fields unset still
// round-trip.
func numericFromBig(v *big.Int) pgtype.Numeric {
	if v == nil {
		v = new(big.Int)
	}
	return pgtype.Numeric{Int: new(big.Int).Set(v), Valid: true}
}

// bigFromNumeric converts a scanned NUMERIC back to a big.Int. Integer
// columns always carry Exp == 0; a positive Exp (trailing zeros stripped by
// the wire format) is multiplied back out.
func bigFromNumeric(n pgtype.Numeric) *big.Int {
	if !n.Valid || n.Int == nil {
		return new(big.Int)
	}
	v := new(big.Int).Set(n.Int)
	for e := n.Exp; e > 0; e-- {
		v.Mul(v, big.NewInt(10))
	}
	return v
}
