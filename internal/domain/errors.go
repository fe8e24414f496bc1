package domain

import "errors"

// Core lifecycle and math errors. Every operation fails with exactly one of
// these; failures are terminal for the operation and never leave partial
// state behind.
var (
	// Configuration
	ErrInvalidFee = errors.New("invalid fee configuration")

	// Validation
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidSupply      = errors.New("invalid supply value")
	ErrInvalidPrice       = errors.New("invalid price value")
	ErrInvalidSlope       = errors.New("invalid slope value")
	ErrSupplyCapExceeded  = errors.New("supply cap exceeded")
	ErrMetadataTooLong    = errors.New("metadata length exceeds limit")
	ErrInsufficientShares = errors.New("insufficient shares in position")

	// Lifecycle state
	ErrMarketBonded        = errors.New("market already bonded")
	ErrMarketNotBonded     = errors.New("market is not bonded")
	ErrBondThresholdNotMet = errors.New("bond thresholds not met")
	ErrResolutionFinal     = errors.New("resolution already finalized")
	ErrResolutionPending   = errors.New("resolution still pending")
	ErrInvalidOutcome      = errors.New("invalid outcome")
	ErrAlreadyResolved     = errors.New("market already resolved")
	ErrUnresolved          = errors.New("market has not been resolved")
	ErrAlreadyClaimed      = errors.New("position already claimed")
	ErrNothingToHarvest    = errors.New("nothing to harvest")

	// Economic guards
	ErrSlippageExceeded      = errors.New("slippage exceeded limits")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity in curve")

	// Arithmetic
	ErrMathOverflow = errors.New("math overflow")

	// Authorization
	ErrUnauthorized = errors.New("unauthorized")
)

// Infrastructure errors surfaced by stores, caches, and the ledger.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrLockHeld            = errors.New("lock already held")
	ErrInsufficientBalance = errors.New("insufficient vault balance")
	ErrUnknownVault        = errors.New("unknown vault")
)
