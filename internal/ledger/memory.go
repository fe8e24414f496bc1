// Package ledger provides implementations of the domain.Ledger collaborator.
// The in-memory implementation backs tests and the standalone server mode;
// it enforces the same authority rules a production settlement ledger would.
package ledger

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hypelabs/hyperd/internal/domain"
)

type vaultRecord struct {
	balance   uint64
	authority domain.Address
}

type mintRecord struct {
	authority domain.Address
	supply    uint64
}

// Memory is an in-process ledger. All state lives behind a single mutex;
// operations are atomic individually, not across calls, which matches the
// contract the engines are written against.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	vaults  map[domain.Address]*vaultRecord
	mints   map[domain.Address]*mintRecord
	signers map[domain.Address]struct{}
}

// NewMemory returns an empty ledger using the wall clock.
func NewMemory() *Memory {
	return &Memory{
		now:     time.Now,
		vaults:  make(map[domain.Address]*vaultRecord),
		mints:   make(map[domain.Address]*mintRecord),
		signers: make(map[domain.Address]struct{}),
	}
}

// SetClock replaces the ledger clock. Tests use it to pin timestamps.
func (l *Memory) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Fund credits an account directly, creating it as self-custodied if it does
// not exist. It is the test and bootstrap entry point for quote currency.
func (l *Memory) Fund(addr domain.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.ensureAccount(addr)
	next := v.balance + amount
	if next < v.balance {
		return domain.ErrMathOverflow
	}
	v.balance = next
	return nil
}

// RegisterSigner marks an identity as having proven control of its key.
func (l *Memory) RegisterSigner(identity domain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signers[identity] = struct{}{}
}

func (l *Memory) CreateVault(_ context.Context, vault, authority domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.vaults[vault]; ok {
		if existing.authority != authority {
			return domain.ErrAlreadyExists
		}
		return nil
	}
	l.vaults[vault] = &vaultRecord{authority: authority}
	return nil
}

func (l *Memory) CreateMint(_ context.Context, mint, authority domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.mints[mint]; ok {
		if existing.authority != authority {
			return domain.ErrAlreadyExists
		}
		return nil
	}
	l.mints[mint] = &mintRecord{authority: authority}
	return nil
}

func (l *Memory) Transfer(_ context.Context, from, to, authority domain.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src, ok := l.vaults[from]
	if !ok {
		return domain.ErrUnknownVault
	}
	if src.authority != authority {
		return domain.ErrUnauthorized
	}
	if src.balance < amount {
		return domain.ErrInsufficientBalance
	}
	dst := l.ensureAccount(to)
	next := dst.balance + amount
	if next < dst.balance {
		return domain.ErrMathOverflow
	}
	src.balance -= amount
	dst.balance = next
	return nil
}

func (l *Memory) Mint(_ context.Context, mint, authority, to domain.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return domain.ErrUnknownVault
	}
	if m.authority != authority {
		return domain.ErrUnauthorized
	}
	nextSupply := m.supply + amount
	if nextSupply < m.supply {
		return domain.ErrMathOverflow
	}
	dst := l.ensureAccount(to)
	nextBal := dst.balance + amount
	if nextBal < dst.balance {
		return domain.ErrMathOverflow
	}
	m.supply = nextSupply
	dst.balance = nextBal
	return nil
}

func (l *Memory) Burn(_ context.Context, mint, from, authority domain.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return domain.ErrUnknownVault
	}
	src, ok := l.vaults[from]
	if !ok {
		return domain.ErrUnknownVault
	}
	if src.authority != authority {
		return domain.ErrUnauthorized
	}
	if src.balance < amount {
		return domain.ErrInsufficientBalance
	}
	if m.supply < amount {
		return domain.ErrInsufficientBalance
	}
	src.balance -= amount
	m.supply -= amount
	return nil
}

func (l *Memory) Balance(_ context.Context, vault domain.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.vaults[vault]
	if !ok {
		return 0, domain.ErrUnknownVault
	}
	return v.balance, nil
}

func (l *Memory) VerifySigner(_ context.Context, identity domain.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.signers[identity]
	return ok
}

// DeriveAddress hashes the seed material with Keccak-256 and truncates to a
// 20-byte address. Each seed is length-prefixed before hashing so distinct
// seed vectors can never concatenate to the same preimage; derived addresses
// collide with each other or with externally supplied ones only by hash
// collision.
func (l *Memory) DeriveAddress(seeds ...[]byte) domain.Address {
	var buf []byte
	for _, seed := range seeds {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(seed)))
		buf = append(buf, n[:]...)
		buf = append(buf, seed...)
	}
	h := crypto.Keccak256(buf)
	return domain.Address(common.BytesToAddress(h[12:]).Hex())
}

func (l *Memory) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now()
}

// ensureAccount returns the vault record for addr, creating a self-custodied
// account on first touch. Callers hold l.mu.
func (l *Memory) ensureAccount(addr domain.Address) *vaultRecord {
	v, ok := l.vaults[addr]
	if !ok {
		v = &vaultRecord{authority: addr}
		l.vaults[addr] = v
	}
	return v
}

// MintSupply reports the outstanding supply of a mint. Exposed for tests and
// the settlement archiver's consistency report.
func (l *Memory) MintSupply(mint domain.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return 0, domain.ErrUnknownVault
	}
	return m.supply, nil
}

var _ domain.Ledger = (*Memory)(nil)
