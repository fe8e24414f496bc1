package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// attestationPrefix domain-separates resolution attestations from any other
// message a resolver key might ever sign.
const attestationPrefix = "hyperd/resolution/v1"

// Attestation is the message a resolver signs to finalize a market. The
// digest binds the market, the outcome, the settlement price, and a
// timestamp so a signature cannot be replayed against another market or
// outcome.
type Attestation struct {
	MarketID        string
	Outcome         string
	SettlementPrice uint64
	Timestamp       int64
}

// digest returns the keccak256 hash of the canonical attestation encoding.
// Fields are length-prefixed so no two field sequences can collide.
func (a Attestation) digest() []byte {
	var buf []byte
	appendField := func(s string) {
		buf = append(buf, []byte(strconv.Itoa(len(s)))...)
		buf = append(buf, ':')
		buf = append(buf, []byte(s)...)
	}
	appendField(attestationPrefix)
	appendField(a.MarketID)
	appendField(a.Outcome)
	appendField(strconv.FormatUint(a.SettlementPrice, 10))
	appendField(strconv.FormatInt(a.Timestamp, 10))
	return ethcrypto.Keccak256(buf)
}

// Signer signs resolution attestations with a secp256k1 resolver key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the resolver address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAttestation signs the attestation digest, returning a hex-encoded
// 65-byte signature (r || s || v).
func (s *Signer) SignAttestation(a Attestation) (string, error) {
	sig, err := ethcrypto.Sign(a.digest(), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverAttester recovers the address that signed the attestation. Callers
// compare it against the market's designated resolver; a mismatch means the
// signature is from the wrong key or over different fields.
func RecoverAttester(a Attestation, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: expected 65-byte signature, got %d", len(sig))
	}
	// Normalise v back to {0,1} if the producer used {27,28}.
	if sig[64] >= 27 {
		sig = append(append([]byte{}, sig[:64]...), sig[64]-27)
	}
	pub, err := ethcrypto.SigToPub(a.digest(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recovering signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
