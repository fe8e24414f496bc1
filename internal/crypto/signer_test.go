package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// well-known anvil/hardhat dev key, safe to embed in tests
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestSignAndRecoverAttestation(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	a := Attestation{
		MarketID:        "mkt-42",
		Outcome:         "yes",
		SettlementPrice: 1500,
		Timestamp:       1_750_000_000,
	}
	sig, err := s.SignAttestation(a)
	require.NoError(t, err)

	recovered, err := RecoverAttester(a, sig)
	require.NoError(t, err)
	require.Equal(t, s.Address(), recovered)
}

func TestRecoverRejectsTamperedFields(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	a := Attestation{MarketID: "mkt-42", Outcome: "yes", SettlementPrice: 1500, Timestamp: 1}
	sig, err := s.SignAttestation(a)
	require.NoError(t, err)

	tampered := a
	tampered.Outcome = "no"
	recovered, err := RecoverAttester(tampered, sig)
	if err == nil {
		require.NotEqual(t, s.Address(), recovered)
	}
}

func TestSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("not-hex")
	require.Error(t, err)
}

func TestEncryptDecryptKeyRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "correct horse")
	require.NoError(t, err)

	plain, err := DecryptKey(blob, "correct horse")
	require.NoError(t, err)
	require.Equal(t, testKeyHex, plain)

	_, err = DecryptKey(blob, "wrong password")
	require.Error(t, err)
}

func TestLoadKeyPrecedence(t *testing.T) {
	k, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	require.Equal(t, testKeyHex, k)

	_, err = LoadKey(KeyConfig{})
	require.Error(t, err)
}
