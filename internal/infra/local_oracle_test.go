package infra

import (
	"bytes"
	"context"
	"crypto/sha256"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var testSeedHex = strings.Repeat("ab", 32)

func TestNewLocalOracle_InvalidSeed(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{name: "not hex", seed: "zz"},
		{name: "too short", seed: "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLocalOracle(tt.seed); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLocalOracle_PublicKeyIsDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := NewLocalOracle(testSeedHex)
	if err != nil {
		t.Fatalf("NewLocalOracle: %v", err)
	}
	b, err := NewLocalOracle(testSeedHex)
	if err != nil {
		t.Fatalf("NewLocalOracle: %v", err)
	}

	pubA, err := a.PublicKey(ctx, "dfx_test_key", nil)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	pubB, err := b.PublicKey(ctx, "dfx_test_key", nil)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if !bytes.Equal(pubA, pubB) {
		t.Error("same seed and key name should give the same public key")
	}
	if len(pubA) != 33 {
		t.Errorf("len = %d, want 33", len(pubA))
	}

	other, err := a.PublicKey(ctx, "key_1", nil)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if bytes.Equal(pubA, other) {
		t.Error("different key names should give different public keys")
	}

	derived, err := a.PublicKey(ctx, "dfx_test_key", [][]byte{{0x01}})
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if bytes.Equal(pubA, derived) {
		t.Error("derivation path should change the key")
	}
}

func TestLocalOracle_SignVerifies(t *testing.T) {
	ctx := context.Background()
	o, err := NewLocalOracle(testSeedHex)
	if err != nil {
		t.Fatalf("NewLocalOracle: %v", err)
	}
	pub, err := o.PublicKey(ctx, "key_1", nil)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}

	digest := sha256.Sum256([]byte(`{"principal":"2vxsx-fae","timestamp":1}`))
	sig, err := o.Sign(ctx, digest[:], "key_1", nil)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != CompactSignatureSize {
		t.Fatalf("len = %d, want %d", len(sig), CompactSignatureSize)
	}
	if !ethcrypto.VerifySignature(pub, digest[:], sig) {
		t.Error("signature does not verify against the reported public key")
	}
}

func TestLocalOracle_SignRejectsBadDigest(t *testing.T) {
	o, err := NewLocalOracle(testSeedHex)
	if err != nil {
		t.Fatalf("NewLocalOracle: %v", err)
	}
	if _, err := o.Sign(context.Background(), []byte("short"), "key_1", nil); err == nil {
		t.Error("expected error for non 32-byte digest")
	}
}
