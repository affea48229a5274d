package certverify

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"identity-certifier/internal/domain"
	"identity-certifier/internal/infra"
	"identity-certifier/internal/usecase"
)

const testKeyHex = "1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100"

func issue(t *testing.T, inline bool) (certified, publicKeyHex string, caller domain.Principal) {
	t.Helper()
	ctx := context.Background()
	oracle, err := infra.NewLocalOracle(strings.Repeat("5a", 32))
	if err != nil {
		t.Fatalf("NewLocalOracle: %v", err)
	}
	state, err := usecase.NewProcessState(testKeyHex, true, nil, usecase.SystemClock{})
	if err != nil {
		t.Fatalf("NewProcessState: %v", err)
	}
	caller, err = domain.PrincipalFromBytes([]byte{9, 8, 7, 6, 5, 4})
	if err != nil {
		t.Fatalf("PrincipalFromBytes: %v", err)
	}

	publicKeyHex, err = usecase.NewKeyService(state, oracle, false).InitializeKey(ctx, caller)
	if err != nil {
		t.Fatalf("InitializeKey: %v", err)
	}
	certified, err = usecase.NewCertificationService(state, oracle, inline).CertifyIdentity(ctx, caller)
	if err != nil {
		t.Fatalf("CertifyIdentity: %v", err)
	}
	return certified, publicKeyHex, caller
}

func TestDecryptAndVerify(t *testing.T) {
	certified, pub, caller := issue(t, false)

	d, err := DecryptAndVerify(testKeyHex, certified, pub)
	if err != nil {
		t.Fatalf("DecryptAndVerify: %v", err)
	}
	if d.Identity.PrincipalID != caller.String() {
		t.Errorf("PrincipalID = %s, want %s", d.Identity.PrincipalID, caller)
	}
	if hex.EncodeToString(d.NonceCaller) != "09080706" {
		t.Errorf("NonceCaller = %x", d.NonceCaller)
	}
}

func TestVerify_InlinePublicKey(t *testing.T) {
	certified, _, _ := issue(t, true)

	if _, err := DecryptAndVerify(testKeyHex, certified, ""); err != nil {
		t.Fatalf("DecryptAndVerify with inline key: %v", err)
	}
}

func TestVerify_MissingPublicKey(t *testing.T) {
	certified, _, _ := issue(t, false)
	d, err := Decrypt(testKeyHex, certified)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if err := Verify(d.Identity, ""); err == nil {
		t.Error("expected error without any public key")
	}
}

func TestVerify_TamperedCertificate(t *testing.T) {
	certified, pub, _ := issue(t, false)
	d, err := Decrypt(testKeyHex, certified)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	tampered := d.Identity
	tampered.Certificate.Timestamp++
	if err := Verify(tampered, pub); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	mismatched := d.Identity
	mismatched.PrincipalID = domain.AnonymousPrincipal.String()
	if err := Verify(mismatched, pub); !errors.Is(err, ErrInconsistentRecord) {
		t.Errorf("expected ErrInconsistentRecord, got %v", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	certified, _, _ := issue(t, false)
	if _, err := Decrypt(strings.Repeat("00", 32), certified); err == nil {
		t.Error("expected error with the wrong key")
	}
}

func TestDecrypt_InvalidHex(t *testing.T) {
	if _, err := Decrypt(testKeyHex, "xyz"); err == nil {
		t.Error("expected error for invalid hex")
	}
	if _, err := Decrypt("xyz", "00"); err == nil {
		t.Error("expected error for invalid key hex")
	}
}
