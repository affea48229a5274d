package aead

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"identity-certifier/internal/domain"
)

var testKeyHex = strings.Repeat("00", KeySize)

func testKey() []byte {
	return make([]byte, KeySize)
}

func TestNewCipher_InvalidKey(t *testing.T) {
	cases := map[string]string{
		"not hex":    "zz" + strings.Repeat("00", 31),
		"odd length": strings.Repeat("0", 63),
		"too short":  strings.Repeat("00", 16),
		"too long":   strings.Repeat("00", 33),
		"empty":      "",
	}
	for name, keyHex := range cases {
		if _, err := NewCipher(keyHex); !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Errorf("%s: want ErrInvalidConfiguration, got %v", name, err)
		}
	}
}

func TestDeriveNonce_Layout(t *testing.T) {
	nonce := DeriveNonce(0x0102030405060708, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee})

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 0xaa, 0xbb, 0xcc, 0xdd}
	if !bytes.Equal(nonce[:], want) {
		t.Errorf("want %x, got %x", want, nonce)
	}
}

func TestDeriveNonce_ShortCallerIsZeroPadded(t *testing.T) {
	nonce := DeriveNonce(1, []byte{0x04})

	want := []byte{0, 0, 0, 0, 0, 0, 0, 1, 0x04, 0, 0, 0}
	if !bytes.Equal(nonce[:], want) {
		t.Errorf("want %x, got %x", want, nonce)
	}
}

func TestDeriveNonce_DiffersByTimestampAndCaller(t *testing.T) {
	base := DeriveNonce(100, []byte{1, 2, 3, 4})
	if base == DeriveNonce(101, []byte{1, 2, 3, 4}) {
		t.Error("nonce should differ for different timestamps")
	}
	if base == DeriveNonce(100, []byte{1, 2, 3, 5}) {
		t.Error("nonce should differ for different callers")
	}
}

func TestCipher_EncryptDeterministic(t *testing.T) {
	c, err := NewCipher(testKeyHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nonce := DeriveNonce(1700000000000000000, []byte{0, 0, 0, 0})
	plaintext := []byte(`{"principal_id":"x"}`)

	a, err := c.Encrypt(plaintext, nonce)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.Encrypt(plaintext, nonce)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encryption with identical inputs should be deterministic")
	}
	if len(a) != NonceSize+len(plaintext)+TagSize {
		t.Errorf("unexpected output length %d", len(a))
	}
	if !bytes.Equal(a[:NonceSize], nonce[:]) {
		t.Error("nonce should be prepended verbatim")
	}
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKeyHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plaintext := []byte("certified identity payload")
	sealed, err := c.Encrypt(plaintext, DeriveNonce(5, []byte{9, 9, 9, 9}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := Open(testKey(), sealed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("want %q, got %q", plaintext, got)
	}
}

func TestOpen_TamperedBytesFail(t *testing.T) {
	c, err := NewCipher(testKeyHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sealed, err := c.Encrypt([]byte("payload"), DeriveNonce(5, []byte{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range sealed {
		tampered := bytes.Clone(sealed)
		tampered[i] ^= 0x01
		if _, err := Open(testKey(), tampered); err == nil {
			t.Errorf("byte %d: expected authentication failure", i)
		}
	}
}

func TestOpen_TooShort(t *testing.T) {
	if _, err := Open(testKey(), make([]byte, NonceSize+TagSize-1)); err == nil {
		t.Error("expected error for short input")
	}
}

func TestOpen_WrongKeySize(t *testing.T) {
	_, err := Open(make([]byte, 16), make([]byte, 64))
	if !errors.Is(err, domain.ErrEncryptionFailed) {
		t.Errorf("want ErrEncryptionFailed, got %v", err)
	}
}

func TestCipher_KeyHex(t *testing.T) {
	keyHex := strings.Repeat("ab", KeySize)
	c, err := NewCipher(keyHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.KeyHex()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != keyHex {
		t.Errorf("want %s, got %s", keyHex, got)
	}
}
