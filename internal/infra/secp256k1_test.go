package infra

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509/pkix"
	encasn1 "encoding/asn1"
	"encoding/pem"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	oidECPublicKey = encasn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = encasn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

func marshalSPKIPEM(t *testing.T, uncompressed []byte) string {
	t.Helper()
	params, err := encasn1.Marshal(oidSecp256k1)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	spki := struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey encasn1.BitString
	}{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidECPublicKey,
			Parameters: encasn1.RawValue{FullBytes: params},
		},
		PublicKey: encasn1.BitString{Bytes: uncompressed, BitLength: 8 * len(uncompressed)},
	}
	der, err := encasn1.Marshal(spki)
	if err != nil {
		t.Fatalf("marshal spki: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func marshalDERSignature(t *testing.T, r, s *big.Int) []byte {
	t.Helper()
	der, err := encasn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		t.Fatalf("marshal signature: %v", err)
	}
	return der
}

func TestCompressedPublicKeyFromPEM(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pemData := marshalSPKIPEM(t, ethcrypto.FromECDSAPub(&priv.PublicKey))

	got, err := CompressedPublicKeyFromPEM(pemData)
	if err != nil {
		t.Fatalf("CompressedPublicKeyFromPEM: %v", err)
	}
	want := ethcrypto.CompressPubkey(&priv.PublicKey)
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
	if len(got) != 33 {
		t.Errorf("len = %d, want 33", len(got))
	}
}

func TestCompressedPublicKeyFromPEM_Invalid(t *testing.T) {
	tests := []struct {
		name string
		pem  string
	}{
		{name: "not pem", pem: "hello"},
		{name: "wrong block type", pem: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{0x30, 0x00}}))},
		{name: "garbage der", pem: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{0x01, 0x02}}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CompressedPublicKeyFromPEM(tt.pem); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCompactSignature_NormalizesHighS(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	digest := sha256.Sum256([]byte("certificate"))
	sig, err := ethcrypto.Sign(digest[:], priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	highS := new(big.Int).Sub(secp256k1N, s)
	pub := ethcrypto.CompressPubkey(&priv.PublicKey)

	for name, candidate := range map[string]*big.Int{"low": s, "high": highS} {
		t.Run(name, func(t *testing.T) {
			compact, err := CompactSignature(marshalDERSignature(t, r, candidate))
			if err != nil {
				t.Fatalf("CompactSignature: %v", err)
			}
			if !bytes.Equal(compact, sig[:64]) {
				t.Errorf("compact = %x, want %x", compact, sig[:64])
			}
			if !ethcrypto.VerifySignature(pub, digest[:], compact) {
				t.Error("signature does not verify")
			}
		})
	}
}

func TestCompactSignature_Invalid(t *testing.T) {
	tests := []struct {
		name string
		der  []byte
	}{
		{name: "empty", der: nil},
		{name: "zero r", der: marshalDERSignature(t, big.NewInt(0), big.NewInt(1))},
		{name: "s out of range", der: marshalDERSignature(t, big.NewInt(1), secp256k1N)},
		{name: "trailing bytes", der: append(marshalDERSignature(t, big.NewInt(1), big.NewInt(1)), 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CompactSignature(tt.der); err == nil {
				t.Error("expected error")
			}
		})
	}
}
