package infra

import (
	encasn1 "encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const (
	scalarSize = 32
	// CompactSignatureSize は r || s 形式の署名長。
	CompactSignatureSize = 2 * scalarSize
)

var (
	secp256k1N     = ethcrypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// CompressedPublicKeyFromPEM はPEM形式のSubjectPublicKeyInfoからSEC1圧縮形式（33バイト）の公開鍵を取り出す。
// crypto/x509 はsecp256k1を扱えないため、SPKIを直接パースする。
func CompressedPublicKeyFromPEM(pemData string) ([]byte, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("invalid public key: not a PEM encoded PUBLIC KEY")
	}

	input := cryptobyte.String(block.Bytes)
	var spki, algorithm cryptobyte.String
	var point encasn1.BitString
	if !input.ReadASN1(&spki, asn1.SEQUENCE) || !input.Empty() ||
		!spki.ReadASN1(&algorithm, asn1.SEQUENCE) ||
		!spki.ReadASN1BitString(&point) || !spki.Empty() {
		return nil, errors.New("invalid public key: malformed SubjectPublicKeyInfo")
	}

	pub, err := ethcrypto.UnmarshalPubkey(point.RightAlign())
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return ethcrypto.CompressPubkey(pub), nil
}

// CompactSignature はDERエンコードされたECDSA署名を low-S 正規化した r || s（64バイト）に変換する。
func CompactSignature(der []byte) ([]byte, error) {
	r, s := new(big.Int), new(big.Int)
	input := cryptobyte.String(der)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() ||
		!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, errors.New("invalid signature: malformed DER")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return nil, errors.New("invalid signature: scalar out of range")
	}
	if s.Cmp(secp256k1HalfN) > 0 {
		s.Sub(secp256k1N, s)
	}

	sig := make([]byte, CompactSignatureSize)
	r.FillBytes(sig[:scalarSize])
	s.FillBytes(sig[scalarSize:])
	return sig, nil
}
