// Package certverify は発行された証明済み身元レコードを復号・検証する。
// サービスと対称鍵を共有する依存側サービスでの利用を想定している。
package certverify

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"identity-certifier/internal/aead"
	"identity-certifier/internal/codec"
	"identity-certifier/internal/domain"
)

var (
	// ErrInvalidSignature は発行者の署名が一致しないことを示す。
	ErrInvalidSignature = errors.New("issuer signature does not verify")
	// ErrInconsistentRecord はレコード内の値が互いに矛盾していることを示す。
	ErrInconsistentRecord = errors.New("certified identity is inconsistent")
)

// Decrypted は復号結果。
type Decrypted struct {
	Identity       domain.CertifiedIdentity
	NonceTimestamp uint64
	NonceCaller    []byte
}

// Decrypt は16進文字列の暗号化レコードを対称鍵で復号する。
func Decrypt(symmetricKeyHex, certifiedHex string) (*Decrypted, error) {
	key, err := hex.DecodeString(symmetricKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding symmetric key: %w", err)
	}
	sealed, err := hex.DecodeString(certifiedHex)
	if err != nil {
		return nil, fmt.Errorf("decoding certified identity: %w", err)
	}

	plaintext, err := aead.Open(key, sealed)
	if err != nil {
		return nil, err
	}
	identity, err := codec.DecodeIdentity(plaintext)
	if err != nil {
		return nil, err
	}

	nonce := sealed[:aead.NonceSize]
	return &Decrypted{
		Identity:       identity,
		NonceTimestamp: binary.BigEndian.Uint64(nonce[:8]),
		NonceCaller:    nonce[8:],
	}, nil
}

// Verify は証明書のダイジェストを再計算し、発行者の署名を検証する。
// publicKeyHex が空の場合はレコードに含まれる公開鍵を使う。
func Verify(identity domain.CertifiedIdentity, publicKeyHex string) error {
	if identity.PrincipalID != identity.Certificate.Principal {
		return fmt.Errorf("%w: principal_id %q differs from certificate principal %q",
			ErrInconsistentRecord, identity.PrincipalID, identity.Certificate.Principal)
	}
	if publicKeyHex == "" {
		publicKeyHex = identity.IssuerPublicKey
	}
	if publicKeyHex == "" {
		return errors.New("no issuer public key available")
	}

	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("decoding public key: %w", err)
	}
	sig, err := hex.DecodeString(identity.IssuerSignature)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}
	digest, err := codec.CertificateDigest(identity.Certificate)
	if err != nil {
		return err
	}

	if !ethcrypto.VerifySignature(pub, digest[:], sig) {
		return ErrInvalidSignature
	}
	return nil
}

// DecryptAndVerify は復号と検証をまとめて行い、ノンスと証明書の整合性も確認する。
func DecryptAndVerify(symmetricKeyHex, certifiedHex, publicKeyHex string) (*Decrypted, error) {
	d, err := Decrypt(symmetricKeyHex, certifiedHex)
	if err != nil {
		return nil, err
	}
	if d.NonceTimestamp != d.Identity.Certificate.Timestamp {
		return nil, fmt.Errorf("%w: nonce timestamp %d differs from certificate timestamp %d",
			ErrInconsistentRecord, d.NonceTimestamp, d.Identity.Certificate.Timestamp)
	}
	if err := Verify(d.Identity, publicKeyHex); err != nil {
		return nil, err
	}
	return d, nil
}
