// Package codec は証明書の正規エンコーディングとハッシュ、状態スナップショットのエンコーディングを提供する。
package codec

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"identity-certifier/internal/domain"
)

// DigestSize はダイジェストのバイト長。
const DigestSize = sha256.Size

// encMode は Core Deterministic Encoding（RFC 8949 §4.2）で構成したCBORエンコーダ。
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
}

// EncodeCertificate は証明書を正規形のJSONにエンコードする。
// 検証側は {"principal":..., "timestamp":...} を同じ順序で再構成してハッシュを再計算する。
func EncodeCertificate(cert domain.Certificate) ([]byte, error) {
	b, err := json.Marshal(cert)
	if err != nil {
		return nil, fmt.Errorf("encoding certificate: %w", err)
	}
	return b, nil
}

// EncodeIdentity は証明済み身元レコードをJSONにエンコードする。
func EncodeIdentity(identity domain.CertifiedIdentity) ([]byte, error) {
	b, err := json.Marshal(identity)
	if err != nil {
		return nil, fmt.Errorf("encoding certified identity: %w", err)
	}
	return b, nil
}

// DecodeIdentity は証明済み身元レコードのJSONをデコードする。
func DecodeIdentity(data []byte) (domain.CertifiedIdentity, error) {
	var identity domain.CertifiedIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		return domain.CertifiedIdentity{}, fmt.Errorf("decoding certified identity: %w", err)
	}
	return identity, nil
}

// Digest はSHA-256ダイジェストを返す。
func Digest(data []byte) [DigestSize]byte {
	return sha256.Sum256(data)
}

// CertificateDigest は証明書の正規エンコーディングのダイジェストを返す。
func CertificateDigest(cert domain.Certificate) ([DigestSize]byte, error) {
	b, err := EncodeCertificate(cert)
	if err != nil {
		return [DigestSize]byte{}, err
	}
	return Digest(b), nil
}

// EncodeState はスナップショットを決定的なCBORにエンコードする。
func EncodeState(snapshot domain.StateSnapshot) ([]byte, error) {
	b, err := encMode.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding state snapshot: %w", err)
	}
	return b, nil
}

// DecodeState はCBORからスナップショットを復元する。
func DecodeState(data []byte) (domain.StateSnapshot, error) {
	var snapshot domain.StateSnapshot
	if err := cbor.Unmarshal(data, &snapshot); err != nil {
		return domain.StateSnapshot{}, fmt.Errorf("%w: %v", domain.ErrStateCorrupted, err)
	}
	return snapshot, nil
}
