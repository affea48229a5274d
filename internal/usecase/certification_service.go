package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"identity-certifier/internal/aead"
	"identity-certifier/internal/codec"
	"identity-certifier/internal/domain"
)

const compactSignatureSize = 64

// CertificationService は呼び出し元の身元を証明する暗号化済みレコードを発行する。
type CertificationService struct {
	state           *ProcessState
	oracle          SigningOracle
	inlinePublicKey bool
}

// NewCertificationService は新しいCertificationServiceを生成する。
// inlinePublicKey が true の場合、発行レコードに発行者の公開鍵を含める。
func NewCertificationService(state *ProcessState, oracle SigningOracle, inlinePublicKey bool) *CertificationService {
	return &CertificationService{
		state:           state,
		oracle:          oracle,
		inlinePublicKey: inlinePublicKey,
	}
}

// CertifyIdentity は呼び出し元のプリンシパルと現在時刻に署名し、
// 証明済みレコードをAES-256-GCMで暗号化して16進文字列で返す。
func (s *CertificationService) CertifyIdentity(ctx context.Context, caller domain.Principal) (string, error) {
	if caller.IsAnonymous() {
		return "", domain.ErrAnonymousCaller
	}

	publicKey, timestamp, err := s.state.issuance()
	if err != nil {
		return "", err
	}

	cert := domain.Certificate{
		Principal: caller.String(),
		Timestamp: timestamp,
	}
	digest, err := codec.CertificateDigest(cert)
	if err != nil {
		return "", err
	}

	keyName := s.state.Mode().KeyName()
	signature, err := s.oracle.Sign(ctx, digest[:], keyName, nil)
	if err == nil && len(signature) != compactSignatureSize {
		err = fmt.Errorf("unexpected signature length %d", len(signature))
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to sign certificate",
			"operation", "certify_identity",
			"key_name", keyName,
			"error", err,
		)
		return "", fmt.Errorf("%w: %v", domain.ErrSigningUnavailable, err)
	}

	identity := domain.CertifiedIdentity{
		PrincipalID:     cert.Principal,
		Certificate:     cert,
		IssuerSignature: hex.EncodeToString(signature),
	}
	if s.inlinePublicKey {
		identity.IssuerPublicKey = hex.EncodeToString(publicKey)
	}
	plaintext, err := codec.EncodeIdentity(identity)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEncryptionFailed, err)
	}

	sealed, err := s.state.cipher.Encrypt(plaintext, aead.DeriveNonce(timestamp, caller.Bytes()))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sealed), nil
}
