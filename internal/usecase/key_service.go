// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"identity-certifier/internal/domain"
)

// SigningOracle は秘密鍵を外部に保持するsecp256k1署名オラクルのインターフェース。
// 公開鍵はSEC1圧縮形式（33バイト）、署名は low-S の r || s（64バイト）で返す。
type SigningOracle interface {
	PublicKey(ctx context.Context, keyName string, derivationPath [][]byte) ([]byte, error)
	Sign(ctx context.Context, digest []byte, keyName string, derivationPath [][]byte) ([]byte, error)
}

// KeyService は署名鍵のライフサイクルに関するビジネスロジックを提供する。
type KeyService struct {
	state                *ProcessState
	oracle               SigningOracle
	enforceAuthorization bool
}

// NewKeyService は新しいKeyServiceを生成する。
func NewKeyService(state *ProcessState, oracle SigningOracle, enforceAuthorization bool) *KeyService {
	return &KeyService{
		state:                state,
		oracle:               oracle,
		enforceAuthorization: enforceAuthorization,
	}
}

func (s *KeyService) authorize(caller domain.Principal) error {
	if s.enforceAuthorization && !s.state.IsController(caller) {
		return domain.ErrUnauthorized
	}
	return nil
}

// InitializeKey はオラクルから公開鍵を取得して保存し、16進文字列で返す。
// 初期化はプロセスの生涯で一度だけ成功する。
func (s *KeyService) InitializeKey(ctx context.Context, caller domain.Principal) (string, error) {
	if err := s.authorize(caller); err != nil {
		return "", err
	}
	if err := s.state.beginInitialization(); err != nil {
		return "", err
	}

	keyName := s.state.Mode().KeyName()
	pub, err := s.oracle.PublicKey(ctx, keyName, nil)
	if err == nil && len(pub) != compressedPublicKeySize {
		err = fmt.Errorf("unexpected public key length %d", len(pub))
	}
	if err != nil {
		s.state.abortInitialization()
		slog.ErrorContext(ctx, "failed to fetch public key",
			"operation", "initialize_key",
			"key_name", keyName,
			"error", err,
		)
		return "", fmt.Errorf("%w: %v", domain.ErrPublicKeyUnavailable, err)
	}

	s.state.completeInitialization(pub)
	slog.InfoContext(ctx, "signing key initialized",
		"key_name", keyName,
		"mode", s.state.Mode().String(),
	)
	return hex.EncodeToString(pub), nil
}

// PublicKeyHex は保存済みの公開鍵を16進文字列で返す。未初期化なら空文字列。
func (s *KeyService) PublicKeyHex(ctx context.Context, caller domain.Principal) (string, error) {
	if err := s.authorize(caller); err != nil {
		return "", err
	}
	return hex.EncodeToString(s.state.PublicKey()), nil
}

// KeyState は鍵のライフサイクル状態を返す。
func (s *KeyService) KeyState() domain.KeyState {
	return s.state.KeyState()
}
