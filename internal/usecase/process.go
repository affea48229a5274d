package usecase

import (
	"bytes"
	"fmt"
	"sync"

	"identity-certifier/internal/aead"
	"identity-certifier/internal/domain"
)

const compressedPublicKeySize = 33

// ProcessState はサービスのプロセス全体で共有する状態。
// 対称鍵は生成時に固定され、公開鍵は初期化完了後に変更されない。
type ProcessState struct {
	cipher *aead.Cipher
	mode   domain.DeploymentMode
	clock  *MonotonicClock

	mu            sync.Mutex
	publicKey     []byte
	keyState      domain.KeyState
	controller    domain.Principal
	hasController bool
}

// NewProcessState は設定値から初期状態を生成する。
// controller が nil の場合、認可を強制すると誰も鍵を初期化できない。
func NewProcessState(symmetricKeyHex string, localMode bool, controller *domain.Principal, clock Clock) (*ProcessState, error) {
	c, err := aead.NewCipher(symmetricKeyHex)
	if err != nil {
		return nil, err
	}

	s := &ProcessState{
		cipher:   c,
		mode:     domain.DeploymentMode(localMode),
		clock:    NewMonotonicClock(clock, 0),
		keyState: domain.KeyStateUninitialized,
	}
	if controller != nil {
		s.controller = *controller
		s.hasController = true
	}
	return s, nil
}

// ProcessStateFromSnapshot は保存済みスナップショットから状態を復元する。
func ProcessStateFromSnapshot(snap domain.StateSnapshot, clock Clock) (*ProcessState, error) {
	var controller *domain.Principal
	if snap.Controller != "" {
		p, err := domain.ParsePrincipal(snap.Controller)
		if err != nil {
			return nil, fmt.Errorf("%w: controller: %v", domain.ErrStateCorrupted, err)
		}
		controller = &p
	}

	s, err := NewProcessState(snap.SymmetricKeyHex, snap.LocalMode, controller, clock)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStateCorrupted, err)
	}

	switch len(snap.PublicKey) {
	case 0:
	case compressedPublicKeySize:
		s.publicKey = bytes.Clone(snap.PublicKey)
		s.keyState = domain.KeyStateReady
	default:
		return nil, fmt.Errorf("%w: public key has %d bytes", domain.ErrStateCorrupted, len(snap.PublicKey))
	}
	s.clock = NewMonotonicClock(clock, snap.LastIssuedAt)
	return s, nil
}

// Snapshot は永続化用の状態を返す。初期化中の鍵は未初期化として保存する。
func (s *ProcessState) Snapshot() (domain.StateSnapshot, error) {
	keyHex, err := s.cipher.KeyHex()
	if err != nil {
		return domain.StateSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.StateSnapshot{
		SymmetricKeyHex: keyHex,
		LocalMode:       bool(s.mode),
		LastIssuedAt:    s.clock.Last(),
	}
	if s.keyState == domain.KeyStateReady {
		snap.PublicKey = bytes.Clone(s.publicKey)
	}
	if s.hasController {
		snap.Controller = s.controller.String()
	}
	return snap, nil
}

// Mode はデプロイモードを返す。
func (s *ProcessState) Mode() domain.DeploymentMode {
	return s.mode
}

// KeyState は鍵のライフサイクル状態を返す。
func (s *ProcessState) KeyState() domain.KeyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyState
}

// PublicKey は初期化済みの公開鍵を返す。未初期化なら nil。
func (s *ProcessState) PublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyState != domain.KeyStateReady {
		return nil
	}
	return bytes.Clone(s.publicKey)
}

// IsController は caller が鍵管理を許可されたプリンシパルかどうかを返す。
func (s *ProcessState) IsController(caller domain.Principal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasController && s.controller.Equal(caller)
}

// beginInitialization は鍵の初期化を予約する。
func (s *ProcessState) beginInitialization() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyState != domain.KeyStateUninitialized {
		return domain.ErrKeyAlreadyInitialized
	}
	s.keyState = domain.KeyStateInitializing
	return nil
}

func (s *ProcessState) completeInitialization(publicKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicKey = bytes.Clone(publicKey)
	s.keyState = domain.KeyStateReady
}

func (s *ProcessState) abortInitialization() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyState = domain.KeyStateUninitialized
}

// issuance は署名に必要な公開鍵と一意なタイムスタンプを取り出す。
func (s *ProcessState) issuance() ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyState != domain.KeyStateReady {
		return nil, 0, domain.ErrKeyNotReady
	}
	return bytes.Clone(s.publicKey), s.clock.Now(), nil
}
