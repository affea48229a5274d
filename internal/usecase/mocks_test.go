package usecase

import (
	"bytes"
	"context"
	"sync"
	"time"

	"identity-certifier/internal/domain"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var testPublicKey = append([]byte{0x02}, bytes.Repeat([]byte{0xab}, 32)...)

// mockOracle はテスト用のモック署名オラクル。
type mockOracle struct {
	mu           sync.Mutex
	pubResult    []byte
	pubErr       error
	signResult   []byte
	signErr      error
	pubCalls     int
	signCalls    int
	lastKeyName  string
	lastDigest   []byte
	release      chan struct{}
	pubRequested chan struct{}
}

func newMockOracle() *mockOracle {
	return &mockOracle{
		pubResult:  testPublicKey,
		signResult: bytes.Repeat([]byte{0x11}, 64),
	}
}

func (m *mockOracle) PublicKey(ctx context.Context, keyName string, derivationPath [][]byte) ([]byte, error) {
	m.mu.Lock()
	m.pubCalls++
	m.lastKeyName = keyName
	release, requested := m.release, m.pubRequested
	m.mu.Unlock()

	if requested != nil {
		requested <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return m.pubResult, m.pubErr
}

func (m *mockOracle) Sign(ctx context.Context, digest []byte, keyName string, derivationPath [][]byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signCalls++
	m.lastKeyName = keyName
	m.lastDigest = bytes.Clone(digest)
	return m.signResult, m.signErr
}

// mockStateRepository はテスト用のインメモリリポジトリ。
type mockStateRepository struct {
	snapshots []*domain.StoredSnapshot
	saveErr   error
	latestErr error
}

func (m *mockStateRepository) Save(ctx context.Context, payload []byte, sealed bool) (*domain.StoredSnapshot, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	s := &domain.StoredSnapshot{
		ID:         "snapshot",
		Generation: uint64(len(m.snapshots) + 1),
		Payload:    bytes.Clone(payload),
		Sealed:     sealed,
		CreatedAt:  time.Now(),
	}
	m.snapshots = append(m.snapshots, s)
	return s, nil
}

func (m *mockStateRepository) Latest(ctx context.Context) (*domain.StoredSnapshot, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	if len(m.snapshots) == 0 {
		return nil, domain.ErrStateNotFound
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

func (m *mockStateRepository) History(ctx context.Context) ([]*domain.StoredSnapshot, error) {
	return m.snapshots, nil
}

// mockSealer はテスト用のモック封緘。先頭にマーカーを付けるだけ。
type mockSealer struct {
	sealErr   error
	unsealErr error
}

var sealMarker = []byte("sealed:")

func (m *mockSealer) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	if m.sealErr != nil {
		return nil, m.sealErr
	}
	return append(bytes.Clone(sealMarker), plaintext...), nil
}

func (m *mockSealer) Unseal(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if m.unsealErr != nil {
		return nil, m.unsealErr
	}
	return bytes.TrimPrefix(ciphertext, sealMarker), nil
}

// fixedClock は常に同じ時刻を返す。
func fixedClock(t uint64) Clock {
	return ClockFunc(func() uint64 { return t })
}

func mustPrincipal(raw ...byte) domain.Principal {
	p, err := domain.PrincipalFromBytes(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func newTestState(controller *domain.Principal, localMode bool, clock Clock) *ProcessState {
	s, err := NewProcessState(testKeyHex, localMode, controller, clock)
	if err != nil {
		panic(err)
	}
	return s
}
