package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"identity-certifier/internal/codec"
	"identity-certifier/internal/domain"
)

// StateRepository はスナップショットの永続化先のインターフェース。
type StateRepository interface {
	Save(ctx context.Context, payload []byte, sealed bool) (*domain.StoredSnapshot, error)
	Latest(ctx context.Context) (*domain.StoredSnapshot, error)
	History(ctx context.Context) ([]*domain.StoredSnapshot, error)
}

// Sealer はスナップショットを保存前に暗号化するインターフェース。
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Unseal(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// SnapshotSummary は鍵素材を含まないスナップショットの概要。
type SnapshotSummary struct {
	Generation   uint64
	Sealed       bool
	CreatedAt    time.Time
	PublicKeyHex string
	Mode         domain.DeploymentMode
	Controller   string
	LastIssuedAt uint64
}

// StateService はプロセス状態の保存と復元を行う。
type StateService struct {
	repo   StateRepository
	sealer Sealer
	clock  Clock
}

// NewStateService は新しいStateServiceを生成する。sealer が nil の場合は封緘しない。
func NewStateService(repo StateRepository, sealer Sealer, clock Clock) *StateService {
	return &StateService{
		repo:   repo,
		sealer: sealer,
		clock:  clock,
	}
}

// Snapshot はプロセス状態を保存する。
func (s *StateService) Snapshot(ctx context.Context, state *ProcessState) (*domain.StoredSnapshot, error) {
	snap, err := state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("capturing state: %w", err)
	}
	payload, err := codec.EncodeState(snap)
	if err != nil {
		return nil, err
	}

	sealed := s.sealer != nil
	if sealed {
		payload, err = s.sealer.Seal(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("sealing state: %w", err)
		}
	}

	stored, err := s.repo.Save(ctx, payload, sealed)
	if err != nil {
		return nil, fmt.Errorf("saving state: %w", err)
	}
	slog.InfoContext(ctx, "state snapshot saved",
		"generation", stored.Generation,
		"sealed", sealed,
		"key_state", string(state.KeyState()),
	)
	return stored, nil
}

// Restore は最新のスナップショットから状態を復元する。保存済みの状態がなければ false を返す。
func (s *StateService) Restore(ctx context.Context) (*ProcessState, bool, error) {
	stored, snap, err := s.load(ctx)
	if errors.Is(err, domain.ErrStateNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	state, err := ProcessStateFromSnapshot(snap, s.clock)
	if err != nil {
		return nil, false, err
	}
	slog.InfoContext(ctx, "state restored",
		"generation", stored.Generation,
		"key_state", string(state.KeyState()),
		"mode", state.Mode().String(),
	)
	return state, true, nil
}

// Describe は最新スナップショットの概要を返す。
func (s *StateService) Describe(ctx context.Context) (*SnapshotSummary, error) {
	stored, snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &SnapshotSummary{
		Generation:   stored.Generation,
		Sealed:       stored.Sealed,
		CreatedAt:    stored.CreatedAt,
		PublicKeyHex: hex.EncodeToString(snap.PublicKey),
		Mode:         domain.DeploymentMode(snap.LocalMode),
		Controller:   snap.Controller,
		LastIssuedAt: snap.LastIssuedAt,
	}, nil
}

// History は保存済みの全世代を返す。
func (s *StateService) History(ctx context.Context) ([]*domain.StoredSnapshot, error) {
	return s.repo.History(ctx)
}

func (s *StateService) load(ctx context.Context) (*domain.StoredSnapshot, domain.StateSnapshot, error) {
	stored, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, domain.StateSnapshot{}, err
	}

	payload := stored.Payload
	if stored.Sealed {
		if s.sealer == nil {
			return nil, domain.StateSnapshot{}, fmt.Errorf("%w: snapshot %d is sealed but no sealer is configured",
				domain.ErrInvalidConfiguration, stored.Generation)
		}
		payload, err = s.sealer.Unseal(ctx, payload)
		if err != nil {
			return nil, domain.StateSnapshot{}, fmt.Errorf("unsealing state: %w", err)
		}
	}

	snap, err := codec.DecodeState(payload)
	if err != nil {
		return nil, domain.StateSnapshot{}, err
	}
	return stored, snap, nil
}
