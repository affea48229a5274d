package repository

import (
	"context"
	"fmt"

	"identity-certifier/config"
	"identity-certifier/internal/domain"
	"identity-certifier/internal/infra"
)

// Store はスナップショットの保存先が共通して持つ操作。
type Store interface {
	Save(ctx context.Context, payload []byte, sealed bool) (*domain.StoredSnapshot, error)
	Latest(ctx context.Context) (*domain.StoredSnapshot, error)
	History(ctx context.Context) ([]*domain.StoredSnapshot, error)
	Close() error
}

var (
	_ Store = (*StateRepository)(nil)
	_ Store = (*BoltStateRepository)(nil)
)

// Open は STATE_BACKEND に応じた保存先を開く。
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StateBackend {
	case config.StateBackendBolt:
		repo, err := NewBoltStateRepository(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StateBackendDatabase:
		db, err := infra.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		repo := NewStateRepository(db)
		if err := repo.AutoMigrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
