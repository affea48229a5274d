// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"identity-certifier/internal/domain"
)

// StateSnapshotModel はgorm用のモデル定義。
type StateSnapshotModel struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	Generation uint64    `gorm:"not null;uniqueIndex:uk_generation"`
	Payload    []byte    `gorm:"type:blob;not null"`
	Sealed     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (StateSnapshotModel) TableName() string {
	return "state_snapshots"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *StateSnapshotModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *StateSnapshotModel) toDomain() *domain.StoredSnapshot {
	return &domain.StoredSnapshot{
		ID:         m.ID,
		Generation: m.Generation,
		Payload:    m.Payload,
		Sealed:     m.Sealed,
		CreatedAt:  m.CreatedAt,
	}
}

// StateRepository はスナップショットをSQLデータベースに保存する。
// 保存のたびに世代番号を1つ進め、過去の世代も履歴として残す。
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository は新しいStateRepositoryを生成する。
func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

// AutoMigrate はstate_snapshotsテーブルを作成・更新する。
func (r *StateRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&StateSnapshotModel{}); err != nil {
		return fmt.Errorf("migrating state_snapshots: %w", err)
	}
	return nil
}

// Save はスナップショットを次の世代として保存する。
func (r *StateRepository) Save(ctx context.Context, payload []byte, sealed bool) (*domain.StoredSnapshot, error) {
	model := &StateSnapshotModel{Payload: payload, Sealed: sealed}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxGen *uint64
		if err := tx.Model(&StateSnapshotModel{}).Select("MAX(generation)").Scan(&maxGen).Error; err != nil {
			return err
		}
		model.Generation = 1
		if maxGen != nil {
			model.Generation = *maxGen + 1
		}
		return tx.Create(model).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to save state snapshot",
			"operation", "save",
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// Latest は最新世代のスナップショットを返す。存在しない場合は domain.ErrStateNotFound。
func (r *StateRepository) Latest(ctx context.Context) (*domain.StoredSnapshot, error) {
	var model StateSnapshotModel
	err := r.db.WithContext(ctx).Order("generation DESC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStateNotFound
		}
		slog.ErrorContext(ctx, "failed to find latest state snapshot",
			"operation", "latest",
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// History は全世代のスナップショットを古い順に返す。
func (r *StateRepository) History(ctx context.Context) ([]*domain.StoredSnapshot, error) {
	var models []StateSnapshotModel
	if err := r.db.WithContext(ctx).Order("generation ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to list state snapshots",
			"operation", "history",
			"error", err,
		)
		return nil, err
	}

	snapshots := make([]*domain.StoredSnapshot, len(models))
	for i := range models {
		snapshots[i] = models[i].toDomain()
	}
	return snapshots, nil
}

// Close はデータベース接続を閉じる。
func (r *StateRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
