package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"identity-certifier/internal/domain"
)

var snapshotsBucket = []byte("state_snapshots")

// boltRecord はbbolt上の1世代分の値。キーは世代番号（ビッグエンディアン）。
type boltRecord struct {
	ID        string
	Payload   []byte
	Sealed    bool
	CreatedAt time.Time
}

// BoltStateRepository はスナップショットを組み込みのbboltファイルに保存する。
type BoltStateRepository struct {
	db *bbolt.DB
}

// NewBoltStateRepository は path のbboltファイルを開く。
func NewBoltStateRepository(path string) (*BoltStateRepository, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltStateRepository{db: db}, nil
}

// Save はスナップショットを次の世代として保存する。
func (r *BoltStateRepository) Save(ctx context.Context, payload []byte, sealed bool) (*domain.StoredSnapshot, error) {
	var stored *domain.StoredSnapshot
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(snapshotsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec := boltRecord{
			ID:        uuid.New().String(),
			Payload:   payload,
			Sealed:    sealed,
			CreatedAt: time.Now().UTC(),
		}
		data, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		if err := b.Put(generationKey(seq), data); err != nil {
			return err
		}
		stored = rec.toDomain(seq)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}
	return stored, nil
}

// Latest は最新世代のスナップショットを返す。
func (r *BoltStateRepository) Latest(ctx context.Context) (*domain.StoredSnapshot, error) {
	var stored *domain.StoredSnapshot
	err := r.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(snapshotsBucket).Cursor().Last()
		if k == nil {
			return domain.ErrStateNotFound
		}
		rec, err := decodeRecord(v)
		if err != nil {
			return err
		}
		stored = rec.toDomain(binary.BigEndian.Uint64(k))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// History は全世代のスナップショットを古い順に返す。
func (r *BoltStateRepository) History(ctx context.Context) ([]*domain.StoredSnapshot, error) {
	var snapshots []*domain.StoredSnapshot
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotsBucket).ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			snapshots = append(snapshots, rec.toDomain(binary.BigEndian.Uint64(k)))
			return nil
		})
	})
	return snapshots, err
}

// Close はbboltファイルを閉じる。
func (r *BoltStateRepository) Close() error {
	return r.db.Close()
}

func (rec boltRecord) toDomain(generation uint64) *domain.StoredSnapshot {
	return &domain.StoredSnapshot{
		ID:         rec.ID,
		Generation: generation,
		Payload:    rec.Payload,
		Sealed:     rec.Sealed,
		CreatedAt:  rec.CreatedAt,
	}
}

func generationKey(generation uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, generation)
	return key
}

func encodeRecord(rec boltRecord) ([]byte, error) {
	return cbor.Marshal(rec)
}

// decodeRecord はトランザクション外でも使えるよう値をコピーして復元する。
func decodeRecord(data []byte) (boltRecord, error) {
	var rec boltRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return boltRecord{}, fmt.Errorf("%w: %v", domain.ErrStateCorrupted, err)
	}
	return rec, nil
}
