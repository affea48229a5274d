package domain

import "time"

// DeploymentMode は署名オラクルに要求する鍵の種類を選択する。
type DeploymentMode bool

const (
	// ModeProduction は本番用の鍵を使う。
	ModeProduction DeploymentMode = false
	// ModeTest はテスト用の鍵を使う。
	ModeTest DeploymentMode = true
)

const (
	// ProductionKeyName は本番モードで使う鍵名。
	ProductionKeyName = "key_1"
	// TestKeyName はテストモードで使う鍵名。
	TestKeyName = "dfx_test_key"
)

// KeyName はモードに対応する鍵名を返す。
func (m DeploymentMode) KeyName() string {
	if m == ModeTest {
		return TestKeyName
	}
	return ProductionKeyName
}

// String はログ出力用の名前を返す。
func (m DeploymentMode) String() string {
	if m == ModeTest {
		return "test"
	}
	return "production"
}

// KeyState は署名鍵のライフサイクル状態を表す。
type KeyState string

const (
	// KeyStateUninitialized は公開鍵が未取得の状態。
	KeyStateUninitialized KeyState = "uninitialized"
	// KeyStateInitializing はオラクルへの公開鍵取得要求が進行中の状態。
	KeyStateInitializing KeyState = "initializing"
	// KeyStateReady は公開鍵が確定し署名可能な状態。
	KeyStateReady KeyState = "ready"
)

// StateSnapshot は再起動をまたいで保存するプロセス状態を表す。
type StateSnapshot struct {
	SymmetricKeyHex string `cbor:"aes_symmetric_encryption_key_hex"`
	PublicKey       []byte `cbor:"ecdsa_public_key"`
	LocalMode       bool   `cbor:"local_mode"`
	Controller      string `cbor:"controller"`
	LastIssuedAt    uint64 `cbor:"last_issued_at"`
}

// StoredSnapshot は永続化されたスナップショット1件を表す。Payload は封緘済みの場合がある。
type StoredSnapshot struct {
	ID         string
	Generation uint64
	Payload    []byte
	Sealed     bool
	CreatedAt  time.Time
}
