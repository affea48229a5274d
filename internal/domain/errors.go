package domain

import "errors"

var (
	// ErrInvalidConfiguration は起動時の設定値（対称鍵の16進文字列など）が不正な場合のエラー。
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnauthorized は特権操作の呼び出し元がコントローラでない場合のエラー。
	ErrUnauthorized = errors.New("unauthorized")

	// ErrKeyAlreadyInitialized は署名鍵が既に初期化済み、または初期化中の場合のエラー。
	ErrKeyAlreadyInitialized = errors.New("signing key already initialized")

	// ErrKeyNotReady は署名鍵が未初期化のまま署名を要求された場合のエラー。
	ErrKeyNotReady = errors.New("signing key not initialized")

	// ErrAnonymousCaller は匿名プリンシパルが証明書を要求した場合のエラー。
	ErrAnonymousCaller = errors.New("anonymous principal not allowed")

	// ErrInvalidPrincipal はプリンシパルのテキスト表現が不正な場合のエラー。
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrSigningUnavailable は署名オラクルが署名に失敗した場合のエラー。
	ErrSigningUnavailable = errors.New("signing unavailable")

	// ErrPublicKeyUnavailable は署名オラクルから公開鍵を取得できなかった場合のエラー。
	ErrPublicKeyUnavailable = errors.New("public key unavailable")

	// ErrEncryptionFailed は対称暗号化に失敗した場合のエラー。
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrStateNotFound は永続化されたスナップショットが存在しない場合のエラー。
	ErrStateNotFound = errors.New("state snapshot not found")

	// ErrStateCorrupted はスナップショットの復元に失敗した場合のエラー。
	ErrStateCorrupted = errors.New("state snapshot corrupted")
)
