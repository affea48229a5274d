// Package aead はAES-256-GCMによる対称暗号化と決定的ノンスの導出を提供する。
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/awnumar/memguard"

	"identity-certifier/internal/domain"
)

const (
	// KeySize はAES-256の鍵長（バイト）。
	KeySize = 32
	// NonceSize はGCMのノンス長（バイト）。
	NonceSize = 12
	// TagSize はGCMの認証タグ長（バイト）。
	TagSize = 16

	timestampSize = 8
)

// Cipher は対称鍵をmemguardのEnclave内に保持するAES-256-GCM暗号器。
type Cipher struct {
	key *memguard.Enclave
}

// NewCipher は16進文字列の対称鍵からCipherを生成する。
// 16進として不正、または32バイトでない場合は ErrInvalidConfiguration を返す。
func NewCipher(keyHex string) (*Cipher, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: symmetric key is not valid hex: %v", domain.ErrInvalidConfiguration, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: symmetric key must be %d bytes, got %d", domain.ErrInvalidConfiguration, KeySize, len(raw))
	}
	// NewEnclave は raw をゼロクリアする
	return &Cipher{key: memguard.NewEnclave(raw)}, nil
}

// DeriveNonce はタイムスタンプ（ビッグエンディアン8バイト）と呼び出し元の生バイト列の先頭4バイトからノンスを導出する。
// 呼び出し元が4バイト未満の場合は残りをゼロで埋める。
func DeriveNonce(timestamp uint64, caller []byte) [NonceSize]byte {
	var nonce [NonceSize]byte
	binary.BigEndian.PutUint64(nonce[:timestampSize], timestamp)
	copy(nonce[timestampSize:], caller)
	return nonce
}

// Encrypt は平文を暗号化し、nonce || ciphertext || tag を返す。
func (c *Cipher) Encrypt(plaintext []byte, nonce [NonceSize]byte) ([]byte, error) {
	buf, err := c.key.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening key enclave: %v", domain.ErrEncryptionFailed, err)
	}
	defer buf.Destroy()

	gcm, err := newGCM(buf.Bytes())
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+gcm.Overhead())
	copy(out, nonce[:])
	return gcm.Seal(out, nonce[:], plaintext, nil), nil
}

// KeyHex は対称鍵を16進文字列で返す。スナップショット用途に限る。
func (c *Cipher) KeyHex() (string, error) {
	buf, err := c.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()
	return hex.EncodeToString(buf.Bytes()), nil
}

// Open は nonce || ciphertext || tag を復号する。
func Open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < NonceSize+TagSize {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(sealed))
	}
	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: invalid AES key size: got %d, want %d", domain.ErrEncryptionFailed, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %v", domain.ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %v", domain.ErrEncryptionFailed, err)
	}
	return gcm, nil
}
