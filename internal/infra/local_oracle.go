package infra

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

const minSeedSize = 32

// LocalOracle はシードから鍵名ごとにsecp256k1鍵を決定的に導出する署名オラクル。
// 開発・テスト用途向けで、秘密鍵はプロセス外に出さない。
type LocalOracle struct {
	seed []byte

	mu   sync.Mutex
	keys map[string]*ecdsa.PrivateKey
}

// NewLocalOracle は16進文字列のシードからLocalOracleを生成する。
func NewLocalOracle(seedHex string) (*LocalOracle, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decoding signer seed: %w", err)
	}
	if len(seed) < minSeedSize {
		return nil, fmt.Errorf("signer seed must be at least %d bytes, got %d", minSeedSize, len(seed))
	}
	return &LocalOracle{
		seed: seed,
		keys: make(map[string]*ecdsa.PrivateKey),
	}, nil
}

// PublicKey は鍵名と導出パスに対応する圧縮公開鍵（33バイト）を返す。
func (o *LocalOracle) PublicKey(ctx context.Context, keyName string, derivationPath [][]byte) ([]byte, error) {
	priv, err := o.privateKey(keyName, derivationPath)
	if err != nil {
		return nil, err
	}
	return ethcrypto.CompressPubkey(&priv.PublicKey), nil
}

// Sign は32バイトのダイジェストに署名し、r || s（64バイト）を返す。
func (o *LocalOracle) Sign(ctx context.Context, digest []byte, keyName string, derivationPath [][]byte) ([]byte, error) {
	priv, err := o.privateKey(keyName, derivationPath)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("signing digest: %w", err)
	}
	// 末尾1バイトはリカバリID
	return sig[:CompactSignatureSize], nil
}

func (o *LocalOracle) privateKey(keyName string, derivationPath [][]byte) (*ecdsa.PrivateKey, error) {
	info := derivationInfo(keyName, derivationPath)

	o.mu.Lock()
	defer o.mu.Unlock()

	if priv, ok := o.keys[info]; ok {
		return priv, nil
	}

	reader := hkdf.New(sha256.New, o.seed, nil, []byte(info))
	d := make([]byte, scalarSize)
	if _, err := io.ReadFull(reader, d); err != nil {
		return nil, fmt.Errorf("deriving key %q: %w", keyName, err)
	}
	priv, err := ethcrypto.ToECDSA(d)
	if err != nil {
		return nil, fmt.Errorf("deriving key %q: %w", keyName, err)
	}
	o.keys[info] = priv
	return priv, nil
}

func derivationInfo(keyName string, derivationPath [][]byte) string {
	info := "identity-certifier/secp256k1/" + keyName
	for _, segment := range derivationPath {
		info += "/" + hex.EncodeToString(segment)
	}
	return info
}
