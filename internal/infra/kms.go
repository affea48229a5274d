package infra

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"identity-certifier/config"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// KMSClient はCloud KMSクライアントをラップする。
// 署名オラクル（EC_SIGN_SECP256K1_SHA256 鍵）とスナップショットの封緘に使う。
type KMSClient struct {
	client          *kms.KeyManagementClient
	keyRing         string
	keyVersion      string
	snapshotKeyName string
}

// NewKMSClient は設定からKMSClientを生成する。
func NewKMSClient(ctx context.Context, cfg *config.Config) (*KMSClient, error) {
	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}

	return &KMSClient{
		client:          client,
		keyRing:         cfg.KMSKeyRing,
		keyVersion:      cfg.KMSKeyVersion,
		snapshotKeyName: cfg.KMSSnapshotKeyName,
	}, nil
}

// keyVersionName は鍵名に対応する CryptoKeyVersion のリソース名を返す。
func (c *KMSClient) keyVersionName(keyName string, derivationPath [][]byte) (string, error) {
	if c.keyRing == "" {
		return "", errors.New("KMS_KEY_RING is required for the cloudkms signer")
	}
	if len(derivationPath) > 0 {
		return "", errors.New("cloud KMS does not support key derivation paths")
	}
	return fmt.Sprintf("%s/cryptoKeys/%s/cryptoKeyVersions/%s", c.keyRing, keyName, c.keyVersion), nil
}

// PublicKey は鍵名に対応する圧縮公開鍵（33バイト）を取得する。
func (c *KMSClient) PublicKey(ctx context.Context, keyName string, derivationPath [][]byte) ([]byte, error) {
	name, err := c.keyVersionName(keyName, derivationPath)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("getting public key: %w", err)
	}
	if resp.Algorithm != kmspb.CryptoKeyVersion_EC_SIGN_SECP256K1_SHA256 {
		return nil, fmt.Errorf("unexpected key algorithm %s", resp.Algorithm)
	}
	return CompressedPublicKeyFromPEM(resp.Pem)
}

// Sign はSHA-256ダイジェストに非対称署名し、low-S 正規化した r || s を返す。
func (c *KMSClient) Sign(ctx context.Context, digest []byte, keyName string, derivationPath [][]byte) ([]byte, error) {
	name, err := c.keyVersionName(keyName, derivationPath)
	if err != nil {
		return nil, err
	}

	req := &kmspb.AsymmetricSignRequest{
		Name: name,
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{Sha256: digest},
		},
		DigestCrc32C: wrapperspb.Int64(int64(crc32.Checksum(digest, crc32cTable))),
	}
	resp, err := c.client.AsymmetricSign(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("asymmetric sign: %w", err)
	}
	// 転送中の破損検知
	if !resp.VerifiedDigestCrc32C {
		return nil, errors.New("asymmetric sign: digest checksum not verified by KMS")
	}
	if resp.SignatureCrc32C != nil && int64(crc32.Checksum(resp.Signature, crc32cTable)) != resp.SignatureCrc32C.Value {
		return nil, errors.New("asymmetric sign: signature checksum mismatch")
	}
	return CompactSignature(resp.Signature)
}

// Seal はスナップショットをCloud KMSの対称鍵で暗号化する。
func (c *KMSClient) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	req := &kmspb.EncryptRequest{
		Name:      c.snapshotKeyName,
		Plaintext: plaintext,
	}
	resp, err := c.client.Encrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	return resp.Ciphertext, nil
}

// Unseal はCloud KMSで暗号化されたスナップショットを復号する。
func (c *KMSClient) Unseal(ctx context.Context, ciphertext []byte) ([]byte, error) {
	req := &kmspb.DecryptRequest{
		Name:       c.snapshotKeyName,
		Ciphertext: ciphertext,
	}
	resp, err := c.client.Decrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return resp.Plaintext, nil
}

// Close はKMSクライアントを閉じる。
func (c *KMSClient) Close() error {
	return c.client.Close()
}
