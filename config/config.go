// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// 署名オラクルのバックエンド種別。
const (
	SignerBackendLocal    = "local"
	SignerBackendCloudKMS = "cloudkms"
)

// 状態スナップショットの保存先種別。
const (
	StateBackendDatabase = "database"
	StateBackendBolt     = "bbolt"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port     string
	LogLevel string

	// プロセス生成時の引数
	SymmetricKeyHex      string
	LocalMode            bool
	ControllerPrincipal  string
	EnforceAuthorization bool
	InlinePublicKey      bool
	CallerHeader         string

	// 署名オラクル
	SignerBackend      string
	LocalSignerSeedHex string
	KMSKeyRing         string
	KMSKeyVersion      string
	KMSSnapshotKeyName string

	// 状態の永続化
	StateBackend   string
	DatabaseDriver string
	DatabaseURL    string
	BoltPath       string

	CertifyRateLimit float64
	CertifyRateBurst int

	GoogleCloudProject string
	OtelEnabled        bool
	OtelEndpoint       string
	OtelServiceName    string
	OtelSamplingRate   float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		SymmetricKeyHex:      os.Getenv("AES_SYMMETRIC_KEY_HEX"),
		LocalMode:            getBool("LOCAL_MODE", false),
		ControllerPrincipal:  os.Getenv("CONTROLLER_PRINCIPAL"),
		EnforceAuthorization: getBool("ENFORCE_AUTHORIZATION", true),
		InlinePublicKey:      getBool("INLINE_PUBLIC_KEY", false),
		CallerHeader:         getEnv("CALLER_HEADER", "X-Caller-Principal"),

		SignerBackend:      strings.ToLower(getEnv("SIGNER_BACKEND", SignerBackendLocal)),
		LocalSignerSeedHex: os.Getenv("LOCAL_SIGNER_SEED_HEX"),
		KMSKeyRing:         os.Getenv("KMS_KEY_RING"),
		KMSKeyVersion:      getEnv("KMS_KEY_VERSION", "1"),
		KMSSnapshotKeyName: os.Getenv("KMS_SNAPSHOT_KEY_NAME"),

		StateBackend:   strings.ToLower(getEnv("STATE_BACKEND", StateBackendDatabase)),
		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    getEnv("DATABASE_URL", "identity-certifier.db"),
		BoltPath:       getEnv("BOLT_PATH", "identity-certifier.bolt"),

		CertifyRateLimit: getFloat("CERTIFY_RATE_LIMIT", 0),
		CertifyRateBurst: getInt("CERTIFY_RATE_BURST", 5),

		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		OtelEnabled:        getBool("OTEL_ENABLED", false),
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "identity-certifier"),
		OtelSamplingRate:   getFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

// ErrInvalid は設定値が不正であることを示す。
var ErrInvalid = errors.New("invalid configuration")

// Validate は起動に必要な設定が揃っているかを検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.SymmetricKeyHex == "" {
		errs = append(errs, errors.New("AES_SYMMETRIC_KEY_HEX is required"))
	}
	if c.EnforceAuthorization && c.ControllerPrincipal == "" {
		errs = append(errs, errors.New("CONTROLLER_PRINCIPAL is required when ENFORCE_AUTHORIZATION is true"))
	}

	switch c.SignerBackend {
	case SignerBackendLocal:
		if c.LocalSignerSeedHex == "" {
			errs = append(errs, errors.New("LOCAL_SIGNER_SEED_HEX is required for the local signer"))
		}
	case SignerBackendCloudKMS:
		if c.KMSKeyRing == "" {
			errs = append(errs, errors.New("KMS_KEY_RING is required for the cloudkms signer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SIGNER_BACKEND %q", c.SignerBackend))
	}

	switch c.StateBackend {
	case StateBackendDatabase, StateBackendBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown STATE_BACKEND %q", c.StateBackend))
	}

	if c.CertifyRateLimit < 0 {
		errs = append(errs, errors.New("CERTIFY_RATE_LIMIT must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getInt(key string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return i
}

func getFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultVal
	}
	return f
}
