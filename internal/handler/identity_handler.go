// Package handler はHTTPハンドラを提供する。
package handler

import (
	"errors"
	"net/http"

	"identity-certifier/internal/domain"
	"identity-certifier/internal/middleware"
	"identity-certifier/internal/usecase"
	"identity-certifier/pkg/httputil"
)

// CertificationObserver は認証結果を記録する。
type CertificationObserver interface {
	ObserveCertification(outcome string)
}

// IdentityHandler は鍵の初期化と身元証明のHTTPハンドラを提供する。
type IdentityHandler struct {
	keys     *usecase.KeyService
	certs    *usecase.CertificationService
	observer CertificationObserver
}

// NewIdentityHandler は新しいIdentityHandlerを生成する。observer は nil でもよい。
func NewIdentityHandler(keys *usecase.KeyService, certs *usecase.CertificationService, observer CertificationObserver) *IdentityHandler {
	return &IdentityHandler{
		keys:     keys,
		certs:    certs,
		observer: observer,
	}
}

// PublicKeyResponse は公開鍵のレスポンス形式。
type PublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// CertifiedIdentityResponse は証明結果のレスポンス形式。
type CertifiedIdentityResponse struct {
	CertifiedIdentity string `json:"certified_identity"`
}

// HealthResponse はヘルスチェックのレスポンス形式。
type HealthResponse struct {
	Status   string `json:"status"`
	KeyState string `json:"key_state"`
}

// InitializeKey は署名鍵を初期化する。
func (h *IdentityHandler) InitializeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)

	pub, err := h.keys.InitializeKey(ctx, caller)
	if err != nil {
		middleware.WriteAuditLog(ctx, "INITIALIZE_KEY", caller.String(), middleware.AuditFailed)
		writeError(w, err)
		return
	}

	middleware.WriteAuditLog(ctx, "INITIALIZE_KEY", caller.String(), middleware.AuditSuccess)
	httputil.JSON(w, http.StatusCreated, PublicKeyResponse{PublicKey: pub})
}

// GetPublicKey は初期化済みの公開鍵を返す。
func (h *IdentityHandler) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)

	pub, err := h.keys.PublicKeyHex(ctx, caller)
	if err != nil {
		middleware.WriteAuditLog(ctx, "GET_PUBLIC_KEY", caller.String(), middleware.AuditFailed)
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, PublicKeyResponse{PublicKey: pub})
}

// CertifyIdentity は呼び出し元の身元を証明する暗号化済みレコードを返す。
func (h *IdentityHandler) CertifyIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)

	certified, err := h.certs.CertifyIdentity(ctx, caller)
	if err != nil {
		h.observe(errorCode(err))
		middleware.WriteAuditLog(ctx, "CERTIFY_IDENTITY", caller.String(), middleware.AuditFailed)
		writeError(w, err)
		return
	}

	h.observe("ok")
	middleware.WriteAuditLog(ctx, "CERTIFY_IDENTITY", caller.String(), middleware.AuditSuccess)
	httputil.JSON(w, http.StatusOK, CertifiedIdentityResponse{CertifiedIdentity: certified})
}

// Health はプロセスの生存と鍵の状態を返す。
func (h *IdentityHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		KeyState: string(h.keys.KeyState()),
	})
}

func (h *IdentityHandler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveCertification(outcome)
	}
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{domain.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED", "caller is not allowed to manage the signing key"},
	{domain.ErrKeyAlreadyInitialized, http.StatusConflict, "KEY_ALREADY_INITIALIZED", "signing key is already initialized"},
	{domain.ErrKeyNotReady, http.StatusConflict, "KEY_NOT_READY", "signing key is not initialized"},
	{domain.ErrAnonymousCaller, http.StatusUnauthorized, "ANONYMOUS_CALLER", "anonymous callers cannot be certified"},
	{domain.ErrPublicKeyUnavailable, http.StatusBadGateway, "PUBLIC_KEY_UNAVAILABLE", "signing oracle could not provide the public key"},
	{domain.ErrSigningUnavailable, http.StatusBadGateway, "SIGNING_UNAVAILABLE", "signing oracle could not sign the certificate"},
	{domain.ErrEncryptionFailed, http.StatusInternalServerError, "ENCRYPTION_FAILED", "failed to encrypt certified identity"},
}

func lookupError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return errorMapping{nil, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"}
}

func errorCode(err error) string {
	return lookupError(err).code
}

func writeError(w http.ResponseWriter, err error) {
	m := lookupError(err)
	httputil.Error(w, m.status, m.code, m.message)
}
