package middleware

import (
	"context"
	"net/http"

	"identity-certifier/internal/domain"
	"identity-certifier/pkg/httputil"
)

type callerKey struct{}

// Caller は認証プロキシが付与したヘッダから呼び出し元プリンシパルを取り出し、コンテキストに格納する。
// ヘッダがない場合は匿名プリンシパルとして扱う。
func Caller(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := domain.AnonymousPrincipal
			if text := r.Header.Get(header); text != "" {
				p, err := domain.ParsePrincipal(text)
				if err != nil {
					httputil.Error(w, http.StatusBadRequest, "INVALID_PRINCIPAL", "invalid caller principal")
					return
				}
				caller = p
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// WithCaller は呼び出し元をコンテキストに格納する。
func WithCaller(ctx context.Context, caller domain.Principal) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext はコンテキストの呼び出し元を返す。未設定なら匿名。
func CallerFromContext(ctx context.Context) domain.Principal {
	if p, ok := ctx.Value(callerKey{}).(domain.Principal); ok {
		return p
	}
	return domain.AnonymousPrincipal
}
