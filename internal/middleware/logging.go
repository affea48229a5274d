// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// 監査ログの結果値。
const (
	AuditSuccess = "SUCCESS"
	AuditFailed  = "FAILED"
)

// WriteAuditLog は監査ログを出力する。鍵素材や証明書の平文は渡さないこと。
func WriteAuditLog(ctx context.Context, operation string, caller string, result string, attrs ...slog.Attr) {
	args := []any{
		slog.String("operation", operation),
		slog.String("caller", caller),
		slog.String("result", result),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	slog.InfoContext(ctx, "identity operation completed", args...)
}

// RequestLogger はリクエストごとにslogでアクセスログを出力する。
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		slog.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
