// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"identity-certifier/config"
	"identity-certifier/internal/handler"
	"identity-certifier/internal/infra"
	"identity-certifier/internal/middleware"
	"identity-certifier/internal/repository"
	"identity-certifier/internal/usecase"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg, version)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	infra.SetupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := infra.NewMetrics(reg)

	// KMSクライアント初期化
	var kmsClient *infra.KMSClient
	if needsKMS(cfg) {
		kmsClient, err = infra.NewKMSClient(ctx, cfg)
		if err != nil {
			slog.Error("failed to init KMS client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := kmsClient.Close(); closeErr != nil {
				slog.Error("failed to close KMS client", "error", closeErr)
			}
		}()
	}

	oracle, err := newOracle(cfg, kmsClient)
	if err != nil {
		slog.Error("failed to init signing oracle", "error", err)
		os.Exit(1)
	}

	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to init state repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var sealer usecase.Sealer
	if cfg.KMSSnapshotKeyName != "" {
		sealer = kmsClient
	}
	states := usecase.NewStateService(repo, sealer, usecase.SystemClock{})

	state, err := loadState(ctx, cfg, states)
	if err != nil {
		slog.Error("failed to load state", "error", err)
		os.Exit(1)
	}

	// DI
	instrumented := infra.NewInstrumentedOracle(oracle, metrics)
	keys := usecase.NewKeyService(state, instrumented, cfg.EnforceAuthorization)
	certs := usecase.NewCertificationService(state, instrumented, cfg.InlinePublicKey)
	h := handler.NewIdentityHandler(keys, certs, metrics)
	router := handler.NewRouter(h, handler.RouterOptions{
		CallerHeader: cfg.CallerHeader,
		Limiter: middleware.NewRateLimiter(cfg.CertifyRateLimit, cfg.CertifyRateBurst, func() {
			metrics.RateLimitRejects.Inc()
		}),
		Metrics:     metrics,
		Gatherer:    reg,
		ServiceName: cfg.OtelServiceName,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"version", version,
		"signer", cfg.SignerBackend,
		"state_backend", cfg.StateBackend,
		"key_state", string(state.KeyState()),
	)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped

	// リクエスト処理が止まってから保存する
	if _, err := states.Snapshot(ctx, state); err != nil {
		slog.Error("failed to snapshot state", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
