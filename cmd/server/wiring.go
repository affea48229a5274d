package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"identity-certifier/config"
	"identity-certifier/internal/domain"
	"identity-certifier/internal/infra"
	"identity-certifier/internal/usecase"
)

// newOracle は設定に応じた署名オラクルを返す。cloudkms の場合は kmsClient が必要。
func newOracle(cfg *config.Config, kmsClient *infra.KMSClient) (usecase.SigningOracle, error) {
	switch cfg.SignerBackend {
	case config.SignerBackendLocal:
		oracle, err := infra.NewLocalOracle(cfg.LocalSignerSeedHex)
		if err != nil {
			return nil, err
		}
		return oracle, nil
	case config.SignerBackendCloudKMS:
		if kmsClient == nil {
			return nil, errors.New("cloudkms signer requires a KMS client")
		}
		return kmsClient, nil
	default:
		return nil, fmt.Errorf("unknown signer backend %q", cfg.SignerBackend)
	}
}

func needsKMS(cfg *config.Config) bool {
	return cfg.SignerBackend == config.SignerBackendCloudKMS || cfg.KMSSnapshotKeyName != ""
}

// loadState は保存済みの状態を復元し、なければ設定値から生成して直ちに保存する。
// 復元した場合は保存済みの値が設定値より優先される。
func loadState(ctx context.Context, cfg *config.Config, states *usecase.StateService) (*usecase.ProcessState, error) {
	state, found, err := states.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring state: %w", err)
	}
	if found {
		if state.Mode() != domain.DeploymentMode(cfg.LocalMode) {
			slog.WarnContext(ctx, "LOCAL_MODE differs from restored state; keeping restored mode",
				"restored_mode", state.Mode().String(),
			)
		}
		return state, nil
	}

	var controller *domain.Principal
	if cfg.ControllerPrincipal != "" {
		p, err := domain.ParsePrincipal(cfg.ControllerPrincipal)
		if err != nil {
			return nil, fmt.Errorf("%w: CONTROLLER_PRINCIPAL: %v", domain.ErrInvalidConfiguration, err)
		}
		controller = &p
	}
	state, err = usecase.NewProcessState(cfg.SymmetricKeyHex, cfg.LocalMode, controller, usecase.SystemClock{})
	if err != nil {
		return nil, err
	}
	if _, err := states.Snapshot(ctx, state); err != nil {
		return nil, fmt.Errorf("saving initial state: %w", err)
	}
	slog.InfoContext(ctx, "created new state",
		"mode", state.Mode().String(),
		"key_name", state.Mode().KeyName(),
	)
	return state, nil
}
