package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"identity-certifier/config"
	"identity-certifier/internal/infra"
	"identity-certifier/internal/repository"
	"identity-certifier/internal/usecase"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect persisted service state",
		Long:  "Inspect the persisted service state using the same STATE_BACKEND settings as the server",
	}
	cmd.AddCommand(snapshotShowCmd(), snapshotHistoryCmd())
	return cmd
}

// openStateService はサーバーと同じ設定で状態の保存先を開く。
func openStateService(ctx context.Context) (*usecase.StateService, func(), error) {
	_ = godotenv.Load()
	cfg := config.Load()

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}
	closers := []func() error{store.Close}

	var sealer usecase.Sealer
	if cfg.KMSSnapshotKeyName != "" {
		kmsClient, err := infra.NewKMSClient(ctx, cfg)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to init KMS client: %w", err)
		}
		sealer = kmsClient
		closers = append(closers, kmsClient.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return usecase.NewStateService(store, sealer, usecase.SystemClock{}), closeAll, nil
}

// snapshotShowCmd は最新スナップショットの概要を表示する。鍵素材は表示しない。
func snapshotShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the latest snapshot without key material",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			states, closeAll, err := openStateService(ctx)
			if err != nil {
				return err
			}
			defer closeAll()

			summary, err := states.Describe(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "GENERATION\t%d\n", summary.Generation)
			fmt.Fprintf(w, "CREATED_AT\t%s\n", summary.CreatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(w, "SEALED\t%t\n", summary.Sealed)
			fmt.Fprintf(w, "MODE\t%s\n", summary.Mode)
			fmt.Fprintf(w, "KEY_NAME\t%s\n", summary.Mode.KeyName())
			fmt.Fprintf(w, "CONTROLLER\t%s\n", summary.Controller)
			fmt.Fprintf(w, "PUBLIC_KEY\t%s\n", summary.PublicKeyHex)
			fmt.Fprintf(w, "LAST_ISSUED_AT\t%d\n", summary.LastIssuedAt)
			return w.Flush()
		},
	}
}

// snapshotHistoryCmd は保存済みの全世代を一覧表示する。
func snapshotHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List all persisted snapshot generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			states, closeAll, err := openStateService(ctx)
			if err != nil {
				return err
			}
			defer closeAll()

			history, err := states.History(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GENERATION\tID\tSEALED\tCREATED_AT")
			for _, s := range history {
				fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", s.Generation, s.ID, s.Sealed, s.CreatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
