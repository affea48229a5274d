// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL       string
	caller       string
	callerHeader string
	output       string
	timeout      time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "certctl",
		Short:        "Identity certifier CLI",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("CERTCTL_API_URL")
			}
			if caller == "" {
				caller = os.Getenv("CERTCTL_CALLER")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set CERTCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&caller, "caller", "", "Caller principal sent to the service (or set CERTCTL_CALLER)")
	rootCmd.PersistentFlags().StringVar(&callerHeader, "caller-header", "X-Caller-Principal", "Header carrying the caller principal")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(initKeyCmd())
	rootCmd.AddCommand(publicKeyCmd())
	rootCmd.AddCommand(certifyCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "certctl version %s\n", version)
		},
	}
}

// initKeyCmd は署名鍵の初期化コマンド。
func initKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-key",
		Short: "Initialize the issuer signing key (controller only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				PublicKey string `json:"public_key"`
			}
			body, err := callAPI(http.MethodPost, "/v1/keys/init", http.StatusCreated, &result)
			if err != nil {
				return err
			}
			return printResult(cmd, body, result.PublicKey)
		},
	}
}

// publicKeyCmd は公開鍵の取得コマンド。
func publicKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "public-key",
		Short: "Show the issuer public key (controller only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				PublicKey string `json:"public_key"`
			}
			body, err := callAPI(http.MethodGet, "/v1/keys/public", http.StatusOK, &result)
			if err != nil {
				return err
			}
			if result.PublicKey == "" && output != "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "signing key is not initialized")
				return nil
			}
			return printResult(cmd, body, result.PublicKey)
		},
	}
}

// certifyCmd は身元証明の発行コマンド。
func certifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "certify",
		Short: "Request a certified identity for the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				CertifiedIdentity string `json:"certified_identity"`
			}
			body, err := callAPI(http.MethodPost, "/v1/identity/certify", http.StatusOK, &result)
			if err != nil {
				return err
			}
			return printResult(cmd, body, result.CertifiedIdentity)
		},
	}
}

func callAPI(method, path string, wantStatus int, result any) ([]byte, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("--api-url is required (or set CERTCTL_API_URL)")
	}

	req, err := http.NewRequest(method, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return body, nil
}

func printResult(cmd *cobra.Command, body []byte, text string) error {
	if output == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(body)))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("%s: %s", errResp.Code, errResp.Message)
	}
	return fmt.Errorf("server returned status %d", statusCode)
}
