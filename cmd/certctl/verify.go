package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"identity-certifier/pkg/certverify"
)

func symmetricKey(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("AES_SYMMETRIC_KEY_HEX"); v != "" {
		return v, nil
	}
	return "", errors.New("--key is required (or set AES_SYMMETRIC_KEY_HEX)")
}

// decryptCmd は証明済み身元レコードの復号コマンド。
func decryptCmd() *cobra.Command {
	var keyHex string
	cmd := &cobra.Command{
		Use:   "decrypt <certified-identity-hex>",
		Short: "Decrypt a certified identity with the shared symmetric key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := symmetricKey(keyHex)
			if err != nil {
				return err
			}
			d, err := certverify.Decrypt(key, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d.Identity)
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "AES-256 key as hex (or set AES_SYMMETRIC_KEY_HEX)")
	return cmd
}

// verifyCmd は証明済み身元レコードの復号と署名検証コマンド。
func verifyCmd() *cobra.Command {
	var keyHex, publicKeyHex string
	cmd := &cobra.Command{
		Use:   "verify <certified-identity-hex>",
		Short: "Decrypt a certified identity and verify the issuer signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := symmetricKey(keyHex)
			if err != nil {
				return err
			}
			d, err := certverify.DecryptAndVerify(key, strings.TrimSpace(args[0]), publicKeyHex)
			if err != nil {
				return err
			}

			if output == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(d.Identity)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signature valid: principal %s certified at %d\n",
				d.Identity.PrincipalID, d.Identity.Certificate.Timestamp)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "AES-256 key as hex (or set AES_SYMMETRIC_KEY_HEX)")
	cmd.Flags().StringVar(&publicKeyHex, "public-key", "", "Issuer public key as hex (defaults to the inlined key)")
	return cmd
}
