package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doorkeeper/intercom/internal/crypto"
)

func newGenerateIdentityKeyCmd() *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "generate-identity-key",
		Short: "Generate a Variant A intercom P-256 identity key",
		Long: `Generates a new P-256 identity key for a single intercom (Variant A: ecdh-gcm).
The private key is written to -out as a SEC1 PEM file; the public key, which must be handed to
the backend so it can bind credentials to this device, is printed to stdout as raw uncompressed
point bytes in hex.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile == "" {
				return fmt.Errorf("generate-identity-key: -out is required")
			}
			if _, err := os.Stat(outFile); err == nil {
				return fmt.Errorf("generate-identity-key: %s already exists, refusing to overwrite", outFile)
			}
			skey, err := crypto.GenerateP256Key(rand.Reader)
			if err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			if err := crypto.SaveP256PrivateKey(skey, outFile); err != nil {
				return fmt.Errorf("saving key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", skey.PublicBytes())
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "path to write the new SEC1 PEM private key")
	return cmd
}

func newGenerateMasterKeyCmd() *cobra.Command {
	var outFile string
	var keyLen int
	cmd := &cobra.Command{
		Use:   "generate-master-key",
		Short: "Generate a Variant B / Symmetric-Key site master key",
		Long: `Generates a new random site master key, from which per-device diversified keys are
derived with the 'diversify' subcommand (Variant B's NXP AN10922-style key diversification) or
HKDF-SHA-256 (the Symmetric-Key demo). The key is written raw, not PEM-encoded, since it's a bare
symmetric secret rather than an asymmetric keypair.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile == "" {
				return fmt.Errorf("generate-master-key: -out is required")
			}
			if _, err := os.Stat(outFile); err == nil {
				return fmt.Errorf("generate-master-key: %s already exists, refusing to overwrite", outFile)
			}
			key, err := crypto.RandomBytes(keyLen)
			if err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			if err := os.WriteFile(outFile, key, 0600); err != nil {
				return fmt.Errorf("writing key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d-byte master key to %s\n", keyLen, outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "path to write the new master key")
	cmd.Flags().IntVar(&keyLen, "length", 16, "master key length in bytes")
	return cmd
}
