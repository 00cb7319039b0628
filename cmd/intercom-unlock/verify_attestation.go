package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doorkeeper/intercom/internal/attestation"
)

func newVerifyAttestationCmd() *cobra.Command {
	var doorID, publicKeyHex, attestationToken string
	cmd := &cobra.Command{
		Use:   "verify-attestation",
		Short: "Check a key attestation produced by intercom-keygen attest",
		Long: `An installer who receives an intercom's public key through an out-of-band channel
(a provisioning sheet, a QR code on the device) can use this before ever typing that key into
issue-credential, confirming the key attestation cmd/intercom-keygen attest produced actually
verifies under the claimed public key and door ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if doorID == "" || publicKeyHex == "" || attestationToken == "" {
				return fmt.Errorf("verify-attestation: -door-id, -public-key, and -attestation are required")
			}
			publicKey, err := hex.DecodeString(publicKeyHex)
			if err != nil {
				return fmt.Errorf("decoding -public-key: %w", err)
			}
			parts := strings.SplitN(attestationToken, ".", 2)
			if len(parts) != 2 {
				return fmt.Errorf("verify-attestation: -attestation must be in hex.issued_at form")
			}
			sig, err := hex.DecodeString(parts[0])
			if err != nil {
				return fmt.Errorf("decoding attestation signature: %w", err)
			}
			issuedAtUnix, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing attestation issued_at: %w", err)
			}
			if err := attestation.Verify(publicKey, doorID, time.Unix(issuedAtUnix, 0), sig); err != nil {
				return fmt.Errorf("attestation is invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "attestation OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&doorID, "door-id", "", "door identifier the attestation claims to bind")
	cmd.Flags().StringVar(&publicKeyHex, "public-key", "", "hex-encoded intercom public key being attested")
	cmd.Flags().StringVar(&attestationToken, "attestation", "", "attestation token from 'intercom-keygen attest' (hex.issued_at)")
	return cmd
}
