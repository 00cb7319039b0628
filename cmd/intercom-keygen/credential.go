package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/doorkeeper/intercom/internal/credential"
	"github.com/doorkeeper/intercom/internal/crypto"
)

func newIssueCredentialCmd() *cobra.Command {
	var (
		variant          string
		authorityKeyFile string
		devicePubKeyHex  string
		deviceIDHex      string
		doorID           string
		ttl              time.Duration
		grace            time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-credential",
		Short: "Issue a credential binding a device to a door",
		Long: `Issues the credential a mobile device presents during authentication. For
-variant ecdh-gcm this is the backend-signed JWT from spec.md §4.5 (internal/credential.Issue);
for -variant symmetric-demo it's the flat Ed25519-signed record the Symmetric-Key demo variant
uses instead (internal/credential.EncodeDemoCredential). Credential issuance is explicitly a
backend/authority responsibility, not the peripheral's (spec.md §1) — this subcommand exists so
provisioning and integration testing don't require standing up that backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if authorityKeyFile == "" {
				return fmt.Errorf("issue-credential: -authority-key-file is required")
			}
			switch variant {
			case "ecdh-gcm":
				return issueJWTCredential(cmd, authorityKeyFile, devicePubKeyHex, doorID, ttl, grace)
			case "symmetric-demo":
				return issueDemoCredential(cmd, authorityKeyFile, deviceIDHex, ttl)
			default:
				return fmt.Errorf("issue-credential: unknown -variant %q (want ecdh-gcm or symmetric-demo)", variant)
			}
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "ecdh-gcm", "protocol variant: ecdh-gcm or symmetric-demo")
	cmd.Flags().StringVar(&authorityKeyFile, "authority-key-file", "", "backend authority signing key (ES256 PEM for ecdh-gcm, raw 64-byte Ed25519 private key for symmetric-demo)")
	cmd.Flags().StringVar(&devicePubKeyHex, "device-pub-key", "", "hex-encoded mobile device P-256 public key (ecdh-gcm)")
	cmd.Flags().StringVar(&deviceIDHex, "device-id", "", "hex-encoded 16-byte device ID (symmetric-demo)")
	cmd.Flags().StringVar(&doorID, "door-id", "", "door identifier this credential authorizes (ecdh-gcm audience)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "credential validity duration")
	cmd.Flags().DurationVar(&grace, "grace-period", 0, "ecdh-gcm grace period honored after expiry (spec.md §4.5)")
	return cmd
}

func issueJWTCredential(cmd *cobra.Command, authorityKeyFile, devicePubKeyHex, doorID string, ttl, grace time.Duration) error {
	if devicePubKeyHex == "" || doorID == "" {
		return fmt.Errorf("issue-credential: -device-pub-key and -door-id are required for ecdh-gcm")
	}
	authority, err := crypto.LoadP256PrivateKey(authorityKeyFile)
	if err != nil {
		return fmt.Errorf("loading authority key: %w", err)
	}
	devicePub, err := hex.DecodeString(devicePubKeyHex)
	if err != nil {
		return fmt.Errorf("decoding -device-pub-key: %w", err)
	}
	now := time.Now()
	claims := credential.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   doorID,
			Audience:  jwt.ClaimStrings{doorID},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		DevicePubKey: base64.StdEncoding.EncodeToString(devicePub),
		GracePeriod:  int64(grace.Seconds()),
	}
	token, err := credential.Issue(authority.PrivateKey, claims)
	if err != nil {
		return fmt.Errorf("signing credential: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func issueDemoCredential(cmd *cobra.Command, authorityKeyFile, deviceIDHex string, ttl time.Duration) error {
	if deviceIDHex == "" {
		return fmt.Errorf("issue-credential: -device-id is required for symmetric-demo")
	}
	seed, err := os.ReadFile(authorityKeyFile)
	if err != nil {
		return fmt.Errorf("loading authority key: %w", err)
	}
	if len(seed) != ed25519.PrivateKeySize {
		return fmt.Errorf("issue-credential: authority key must be a raw %d-byte Ed25519 private key, got %d bytes", ed25519.PrivateKeySize, len(seed))
	}
	deviceID, err := hex.DecodeString(deviceIDHex)
	if err != nil {
		return fmt.Errorf("decoding -device-id: %w", err)
	}
	if len(deviceID) != 16 {
		return fmt.Errorf("issue-credential: -device-id must decode to 16 bytes, got %d", len(deviceID))
	}
	now := time.Now()
	cred := credential.DemoCredential{DeviceID: deviceID, NotBefore: now, NotAfter: now.Add(ttl)}
	cred.Signature = ed25519.Sign(ed25519.PrivateKey(seed), cred.CanonicalBytes())
	encoded, err := credential.EncodeDemoCredential(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%x\n", encoded)
	return nil
}
