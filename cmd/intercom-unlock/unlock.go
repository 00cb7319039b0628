package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/doorkeeper/intercom/internal/log"
	"github.com/doorkeeper/intercom/pkg/central"
	"github.com/doorkeeper/intercom/pkg/cli"
)

func newUnlockCmd() *cobra.Command {
	var (
		doorID         string
		variant        string
		keyFile        string
		useKeyring     bool
		cacheFile      string
		debug          bool
		timeout        time.Duration
		credentialFile string
		intercomPubHex string
		deviceUIDHex   string
		deviceKeyHex   string
		deviceIDHex    string
		diversifiedHex string
	)
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Connect to a door over BLE and complete one unlock attempt",
		Long: `Scans for, connects to, and authenticates against the door identified by -door-id,
driving whichever of pkg/central.Central's three variant handshakes -variant names. Modeled on
the teacher's examples/unlock: one private key, one credential, one connect-then-authenticate
attempt per invocation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.LevelDebug)
			}

			config := cli.NewConfig()
			config.DoorID = doorID
			config.KeyFilename = keyFile
			config.UseKeyring = useKeyring
			config.CacheFilename = cacheFile
			config.ReadFromEnvironment()

			if err := config.LoadCredentials(); err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			adapter, err := newAdapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			c, err := config.ConnectLocal(ctx, adapter)
			if err != nil {
				return fmt.Errorf("connecting: %w", err)
			}

			switch variant {
			case "ecdh-gcm":
				return runUnlockEcdhGCM(cmd, ctx, config, c, credentialFile, intercomPubHex)
			case "diversified-cbc":
				return runUnlockDiversifiedCbc(cmd, ctx, c, deviceUIDHex, deviceKeyHex)
			case "symmetric-demo":
				return runUnlockSymmetricDemo(cmd, ctx, c, credentialFile, deviceIDHex, diversifiedHex)
			default:
				return fmt.Errorf("unlock: unknown -variant %q (want ecdh-gcm, diversified-cbc, or symmetric-demo)", variant)
			}
		},
	}
	cmd.Flags().StringVar(&doorID, "door-id", "", "door identifier to connect to")
	cmd.Flags().StringVar(&variant, "variant", "ecdh-gcm", "protocol variant: ecdh-gcm, diversified-cbc, or symmetric-demo")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "file containing this device's P-256 identity key (ecdh-gcm)")
	cmd.Flags().BoolVar(&useKeyring, "use-keyring", false, "load the identity key from the system keyring instead of -key-file")
	cmd.Flags().StringVar(&cacheFile, "credential-cache", "", "credential cache file, for retrying without re-fetching a credential from a backend")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to allow the full connect-and-authenticate attempt to take")
	cmd.Flags().StringVar(&credentialFile, "credential-file", "", "file containing the credential to present (JWT text for ecdh-gcm, hex-encoded record for symmetric-demo)")
	cmd.Flags().StringVar(&intercomPubHex, "intercom-pub-key", "", "hex-encoded intercom P-256 public key (ecdh-gcm)")
	cmd.Flags().StringVar(&deviceUIDHex, "device-uid", "", "hex-encoded 8-byte device UID (diversified-cbc)")
	cmd.Flags().StringVar(&deviceKeyHex, "device-key", "", "hex-encoded pre-shared diversified device key (diversified-cbc)")
	cmd.Flags().StringVar(&deviceIDHex, "device-id", "", "hex-encoded 16-byte device ID (symmetric-demo)")
	cmd.Flags().StringVar(&diversifiedHex, "diversified-key", "", "hex-encoded diversified device key (symmetric-demo)")
	return cmd
}

func runUnlockEcdhGCM(cmd *cobra.Command, ctx context.Context, config *cli.Config, c *central.Central, credentialFile, intercomPubHex string) error {
	if credentialFile == "" || intercomPubHex == "" {
		return fmt.Errorf("unlock: -credential-file and -intercom-pub-key are required for ecdh-gcm")
	}
	skey, err := config.PrivateKey()
	if err != nil {
		return fmt.Errorf("loading identity key: %w", err)
	}
	intercomPub, err := hex.DecodeString(intercomPubHex)
	if err != nil {
		return fmt.Errorf("decoding -intercom-pub-key: %w", err)
	}
	credentialBytes, err := os.ReadFile(credentialFile)
	if err != nil {
		return fmt.Errorf("reading -credential-file: %w", err)
	}

	state, err := c.UnlockEcdhGCM(ctx, central.EcdhGCMConfig{
		PrivateKey:        skey,
		IntercomPublicKey: intercomPub,
		Credential:        string(credentialBytes),
	})
	if err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}

	if config.Cache() != nil {
		entry, _ := config.Cache().Get(config.DoorID)
		entry.Credential = string(credentialBytes)
		entry.CachedAt = time.Now()
		config.Cache().Put(config.DoorID, entry)
		if err := config.UpdateCache(); err != nil {
			log.Warning("unlock: failed to update credential cache: %s", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "door state: %s\n", state)
	return nil
}

func runUnlockDiversifiedCbc(cmd *cobra.Command, ctx context.Context, c *central.Central, deviceUIDHex, deviceKeyHex string) error {
	if deviceUIDHex == "" || deviceKeyHex == "" {
		return fmt.Errorf("unlock: -device-uid and -device-key are required for diversified-cbc")
	}
	deviceUID, err := hex.DecodeString(deviceUIDHex)
	if err != nil {
		return fmt.Errorf("decoding -device-uid: %w", err)
	}
	deviceKey, err := hex.DecodeString(deviceKeyHex)
	if err != nil {
		return fmt.Errorf("decoding -device-key: %w", err)
	}
	state, err := c.UnlockDiversifiedCbc(ctx, central.DiversifiedCbcConfig{DeviceUID: deviceUID, Key: deviceKey})
	if err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "door state: %s\n", state)
	return nil
}

func runUnlockSymmetricDemo(cmd *cobra.Command, ctx context.Context, c *central.Central, credentialFile, deviceIDHex, diversifiedHex string) error {
	if credentialFile == "" || deviceIDHex == "" || diversifiedHex == "" {
		return fmt.Errorf("unlock: -credential-file, -device-id, and -diversified-key are required for symmetric-demo")
	}
	deviceID, err := hex.DecodeString(deviceIDHex)
	if err != nil {
		return fmt.Errorf("decoding -device-id: %w", err)
	}
	diversifiedKey, err := hex.DecodeString(diversifiedHex)
	if err != nil {
		return fmt.Errorf("decoding -diversified-key: %w", err)
	}
	credentialHex, err := os.ReadFile(credentialFile)
	if err != nil {
		return fmt.Errorf("reading -credential-file: %w", err)
	}
	credentialPayload, err := hex.DecodeString(string(credentialHex))
	if err != nil {
		return fmt.Errorf("decoding credential file contents: %w", err)
	}

	if err := c.UnlockSymmetricDemo(ctx, central.SymmetricDemoConfig{
		DeviceID:          deviceID,
		DiversifiedKey:    diversifiedKey,
		CredentialPayload: credentialPayload,
	}); err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "unlock request accepted")
	return nil
}
