/*
Package cli facilitates building command-line tools that unlock or provision an intercom. It
defines a [Config] type that registers common command-line flags (using the Golang flag package)
and environment variable equivalents, mirroring the teacher's own pkg/cli layout but scoped to one
door identity key and one credential cache rather than a VIN, an OAuth token, and a fleet of
vehicle domains.

# Example

	config := cli.NewConfig()
	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment()
	if err := config.LoadCredentials(); err != nil {
		log.Fatal(err)
	}
	central, err := config.ConnectLocal(ctx, adapter)
*/
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/99designs/keyring"

	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/log"
	"github.com/doorkeeper/intercom/pkg/cache"
	"github.com/doorkeeper/intercom/pkg/central"
	"github.com/doorkeeper/intercom/pkg/connector/ble"
	"github.com/doorkeeper/intercom/pkg/keystore"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

// Environment variable names used by [Config.ReadFromEnvironment].
const (
	EnvDoorID          = "INTERCOM_DOOR_ID"
	EnvKeyFile         = "INTERCOM_KEY_FILE"
	EnvCacheFile       = "INTERCOM_CACHE_FILE"
	EnvKeyringType     = "INTERCOM_KEYRING_TYPE"
	EnvKeyringPassword = "INTERCOM_KEYRING_PASSWORD"
	EnvKeyringPath     = "INTERCOM_KEYRING_PATH"
	EnvKeyringDebug    = "INTERCOM_KEYRING_DEBUG"
)

const keyringDirectory = "~/.intercom_keys"

var (
	ErrNoKeySpecified = errors.New("identity key location not provided")
	ErrNoDoorID       = errors.New("door identifier not provided")
)

// Config fields determine how a mobile CLI tool authenticates to an intercom and stores its
// identity key.
type Config struct {
	DoorID        string
	KeyFilename   string
	CacheFilename string
	UseKeyring    bool
	Backend       keyring.Config
	BackendType   backendType
	Debug         bool
	BtAdapterID   string

	password *string
	store    *keystore.KeyStore
	cache    *cache.Cache
	skey     protocol.ECDHPrivateKey
}

// NewConfig constructs a Config with its keyring backend defaults populated.
func NewConfig() *Config {
	c := &Config{
		Backend: keyring.Config{
			ServiceName:              "com.doorkeeper.intercom",
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword
	return c
}

// RegisterCommandLineFlags adds the standard set of flags to the default flag.CommandLine.
func (c *Config) RegisterCommandLineFlags() {
	flag.StringVar(&c.DoorID, "door-id", "", "Intercom door identifier. Defaults to $INTERCOM_DOOR_ID.")
	flag.StringVar(&c.CacheFilename, "credential-cache", "", "Load/store the credential cache in `file`. Defaults to $INTERCOM_CACHE_FILE.")
	flag.StringVar(&c.KeyFilename, "key-file", "", "A `file` containing the identity private key. Defaults to $INTERCOM_KEY_FILE.")
	flag.BoolVar(&c.UseKeyring, "use-keyring", false, "Load/store the identity key in the system keyring instead of -key-file.")

	var names []string
	for _, name := range keyring.AvailableBackends() {
		names = append(names, string(name))
	}
	sort.Strings(names)
	flag.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $INTERCOM_KEYRING_TYPE.")
	flag.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
	flag.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	c.registerCommandLineFlagsOsSpecific()
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// (e.g. by a command-line flag) are not overwritten.
func (c *Config) ReadFromEnvironment() {
	if c.DoorID == "" {
		c.DoorID = os.Getenv(EnvDoorID)
		log.Debug("Set door ID to '%s'", c.DoorID)
	}
	if c.CacheFilename == "" {
		c.CacheFilename = os.Getenv(EnvCacheFile)
		log.Debug("Set credential cache file to '%s'", c.CacheFilename)
	}
	if c.KeyFilename == "" {
		c.KeyFilename = os.Getenv(EnvKeyFile)
		log.Debug("Set key file to '%s'", c.KeyFilename)
	}
	if c.BackendType.String() == string(keyring.InvalidBackend) {
		if err := c.BackendType.Set(os.Getenv(EnvKeyringType)); err == nil {
			log.Debug("Set keyring type to '%s'", c.BackendType)
		}
	}
	if c.password == nil {
		password := os.Getenv(EnvKeyringPassword)
		c.password = &password
	}
	if c.Backend.FileDir == "" {
		c.Backend.FileDir = os.Getenv(EnvKeyringPath)
	}
	if !c.Debug {
		_, c.Debug = os.LookupEnv(EnvKeyringDebug)
	}
}

// LoadCredentials loads the credential cache and, if configured, the identity key. Call this
// before [Config.ConnectLocal] so an interactive keyring password prompt doesn't count against a
// connection timeout.
func (c *Config) LoadCredentials() error {
	if err := c.loadCache(); err != nil {
		return err
	}
	if _, err := c.PrivateKey(); err != nil && err != ErrNoKeySpecified {
		return err
	}
	return nil
}

func (c *Config) getPassword(prompt string) (string, error) {
	if c.password != nil && *c.password != "" {
		return *c.password, nil
	}
	password, err := keystore.PromptPassword(prompt)
	if err != nil {
		return "", err
	}
	c.password = &password
	return password, nil
}

func (c *Config) openKeyStore() (*keystore.KeyStore, error) {
	if c.store != nil {
		return c.store, nil
	}
	store, err := keystore.Open(keystore.Config{
		AllowedBackends: c.Backend.AllowedBackends,
		FileDir:         c.Backend.FileDir,
		PasswordFunc:    c.getPassword,
	})
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// PrivateKey loads the identity key from -key-file or the keyring, caching the result so
// subsequent calls return the same key.
func (c *Config) PrivateKey() (protocol.ECDHPrivateKey, error) {
	if c.skey != nil {
		return c.skey, nil
	}
	var skey protocol.ECDHPrivateKey
	var err error
	if c.KeyFilename != "" {
		skey, err = protocol.LoadPrivateKey(c.KeyFilename)
	}
	if skey == nil && c.UseKeyring {
		var store *keystore.KeyStore
		store, err = c.openKeyStore()
		if err == nil {
			skey, err = store.LoadIdentityKey()
		}
	}
	if skey == nil {
		if err == nil {
			err = ErrNoKeySpecified
		}
		return nil, err
	}
	c.skey = skey
	return skey, nil
}

// SavePrivateKey writes skey to the system keyring or a file, depending on which options are
// configured. The keyring is preferred if both are available.
func (c *Config) SavePrivateKey(skey protocol.ECDHPrivateKey) error {
	if c.UseKeyring {
		p256, ok := skey.(*intercrypto.P256Key)
		if !ok {
			return fmt.Errorf("cli: key is not exportable to the keyring")
		}
		store, err := c.openKeyStore()
		if err != nil {
			return err
		}
		return store.StoreIdentityKey(p256)
	}
	if c.KeyFilename != "" {
		return protocol.SavePrivateKey(skey, c.KeyFilename)
	}
	return ErrNoKeySpecified
}

func (c *Config) loadCache() error {
	if c.CacheFilename == "" {
		return nil
	}
	log.Debug("Loading credential cache from %s...", c.CacheFilename)
	var err error
	c.cache, err = cache.ImportFromFile(c.CacheFilename)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load credential cache: %s", err)
		}
		c.cache = cache.New(256)
	}
	return nil
}

// UpdateCache persists the in-memory credential cache back to -credential-cache, if configured.
func (c *Config) UpdateCache() error {
	if c.CacheFilename == "" || c.cache == nil {
		return nil
	}
	if err := c.cache.ExportToFile(c.CacheFilename); err != nil {
		log.Error("Error updating credential cache: %s", err)
		return err
	}
	return nil
}

// Cache returns the loaded credential cache, or nil if none was configured.
func (c *Config) Cache() *cache.Cache {
	return c.cache
}

// ConnectLocal scans for and connects to the door identified by c.DoorID over BLE, returning a
// central.Central ready to drive an unlock attempt. adapter supplies the platform Bluetooth stack,
// which is out of scope for this package (spec.md §1 excludes the BLE radio layer itself).
func (c *Config) ConnectLocal(ctx context.Context, adapter ble.Adapter) (*central.Central, error) {
	if c.DoorID == "" {
		return nil, ErrNoDoorID
	}
	conn, err := ble.NewConnection(ctx, c.DoorID, adapter)
	if err != nil {
		return nil, err
	}
	return central.New(conn), nil
}
