// Package keystore wraps github.com/99designs/keyring behind a small, domain-shaped capability:
// load/store/erase for the handful of secrets an intercom deployment or central driver needs to
// keep off disk in the clear — the intercom's P-256 identity key (Variant A), a site master key or
// per-device diversified key (Variant B/Symmetric-Key), and the authority's credential-signing
// public key pin. Modeled directly on the teacher's pkg/cli/keyring.go, generalized from "one
// vehicle key, one OAuth token" to an arbitrary label-addressed store.
package keystore

import (
	"fmt"
	"io"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

const serviceName = "com.doorkeeper.intercom"

// Label identifies a secret within the keystore, namespacing by role so a single keyring backend
// can hold every secret a deployment needs without key-name collisions.
type Label string

const (
	// LabelIdentityKey is the Variant A intercom P-256 private key.
	LabelIdentityKey Label = "identity-key"
	// LabelMasterKey is the Variant B/Symmetric-Key site master key, from which per-device keys
	// are diversified.
	LabelMasterKey Label = "master-key"
	// LabelAuthorityPub is the backend authority's credential-signing public key pin.
	LabelAuthorityPub Label = "authority-pub"
)

// PasswordFunc prompts for a password used to unlock a file-backed keyring, matching
// github.com/99designs/keyring's callback signature.
type PasswordFunc func(prompt string) (string, error)

// KeyStore wraps an opened system keyring.
type KeyStore struct {
	ring keyring.Keyring
}

// Config selects the keyring backend and optional file-backend directory, mirroring the fields
// the teacher's pkg/cli.Config threads into keyring.Config.
type Config struct {
	AllowedBackends []keyring.BackendType
	FileDir         string
	PasswordFunc    PasswordFunc
}

// Open opens the system keyring described by cfg. A nil PasswordFunc defaults to
// PromptPassword, which reads from the terminal.
func Open(cfg Config) (*KeyStore, error) {
	passwordFunc := cfg.PasswordFunc
	if passwordFunc == nil {
		passwordFunc = PromptPassword
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName:          serviceName,
		AllowedBackends:      cfg.AllowedBackends,
		FileDir:              cfg.FileDir,
		FilePasswordFunc:     keyring.PromptFunc(passwordFunc),
		KeychainPasswordFunc: keyring.PromptFunc(passwordFunc),
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to open keyring: %w", err)
	}
	return &KeyStore{ring: ring}, nil
}

// PromptPassword reads a password from the terminal, falling back to stderr if stdout isn't one —
// ported from the teacher's Config.getPassword almost verbatim, since x/term's interactive-prompt
// idiom doesn't change across domains.
func PromptPassword(prompt string) (string, error) {
	var w io.Writer
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fd = int(os.Stderr.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("keystore: no terminal available for password prompt")
		}
		w = os.Stderr
	} else {
		w = os.Stdout
	}
	fmt.Fprintf(w, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w)
	return string(b), nil
}

// StoreBytes writes raw to the entry named by label.
func (k *KeyStore) StoreBytes(label Label, raw []byte) error {
	return k.ring.Set(keyring.Item{Key: string(label), Data: raw})
}

// LoadBytes reads the raw bytes stored under label.
func (k *KeyStore) LoadBytes(label Label) ([]byte, error) {
	item, err := k.ring.Get(string(label))
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to load %q: %w", label, err)
	}
	return item.Data, nil
}

// Erase removes the entry named by label. Erasing a missing label is not an error.
func (k *KeyStore) Erase(label Label) error {
	err := k.ring.Remove(string(label))
	if err == keyring.ErrKeyNotFound {
		return nil
	}
	return err
}

// StoreIdentityKey writes an intercom's Variant A private key as its raw 32-byte scalar.
func (k *KeyStore) StoreIdentityKey(key *crypto.P256Key) error {
	scalar := make([]byte, 32)
	if (key.D.BitLen()+7)/8 != len(scalar) {
		return fmt.Errorf("keystore: invalid private key")
	}
	return k.StoreBytes(LabelIdentityKey, key.D.FillBytes(scalar))
}

// LoadIdentityKey reads back a key written by StoreIdentityKey.
func (k *KeyStore) LoadIdentityKey() (protocol.ECDHPrivateKey, error) {
	raw, err := k.LoadBytes(LabelIdentityKey)
	if err != nil {
		return nil, err
	}
	return protocol.UnmarshalECDHPrivateKey(raw)
}
