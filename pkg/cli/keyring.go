package cli

import (
	"fmt"

	"github.com/99designs/keyring"
)

// backendType implements flag.Value, letting -keyring-type populate Config.Backend.AllowedBackends
// from a single string instead of forcing callers to build a []keyring.BackendType by hand.
type backendType struct {
	config *Config
}

func (b backendType) String() string {
	if b.config == nil || len(b.config.Backend.AllowedBackends) == 0 {
		return string(keyring.InvalidBackend)
	}
	return string(b.config.Backend.AllowedBackends[0])
}

func (b backendType) Set(v string) error {
	if b.config == nil {
		return fmt.Errorf("cli: backendType has no associated Config")
	}
	if v == "" {
		return nil
	}
	value := keyring.BackendType(v)
	for _, name := range keyring.AvailableBackends() {
		if name == value {
			b.config.Backend.AllowedBackends = []keyring.BackendType{name}
			return nil
		}
	}
	return fmt.Errorf("cli: unsupported keyring backend %q", v)
}
