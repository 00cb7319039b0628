package cli

import "flag"

// registerCommandLineFlagsOsSpecific adds flags that only make sense on platforms with a BlueZ-style
// named adapter, mirroring the teacher's per-OS flag split.
func (c *Config) registerCommandLineFlagsOsSpecific() {
	flag.StringVar(&c.BtAdapterID, "bt-adapter", "", "ID of the Bluetooth adapter to use. Defaults to hci0.")
}
