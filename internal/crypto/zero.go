package crypto

// Zero overwrites buf with zeroes in place. Callers use it to scrub session keys, shared secrets,
// and derived nonces as soon as a session tears down, per the key-material lifetime invariant.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
