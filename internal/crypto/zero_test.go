package crypto

import "testing"

func TestZero(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	Zero(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %v", i, buf)
		}
	}
}
