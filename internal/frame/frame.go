// Package frame implements the wire encoding for all three protocol variants: translating between
// raw GATT characteristic byte strings and typed messages. It performs no cryptography and holds
// no state — decode failures surface as *errorcode.Error values so callers never see a panic or an
// unwound slice-bounds error from a hostile peer.
package frame

import "github.com/doorkeeper/intercom/internal/errorcode"

// MaxFrameBytes bounds any single frame this package will decode, independent of a specific
// variant's own length field — it exists purely to reject a hostile length claim before any
// allocation proportional to it.
const MaxFrameBytes = 4096

func malformed(info string) error {
	return &errorcode.Error{Kind: errorcode.KindTransport, Name: "MalformedFrame", Status: errorcode.InternalError, Info: info}
}

func mtuExceeded(info string) error {
	return &errorcode.Error{Kind: errorcode.KindTransport, Name: "MtuExceeded", Status: errorcode.InternalError, Info: info}
}

// checkMTU reports MtuExceeded if encoded exceeds the negotiated ATT MTU minus the 3-byte ATT
// write overhead, per spec §4.1.
func checkMTU(encoded []byte, mtu int) error {
	if mtu <= 0 {
		return nil
	}
	if len(encoded) > mtu-3 {
		return mtuExceeded("frame exceeds negotiated MTU")
	}
	return nil
}
