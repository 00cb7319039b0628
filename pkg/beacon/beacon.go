// Package beacon builds iBeacon advertising payloads for the intercom peripheral. The BLE radio
// stack that actually transmits the payload is out of scope (spec.md §1), but the packet-encoding
// function itself is in scope as a supplemented feature: the original implementation builds one,
// and spec.md's non-goals exclude "configuration" of the radio, not the encoding of what gets
// advertised. Grounded on original_source's ble_ibeacon_advertising packet builder.
package beacon

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// AppleCompanyID is the Bluetooth SIG company identifier Apple registered for iBeacon, little-
// endian as it appears on the wire.
const AppleCompanyID = 0x004C

// IBeaconType is the manufacturer-specific-data sub-type byte identifying an iBeacon payload.
const IBeaconType = 0x02

// IBeaconLength is the length byte following IBeaconType: 16 (UUID) + 2 (Major) + 2 (Minor) +
// 1 (TxPower).
const IBeaconLength = 0x15

// Packet describes the fields of one iBeacon advertisement.
type Packet struct {
	UUID    uuid.UUID
	Major   uint16
	Minor   uint16
	TxPower int8 // calibrated RSSI at 1 meter, signed
}

// Encode serializes p into the manufacturer-specific-data payload a peripheral places in its
// advertising packet (everything after the AD Type=0xFF byte, which the radio layer prepends):
// CompanyID(2,LE) || Type(1) || Length(1) || UUID(16) || Major(2,BE) || Minor(2,BE) || TxPower(1).
func Encode(p Packet) []byte {
	out := make([]byte, 0, 2+1+1+16+2+2+1)
	out = binary.LittleEndian.AppendUint16(out, AppleCompanyID)
	out = append(out, IBeaconType, IBeaconLength)
	uuidBytes, _ := p.UUID.MarshalBinary()
	out = append(out, uuidBytes...)
	out = binary.BigEndian.AppendUint16(out, p.Major)
	out = binary.BigEndian.AppendUint16(out, p.Minor)
	out = append(out, byte(p.TxPower))
	return out
}

// Decode parses a payload produced by Encode, for test tooling and central-side beacon filtering.
func Decode(data []byte) (Packet, error) {
	if len(data) != 25 {
		return Packet{}, fmt.Errorf("beacon: payload must be 25 bytes, got %d", len(data))
	}
	companyID := binary.LittleEndian.Uint16(data[0:2])
	if companyID != AppleCompanyID || data[2] != IBeaconType || data[3] != IBeaconLength {
		return Packet{}, fmt.Errorf("beacon: not an iBeacon payload")
	}
	id, err := uuid.FromBytes(data[4:20])
	if err != nil {
		return Packet{}, err
	}
	return Packet{
		UUID:    id,
		Major:   binary.BigEndian.Uint16(data[20:22]),
		Minor:   binary.BigEndian.Uint16(data[22:24]),
		TxPower: int8(data[24]),
	}, nil
}
