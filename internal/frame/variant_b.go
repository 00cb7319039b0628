package frame

// Variant B (Diversified Symmetric / NXP AN10922-style) frames: Start(1) || Tag(1) || Length(2,
// big-endian) || Seq(1) || Value(<=400). Length covers Tag..end-of-Value, i.e. it is a redundant
// framing check counted from one byte before its own position rather than from after it — modules
// of this family carry that quirk, so we preserve it rather than "fixing" it into a self-relative
// length.

const (
	// StartPlain marks a Value field that is not CBC-encrypted (used only during the mutual-auth
	// handshake, before a session key exists).
	StartPlain byte = 0x81
	// StartEncrypted marks a Value field CBC-encrypted under the session's diversified key.
	StartEncrypted byte = 0xC1

	variantBMaxValue = 400

	// TagIVReset resynchronizes the receiver's CBC IV state without altering session keys.
	TagIVReset byte = 0xFE
)

// VariantBFrame is one Diversified-Symmetric protocol message.
type VariantBFrame struct {
	Start byte
	Tag   byte
	Seq   byte
	Value []byte
}

// EncodeVariantBFrame serializes f, enforcing the Value(<=400) bound and the MTU, and computing
// the redundant Length field per the Tag..end-of-Value convention above.
func EncodeVariantBFrame(f VariantBFrame, mtu int) ([]byte, error) {
	if f.Start != StartPlain && f.Start != StartEncrypted {
		return nil, malformed("Start byte must be 0x81 or 0xC1")
	}
	if len(f.Value) > variantBMaxValue {
		return nil, malformed("Value exceeds 400 bytes")
	}
	length := 1 + 1 + len(f.Value) // Tag(1) + Seq(1) + Value
	out := make([]byte, 0, 1+1+2+1+len(f.Value))
	out = append(out, f.Start, f.Tag)
	out = append(out, byte(length>>8), byte(length))
	out = append(out, f.Seq)
	out = append(out, f.Value...)
	if err := checkMTU(out, mtu); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeVariantBFrame parses a Diversified-Symmetric protocol message, rejecting any Length claim
// that would read past the supplied buffer with MtuExceeded, and any other malformation with
// MalformedFrame.
func DecodeVariantBFrame(data []byte) (VariantBFrame, error) {
	if len(data) > MaxFrameBytes {
		return VariantBFrame{}, mtuExceeded("frame larger than the maximum accepted size")
	}
	if len(data) < 5 {
		return VariantBFrame{}, malformed("frame shorter than header")
	}
	start := data[0]
	if start != StartPlain && start != StartEncrypted {
		return VariantBFrame{}, malformed("unknown Start byte")
	}
	tag := data[1]
	claimedLength := int(data[2])<<8 | int(data[3])
	seq := data[4]
	value := data[5:]

	// claimedLength covers Tag(1) + Seq(1) + Value, i.e. it should equal 2 + len(value).
	if claimedLength != 2+len(value) {
		if claimedLength > 2+len(value) {
			return VariantBFrame{}, mtuExceeded("Length field claims more than the supplied buffer")
		}
		return VariantBFrame{}, malformed("Length field does not match frame contents")
	}
	if len(value) > variantBMaxValue {
		return VariantBFrame{}, malformed("Value exceeds 400 bytes")
	}

	return VariantBFrame{
		Start: start,
		Tag:   tag,
		Seq:   seq,
		Value: append([]byte{}, value...),
	}, nil
}

// Variant B handshake message tags (spec §4.4's five-state mutual-auth machine), carried in
// VariantBFrame.Tag while Start=0x81 (the handshake runs before any session key exists).
const (
	// TagAuthRequest carries DeviceUID(8) || Ra(16): the mobile's opening challenge.
	TagAuthRequest byte = 0x01
	// TagAuthChallenge carries RaPrime(16) || Rb(16): the peripheral's proof-of-key plus its own
	// challenge back to the mobile.
	TagAuthChallenge byte = 0x02
	// TagAuthConfirm carries RbPrime(16): the mobile's proof-of-key, completing mutual auth.
	TagAuthConfirm byte = 0x03
)

const authReqValueSize = certDeviceUIDSizeVariantB + 16

// certDeviceUIDSizeVariantB mirrors internal/credential's certDeviceUIDSize without creating an
// import between the two packages for a single shared constant.
const certDeviceUIDSizeVariantB = 8

// AuthRequestValue is the Value payload of a TagAuthRequest frame.
type AuthRequestValue struct {
	DeviceUID []byte
	Ra        []byte
}

// EncodeAuthRequestValue serializes an AuthRequestValue.
func EncodeAuthRequestValue(v AuthRequestValue) ([]byte, error) {
	if len(v.DeviceUID) != certDeviceUIDSizeVariantB || len(v.Ra) != 16 {
		return nil, malformed("AuthRequestValue field length mismatch")
	}
	out := make([]byte, 0, authReqValueSize)
	out = append(out, v.DeviceUID...)
	out = append(out, v.Ra...)
	return out, nil
}

// DecodeAuthRequestValue parses a TagAuthRequest frame's Value.
func DecodeAuthRequestValue(data []byte) (AuthRequestValue, error) {
	if len(data) != authReqValueSize {
		return AuthRequestValue{}, malformed("AuthRequestValue truncated")
	}
	return AuthRequestValue{
		DeviceUID: append([]byte{}, data[:certDeviceUIDSizeVariantB]...),
		Ra:        append([]byte{}, data[certDeviceUIDSizeVariantB:]...),
	}, nil
}

// AuthChallengeValue is the Value payload of a TagAuthChallenge frame.
type AuthChallengeValue struct {
	RaPrime []byte
	Rb      []byte
}

// EncodeAuthChallengeValue serializes an AuthChallengeValue.
func EncodeAuthChallengeValue(v AuthChallengeValue) ([]byte, error) {
	if len(v.RaPrime) != 16 || len(v.Rb) != 16 {
		return nil, malformed("AuthChallengeValue field length mismatch")
	}
	out := make([]byte, 0, 32)
	out = append(out, v.RaPrime...)
	out = append(out, v.Rb...)
	return out, nil
}

// DecodeAuthChallengeValue parses a TagAuthChallenge frame's Value.
func DecodeAuthChallengeValue(data []byte) (AuthChallengeValue, error) {
	if len(data) != 32 {
		return AuthChallengeValue{}, malformed("AuthChallengeValue truncated")
	}
	return AuthChallengeValue{
		RaPrime: append([]byte{}, data[:16]...),
		Rb:      append([]byte{}, data[16:]...),
	}, nil
}

// AuthConfirmValue is the Value payload of a TagAuthConfirm frame.
type AuthConfirmValue struct {
	RbPrime []byte
}

// EncodeAuthConfirmValue serializes an AuthConfirmValue.
func EncodeAuthConfirmValue(v AuthConfirmValue) ([]byte, error) {
	if len(v.RbPrime) != 16 {
		return nil, malformed("AuthConfirmValue field length mismatch")
	}
	return append([]byte{}, v.RbPrime...), nil
}

// DecodeAuthConfirmValue parses a TagAuthConfirm frame's Value.
func DecodeAuthConfirmValue(data []byte) (AuthConfirmValue, error) {
	if len(data) != 16 {
		return AuthConfirmValue{}, malformed("AuthConfirmValue truncated")
	}
	return AuthConfirmValue{RbPrime: append([]byte{}, data...)}, nil
}
