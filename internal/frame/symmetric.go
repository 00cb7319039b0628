package frame

// Symmetric-Key (simpler 2-round) variant frames: Type(1) || Payload(var), ported from
// original_source's ble_symmetric_key protocol.py message dataclasses.

// MessageType identifies a Symmetric-Key protocol message.
type MessageType byte

const (
	MsgAuthRequest        MessageType = 0x01
	MsgAuthResponse       MessageType = 0x02
	MsgCredential         MessageType = 0x03
	MsgCredentialResponse MessageType = 0x04
	MsgError              MessageType = 0xFF
)

const (
	deviceIDSize = 16
	ivSize       = 16
	nonceSize    = 16
)

// AuthRequestMsg is MsgAuthRequest: DeviceID(16) || IV(16) || Enc_DK(Nonce_M)(16).
type AuthRequestMsg struct {
	DeviceID       []byte
	IV             []byte
	EncryptedNonce []byte
}

// EncodeAuthRequest serializes an AuthRequestMsg, type byte included.
func EncodeAuthRequest(m AuthRequestMsg) ([]byte, error) {
	if len(m.DeviceID) != deviceIDSize || len(m.IV) != ivSize || len(m.EncryptedNonce) != nonceSize {
		return nil, malformed("AuthRequest field length mismatch")
	}
	out := make([]byte, 0, 1+deviceIDSize+ivSize+nonceSize)
	out = append(out, byte(MsgAuthRequest))
	out = append(out, m.DeviceID...)
	out = append(out, m.IV...)
	out = append(out, m.EncryptedNonce...)
	return out, nil
}

// DecodeAuthRequest parses an AuthRequestMsg body (type byte already stripped).
func DecodeAuthRequest(body []byte) (AuthRequestMsg, error) {
	const want = deviceIDSize + ivSize + nonceSize
	if len(body) < want {
		return AuthRequestMsg{}, malformed("AuthRequest truncated")
	}
	return AuthRequestMsg{
		DeviceID:       append([]byte{}, body[:deviceIDSize]...),
		IV:             append([]byte{}, body[deviceIDSize:deviceIDSize+ivSize]...),
		EncryptedNonce: append([]byte{}, body[deviceIDSize+ivSize:want]...),
	}, nil
}

// AuthResponseMsg is MsgAuthResponse: IV(16) || Enc_DK(Nonce_M || Nonce_R)(32).
type AuthResponseMsg struct {
	IV               []byte
	EncryptedNonces  []byte
}

// EncodeAuthResponse serializes an AuthResponseMsg, type byte included.
func EncodeAuthResponse(m AuthResponseMsg) ([]byte, error) {
	if len(m.IV) != ivSize || len(m.EncryptedNonces) != 2*nonceSize {
		return nil, malformed("AuthResponse field length mismatch")
	}
	out := make([]byte, 0, 1+ivSize+2*nonceSize)
	out = append(out, byte(MsgAuthResponse))
	out = append(out, m.IV...)
	out = append(out, m.EncryptedNonces...)
	return out, nil
}

// DecodeAuthResponse parses an AuthResponseMsg body (type byte already stripped).
func DecodeAuthResponse(body []byte) (AuthResponseMsg, error) {
	const want = ivSize + 2*nonceSize
	if len(body) < want {
		return AuthResponseMsg{}, malformed("AuthResponse truncated")
	}
	return AuthResponseMsg{
		IV:              append([]byte{}, body[:ivSize]...),
		EncryptedNonces: append([]byte{}, body[ivSize:want]...),
	}, nil
}

// CredentialMsg is MsgCredential: IV(16) || Enc_DK(payload)(var, block-aligned).
type CredentialMsg struct {
	IV                []byte
	EncryptedPayload []byte
}

// EncodeCredential serializes a CredentialMsg, type byte included.
func EncodeCredential(m CredentialMsg) ([]byte, error) {
	if len(m.IV) != ivSize || len(m.EncryptedPayload) < BlockSizeSymmetric {
		return nil, malformed("Credential field length mismatch")
	}
	out := make([]byte, 0, 1+ivSize+len(m.EncryptedPayload))
	out = append(out, byte(MsgCredential))
	out = append(out, m.IV...)
	out = append(out, m.EncryptedPayload...)
	return out, nil
}

// DecodeCredential parses a CredentialMsg body (type byte already stripped).
func DecodeCredential(body []byte) (CredentialMsg, error) {
	if len(body) < ivSize+BlockSizeSymmetric {
		return CredentialMsg{}, malformed("Credential truncated")
	}
	return CredentialMsg{
		IV:               append([]byte{}, body[:ivSize]...),
		EncryptedPayload: append([]byte{}, body[ivSize:]...),
	}, nil
}

// BlockSizeSymmetric is the AES block size used by the Symmetric-Key variant's AES-128-CBC
// framing (kept distinct from internal/crypto.BlockSize to avoid an import cycle; both are 16).
const BlockSizeSymmetric = 16

// CredentialStatus is the 1-byte status carried in MsgCredentialResponse.
type CredentialStatus byte

const (
	CredentialSuccess       CredentialStatus = 0x00
	CredentialRejected      CredentialStatus = 0x01
	CredentialExpired       CredentialStatus = 0x02
	CredentialRevoked       CredentialStatus = 0x03
	CredentialInvalidFormat CredentialStatus = 0x04
)

// CredentialResponseMsg is MsgCredentialResponse: Status(1).
type CredentialResponseMsg struct {
	Status CredentialStatus
}

// EncodeCredentialResponse serializes a CredentialResponseMsg, type byte included.
func EncodeCredentialResponse(m CredentialResponseMsg) []byte {
	return []byte{byte(MsgCredentialResponse), byte(m.Status)}
}

// DecodeCredentialResponse parses a CredentialResponseMsg body (type byte already stripped).
func DecodeCredentialResponse(body []byte) (CredentialResponseMsg, error) {
	if len(body) < 1 {
		return CredentialResponseMsg{}, malformed("CredentialResponse truncated")
	}
	return CredentialResponseMsg{Status: CredentialStatus(body[0])}, nil
}

// ProtocolErrorCode is the 1-byte code carried in MsgError.
type ProtocolErrorCode byte

const (
	ErrCodeInvalidMessage    ProtocolErrorCode = 0x01
	ErrCodeUnknownDevice     ProtocolErrorCode = 0x02
	ErrCodeDecryptionFailed  ProtocolErrorCode = 0x03
	ErrCodeInvalidState      ProtocolErrorCode = 0x04
	ErrCodeAuthFailed        ProtocolErrorCode = 0x05
	ErrCodeTimeout           ProtocolErrorCode = 0x06
)

// ErrorMsg is MsgError: ErrorCode(1).
type ErrorMsg struct {
	Code ProtocolErrorCode
}

// EncodeError serializes an ErrorMsg, type byte included.
func EncodeError(m ErrorMsg) []byte {
	return []byte{byte(MsgError), byte(m.Code)}
}

// DecodeError parses an ErrorMsg body (type byte already stripped).
func DecodeError(body []byte) (ErrorMsg, error) {
	if len(body) < 1 {
		return ErrorMsg{}, malformed("Error message truncated")
	}
	return ErrorMsg{Code: ProtocolErrorCode(body[0])}, nil
}

// DecodeMessageType extracts the leading type byte from a raw Symmetric-Key frame.
func DecodeMessageType(data []byte) (MessageType, []byte, error) {
	if len(data) < 1 {
		return 0, nil, malformed("empty frame")
	}
	switch MessageType(data[0]) {
	case MsgAuthRequest, MsgAuthResponse, MsgCredential, MsgCredentialResponse, MsgError:
		return MessageType(data[0]), data[1:], nil
	default:
		return 0, nil, malformed("unknown message type")
	}
}
