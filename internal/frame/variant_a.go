package frame

// VariantAVersion is the Auth frame's leading version byte, also used as the AEAD additional data
// of the Auth frame's ciphertext. Response frames are sealed with no additional data.
const VariantAVersion = variantAVersion

const (
	variantAVersion = 0x01

	pubMSize    = 65
	nonceMSize  = 12
	nonceISize  = 12
	gcmTagSize  = 16

	authFrameMinSize     = 94
	authFrameMaxSize     = 512
	responseFrameMaxSize = 256
)

// AuthFrame is the Variant A inbound message: Version(1) || PubM(65) || Nonce_M(12) ||
// Ciphertext(var) || Tag(16).
type AuthFrame struct {
	Version    byte
	PubM       []byte
	NonceM     []byte
	Ciphertext []byte
	Tag        []byte
}

// EncodeAuthFrame serializes an AuthFrame. Callers constructing a frame to send (the central
// driver) use this; the peripheral only ever decodes.
func EncodeAuthFrame(f AuthFrame) ([]byte, error) {
	if len(f.PubM) != pubMSize {
		return nil, malformed("PubM must be 65 bytes")
	}
	if len(f.NonceM) != nonceMSize {
		return nil, malformed("Nonce_M must be 12 bytes")
	}
	if len(f.Tag) != gcmTagSize {
		return nil, malformed("Tag must be 16 bytes")
	}
	out := make([]byte, 0, 1+pubMSize+nonceMSize+len(f.Ciphertext)+gcmTagSize)
	out = append(out, f.Version)
	out = append(out, f.PubM...)
	out = append(out, f.NonceM...)
	out = append(out, f.Ciphertext...)
	out = append(out, f.Tag...)
	if len(out) < authFrameMinSize || len(out) > authFrameMaxSize {
		return nil, malformed("encoded Auth frame outside [94, 512]")
	}
	return out, nil
}

// DecodeAuthFrame parses a Variant A Auth frame. Per spec §4.1, PubM's leading byte is checked
// before anything else so an invalid point is rejected before any ECDH is attempted.
func DecodeAuthFrame(data []byte) (AuthFrame, error) {
	if len(data) < authFrameMinSize || len(data) > authFrameMaxSize {
		return AuthFrame{}, malformed("Auth frame length outside [94, 512]")
	}
	if data[0] != variantAVersion {
		return AuthFrame{}, malformed("unsupported version byte")
	}
	pubM := data[1 : 1+pubMSize]
	if pubM[0] != 0x04 {
		return AuthFrame{}, malformed("PubM missing uncompressed-point indicator")
	}
	rest := data[1+pubMSize:]
	if len(rest) < nonceMSize+gcmTagSize {
		return AuthFrame{}, malformed("Auth frame truncated")
	}
	nonceM := rest[:nonceMSize]
	ciphertext := rest[nonceMSize : len(rest)-gcmTagSize]
	tag := rest[len(rest)-gcmTagSize:]

	return AuthFrame{
		Version:    data[0],
		PubM:       append([]byte{}, pubM...),
		NonceM:     append([]byte{}, nonceM...),
		Ciphertext: append([]byte{}, ciphertext...),
		Tag:        append([]byte{}, tag...),
	}, nil
}

// ResponseFrame is the Variant A outbound message: Nonce_I(12) || Ciphertext(var) || Tag(16).
// Its decrypted plaintext body is Status(1) || DoorState(1) || Extended(var).
type ResponseFrame struct {
	NonceI     []byte
	Ciphertext []byte
	Tag        []byte
}

// EncodeResponseFrame serializes a ResponseFrame, checking it against the negotiated mtu (pass 0
// to skip the MTU check, e.g. in tests with no transport).
func EncodeResponseFrame(f ResponseFrame, mtu int) ([]byte, error) {
	if len(f.NonceI) != nonceISize {
		return nil, malformed("Nonce_I must be 12 bytes")
	}
	if len(f.Tag) != gcmTagSize {
		return nil, malformed("Tag must be 16 bytes")
	}
	out := make([]byte, 0, nonceISize+len(f.Ciphertext)+gcmTagSize)
	out = append(out, f.NonceI...)
	out = append(out, f.Ciphertext...)
	out = append(out, f.Tag...)
	if len(out) > responseFrameMaxSize {
		return nil, malformed("encoded Response frame exceeds 256 bytes")
	}
	if err := checkMTU(out, mtu); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeResponseFrame parses a Variant A Response frame.
func DecodeResponseFrame(data []byte) (ResponseFrame, error) {
	if len(data) < nonceISize+gcmTagSize || len(data) > responseFrameMaxSize {
		return ResponseFrame{}, malformed("Response frame length invalid")
	}
	nonceI := data[:nonceISize]
	ciphertext := data[nonceISize : len(data)-gcmTagSize]
	tag := data[len(data)-gcmTagSize:]
	return ResponseFrame{
		NonceI:     append([]byte{}, nonceI...),
		Ciphertext: append([]byte{}, ciphertext...),
		Tag:        append([]byte{}, tag...),
	}, nil
}

// ResponseBody is the plaintext Status(1) || DoorState(1) || Extended(var) carried inside a
// ResponseFrame's ciphertext.
type ResponseBody struct {
	Status    byte
	DoorState byte
	Extended  []byte
}

// EncodeResponseBody serializes a ResponseBody to plaintext bytes, ready for AEAD sealing.
func EncodeResponseBody(b ResponseBody) []byte {
	out := make([]byte, 0, 2+len(b.Extended))
	out = append(out, b.Status, b.DoorState)
	out = append(out, b.Extended...)
	return out
}

// DecodeResponseBody parses plaintext recovered from a ResponseFrame.
func DecodeResponseBody(data []byte) (ResponseBody, error) {
	if len(data) < 2 {
		return ResponseBody{}, malformed("Response body shorter than Status||DoorState")
	}
	return ResponseBody{
		Status:    data[0],
		DoorState: data[1],
		Extended:  append([]byte{}, data[2:]...),
	}, nil
}

// AuthRequestPayload is the plaintext recovered from a Variant A Auth frame's ciphertext:
// CredentialLen(2, BE) || Credential(var, compact JWS) || RequestData(var), per spec §4.4 step 7
// ("credential record + any request-specific fields").
type AuthRequestPayload struct {
	Credential  string
	RequestData []byte
}

// EncodeAuthRequestPayload serializes an AuthRequestPayload to plaintext, ready for AEAD sealing.
func EncodeAuthRequestPayload(p AuthRequestPayload) []byte {
	cred := []byte(p.Credential)
	out := make([]byte, 0, 2+len(cred)+len(p.RequestData))
	out = append(out, byte(len(cred)>>8), byte(len(cred)))
	out = append(out, cred...)
	out = append(out, p.RequestData...)
	return out
}

// DecodeAuthRequestPayload parses plaintext recovered from a Variant A Auth frame's ciphertext.
func DecodeAuthRequestPayload(data []byte) (AuthRequestPayload, error) {
	if len(data) < 2 {
		return AuthRequestPayload{}, malformed("Auth payload shorter than CredentialLen")
	}
	credLen := int(data[0])<<8 | int(data[1])
	if len(data) < 2+credLen {
		return AuthRequestPayload{}, malformed("Auth payload truncated before end of credential")
	}
	return AuthRequestPayload{
		Credential:  string(data[2 : 2+credLen]),
		RequestData: append([]byte{}, data[2+credLen:]...),
	}, nil
}
