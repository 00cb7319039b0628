package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// BlockSize is the AES block size used throughout Variant B (128-bit key, 128-bit block).
const BlockSize = aes.BlockSize

// EncryptCBC encrypts plaintext under key using AES-128-CBC with PKCS#7 padding and the supplied
// iv. iv must be BlockSize bytes and is the caller's responsibility to generate freshly per
// message; it is not derived or stored here.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, ErrNotBlockAligned
	}
	padded := pkcs7Pad(plaintext, BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptCBC reverses EncryptCBC, validating and stripping the PKCS#7 padding. It returns
// ErrBadPadding on any malformed padding rather than distinguishing the failure mode, so a padding
// oracle cannot be built from the error value.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, ErrNotBlockAligned
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrNotBlockAligned
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, BlockSize)
}

// EncryptECBBlock encrypts a single AES block with no chaining, used by the Variant B
// challenge-response round where the device proves key possession over one 16-byte nonce block.
func EncryptECBBlock(key, block []byte) ([]byte, error) {
	if len(block) != BlockSize {
		return nil, ErrNotBlockAligned
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, BlockSize)
	c.Encrypt(out, block)
	return out, nil
}

// EncryptCBCNoPad encrypts a block-aligned plaintext under AES-128-CBC with no padding, used by the
// Symmetric-Key variant's fixed-size nonce fields (Enc_DK(Nonce_M), Enc_DK(Nonce_M||Nonce_R)) where
// the wire format fixes the ciphertext length and PKCS#7's mandatory full pad block would break it.
func EncryptCBCNoPad(key, iv, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 || len(plaintext)%BlockSize != 0 {
		return nil, ErrNotBlockAligned
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, ErrNotBlockAligned
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// DecryptCBCNoPad reverses EncryptCBCNoPad.
func DecryptCBCNoPad(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrNotBlockAligned
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, ErrNotBlockAligned
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// CTR XORs data with an AES-CTR keystream under key and iv. Being a stream cipher, it needs no
// block-alignment padding, so it is used for the Transaction Certificate's fixed-length Value
// field (330 bytes, not a multiple of the AES block size) where CBC's padding requirement can't
// apply. The same call encrypts or decrypts, since CTR XORs a keystream either way.
func CTR(key, iv, data []byte) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, ErrNotBlockAligned
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadPadding
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-padLen], nil
}
