package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// NonceSize is the length of the AES-GCM nonce used on the wire. The peripheral and mobile each
// seal under their own directional session key, and each sender draws a fresh random 12-byte nonce
// for every frame it seals.
const NonceSize = 12

// TagSize is the length of the AES-GCM authentication tag.
const TagSize = 16

// Seal encrypts and authenticates plaintext under key (32 bytes, AES-256) and nonce (12 bytes),
// binding additionalData into the tag without encrypting it. The returned slice is
// ciphertext || tag.
func Seal(key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrNotBlockAligned
	}
	return aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open authenticates and decrypts a Seal output. It returns ErrTagInvalid, and no partial
// plaintext, if authentication fails.
func Open(key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrNotBlockAligned
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrTagInvalid
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
