package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
)

// NonceSize is the GCM standard nonce length.
const NonceSize = 12

// EncryptedBlob is the at-rest form of a secret. Ciphertext includes the GCM tag.
type EncryptedBlob struct {
	Nonce      []byte
	Ciphertext []byte
}

func gcm(key Key) cipher.AEAD {
	// A 32-byte key and the standard nonce size are always accepted.
	block, _ := aes.NewCipher(key[:])
	aead, _ := cipher.NewGCM(block)
	return aead
}

// Encrypt seals plaintext under key with a fresh random nonce.
func Encrypt(plaintext []byte, key Key) EncryptedBlob {
	nonce := make([]byte, NonceSize)
	_, _ = rand.Read(nonce)
	return EncryptedBlob{
		Nonce:      nonce,
		Ciphertext: gcm(key).Seal(nil, nonce, plaintext, nil),
	}
}

// Decrypt opens blob. Wrong keys, tampered data and malformed blobs all
// return ErrDecryptionFailed.
func Decrypt(blob EncryptedBlob, key Key) ([]byte, error) {
	if len(blob.Nonce) != NonceSize || len(blob.Ciphertext) < 16 {
		return nil, ErrDecryptionFailed
	}
	pt, err := gcm(key).Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if pt == nil {
		pt = []byte{}
	}
	return pt, nil
}

// EncryptString is a convenience wrapper for string secrets.
func EncryptString(plaintext string, key Key) EncryptedBlob {
	return Encrypt([]byte(plaintext), key)
}

// DecryptString is a convenience wrapper for string secrets.
func DecryptString(blob EncryptedBlob, key Key) (string, error) {
	pt, err := Decrypt(blob, key)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
