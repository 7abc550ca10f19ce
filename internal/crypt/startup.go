package crypt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

var selfTestPlaintext = []byte("mealplanner-encryption-self-test")

// ValidateEncryptionAtStartup parses raw and proves the key with an
// encrypt/decrypt round trip. Callers run it before touching stored tokens
// and stop on error.
func ValidateEncryptionAtStartup(raw string) (Key, error) {
	key, err := ParseKey(raw)
	if err != nil {
		return Key{}, err
	}
	pt, err := Decrypt(Encrypt(selfTestPlaintext, key), key)
	if err != nil || !bytes.Equal(pt, selfTestPlaintext) {
		return Key{}, fmt.Errorf("%w: self test failed", ErrCrypto)
	}
	return key, nil
}

// Report describes the shape of a configured key without revealing it.
type Report struct {
	KeyIsSet         bool `json:"key_is_set"`
	KeyLength        int  `json:"key_length"`
	KeyIsValidHex    bool `json:"key_is_valid_hex"`
	KeyCorrectLength bool `json:"key_correct_length"`
}

// Valid reports whether every check passed.
func (r Report) Valid() bool {
	return r.KeyIsSet && r.KeyIsValidHex && r.KeyCorrectLength
}

// Inspect builds a Report for raw.
func Inspect(raw string) Report {
	raw = strings.TrimSpace(raw)
	r := Report{KeyIsSet: raw != "", KeyLength: len(raw)}
	if !r.KeyIsSet {
		return r
	}
	r.KeyCorrectLength = len(raw) == KeyHexLen
	_, err := hex.DecodeString(raw)
	r.KeyIsValidHex = err == nil
	return r
}

// Instructions is the setup text printed alongside a generated key.
func Instructions(key Key) string {
	return "Set the encryption key before running any token command:\n" +
		"  export " + EnvKey + "=" + key.Hex() + "\n" +
		"Keep this key secret. Tokens encrypted with it cannot be read with any other key."
}
