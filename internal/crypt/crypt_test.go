package crypt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func mustKey(t *testing.T, s string) Key {
	t.Helper()
	k, err := ParseKey(s)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	return k
}

func TestRoundTrip(t *testing.T) {
	key := mustKey(t, testKeyHex)
	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte("token-secret-0123456789"),
		bytes.Repeat([]byte{0xff, 0x00}, 512),
	}
	for _, p := range inputs {
		blob := Encrypt(p, key)
		if len(blob.Nonce) != NonceSize {
			t.Fatalf("nonce size %d", len(blob.Nonce))
		}
		got, err := Decrypt(blob, key)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("round trip mismatch for %d bytes", len(p))
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := GenerateKey()
	a := Encrypt([]byte("same"), key)
	b := Encrypt([]byte("same"), key)
	if bytes.Equal(a.Nonce, b.Nonce) {
		t.Fatalf("nonce reused")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Fatalf("ciphertext identical across calls")
	}
}

func TestTamperEveryBit(t *testing.T) {
	key := mustKey(t, testKeyHex)
	blob := Encrypt([]byte("secret"), key)
	for i := range blob.Ciphertext {
		for bit := 0; bit < 8; bit++ {
			ct := bytes.Clone(blob.Ciphertext)
			ct[i] ^= 1 << bit
			_, err := Decrypt(EncryptedBlob{Nonce: blob.Nonce, Ciphertext: ct}, key)
			if !errors.Is(err, ErrDecryptionFailed) {
				t.Fatalf("byte %d bit %d: expected ErrDecryptionFailed, got %v", i, bit, err)
			}
		}
	}
	nonce := bytes.Clone(blob.Nonce)
	nonce[0] ^= 0x01
	if _, err := Decrypt(EncryptedBlob{Nonce: nonce, Ciphertext: blob.Ciphertext}, key); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("tampered nonce: expected ErrDecryptionFailed, got %v", err)
	}
}

func TestWrongKey(t *testing.T) {
	for i := 0; i < 8; i++ {
		k1, k2 := GenerateKey(), GenerateKey()
		if k1 == k2 {
			continue
		}
		_, err := Decrypt(Encrypt([]byte("payload"), k1), k2)
		if !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	}
}

func TestDecryptMalformed(t *testing.T) {
	key := GenerateKey()
	cases := []EncryptedBlob{
		{},
		{Nonce: make([]byte, 8), Ciphertext: make([]byte, 32)},
		{Nonce: make([]byte, NonceSize), Ciphertext: make([]byte, 4)},
	}
	for i, b := range cases {
		if _, err := Decrypt(b, key); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("case %d: expected ErrDecryptionFailed, got %v", i, err)
		}
	}
}

func TestGenerateKeyFormat(t *testing.T) {
	k := GenerateKey()
	h := k.Hex()
	assert.Len(t, h, KeyHexLen)
	assert.Equal(t, strings.ToLower(h), h)
	parsed, err := ParseKey(h)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
	assert.False(t, k.IsZero())
}

func TestKeyRedacted(t *testing.T) {
	k := mustKey(t, testKeyHex)
	out := fmt.Sprintf("%v %s", k, k)
	assert.NotContains(t, out, "0a0b0c")
	assert.Equal(t, "[redacted]", k.LogValue().String())
}

func TestValidateEncryptionAtStartup(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "absent", raw: "", want: ErrKeyMissing},
		{name: "whitespace", raw: "   ", want: ErrKeyMissing},
		{name: "short", raw: testKeyHex[:62], want: ErrKeyInvalidFormat},
		{name: "long", raw: testKeyHex + "00", want: ErrKeyInvalidFormat},
		{name: "non_hex", raw: "zz" + testKeyHex[2:], want: ErrKeyInvalidFormat},
		{name: "valid", raw: testKeyHex},
		{name: "valid_upper", raw: strings.ToUpper(testKeyHex)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := ValidateEncryptionAtStartup(tc.raw)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				if !errors.Is(err, ErrCrypto) {
					t.Fatalf("expected error to wrap ErrCrypto")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key.IsZero() {
				t.Fatalf("expected non-zero key")
			}
		})
	}
}

func TestInspect(t *testing.T) {
	assert.Equal(t, Report{}, Inspect(""))
	assert.False(t, Inspect("").Valid())

	r := Inspect("xyz")
	assert.True(t, r.KeyIsSet)
	assert.Equal(t, 3, r.KeyLength)
	assert.False(t, r.KeyIsValidHex)
	assert.False(t, r.KeyCorrectLength)

	r = Inspect(testKeyHex[:10])
	assert.True(t, r.KeyIsValidHex)
	assert.False(t, r.KeyCorrectLength)

	r = Inspect(testKeyHex)
	assert.True(t, r.Valid())
	assert.Equal(t, KeyHexLen, r.KeyLength)
}

func TestInstructionsContainKey(t *testing.T) {
	k := GenerateKey()
	assert.Contains(t, Instructions(k), EnvKey+"="+k.Hex())
}

func TestKeyringSource(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	_, err := NewKeyringSource("")
	require.Error(t, err)

	src, err := NewKeyringSource("tester")
	require.NoError(t, err)

	_, err = src.Load(ctx)
	require.ErrorIs(t, err, ErrKeyMissing)

	k := GenerateKey()
	require.NoError(t, src.Save(ctx, k))
	raw, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, k.Hex(), raw)

	got, err := ResolveKey(ctx, "", "tester")
	require.NoError(t, err)
	assert.Equal(t, k.Hex(), got)

	got, err = ResolveKey(ctx, testKeyHex, "tester")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got, "explicit key wins over keyring")

	got, err = ResolveKey(ctx, "", "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}
