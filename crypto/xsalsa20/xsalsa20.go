// Package xsalsa20 wraps golang.org/x/crypto/salsa20 for the bulk
// stream cipher spec.md §1 fixes, replacing the teacher's
// crypto/aes256 package (OTRv4 uses XSalsa20, not AES-CBC).
package xsalsa20

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/salsa20"
)

// NonceSize is the XSalsa20 extended nonce length in bytes.
const NonceSize = 24

// KeySize is the XSalsa20 key length in bytes.
const KeySize = 32

var ErrKeySize = errors.New("xsalsa20: key must be 32 bytes")

// NewNonce draws a fresh random 24-byte nonce from the CSPRNG.
func NewNonce() ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// XORKeyStream encrypts or decrypts plaintext/ciphertext in place
// semantics (returns a new slice), XSalsa20 being a symmetric stream
// cipher: the same call encrypts and decrypts.
func XORKeyStream(key [KeySize]byte, nonce [NonceSize]byte, data []byte) []byte {
	out := make([]byte, len(data))
	salsa20.XORKeyStream(out, data, nonce[:], &key)
	return out
}
