// Package crypto seals frames exchanged over UDP links between switches
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the length of a link key in bytes
	KeySize = 32
	// NonceSize is the length of the random nonce prefixed to every sealed frame
	NonceSize = 24
	// Overhead is the number of bytes Seal adds to a frame
	Overhead = NonceSize + secretbox.Overhead
)

// ErrOpenFailed is returned when a sealed frame fails authentication
var ErrOpenFailed = errors.New("stella: sealed frame failed authentication")

// LinkKey is a pre-shared XSalsa20-Poly1305 key shared by both ends of a link
type LinkKey [KeySize]byte

// GenerateLinkKey generates a random link key
func GenerateLinkKey() (*LinkKey, error) {
	var key LinkKey
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate link key: %w", err)
	}
	return &key, nil
}

// ParseLinkKey decodes a 64-character hexadecimal key
func ParseLinkKey(s string) (*LinkKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid link key: %w", err)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("invalid link key length: %d bytes, expected %d", len(b), KeySize)
	}
	var key LinkKey
	copy(key[:], b)
	return &key, nil
}

// String returns the hexadecimal form of the key
func (k *LinkKey) String() string {
	return hex.EncodeToString(k[:])
}

// Seal encrypts and authenticates a frame. Output is nonce || box.
func Seal(key *LinkKey, frame []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, NonceSize, NonceSize+len(frame)+secretbox.Overhead)
	copy(out, nonce[:])
	return secretbox.Seal(out, frame, &nonce, (*[KeySize]byte)(key)), nil
}

// Open verifies and decrypts a frame produced by Seal
func Open(key *LinkKey, sealed []byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, ErrOpenFailed
	}

	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])

	frame, ok := secretbox.Open(nil, sealed[NonceSize:], &nonce, (*[KeySize]byte)(key))
	if !ok {
		return nil, ErrOpenFailed
	}
	return frame, nil
}
