// Package shared provides utility functions for generating random
// identifiers and wiping sensitive memory.
package shared

import (
	"math/rand/v2"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TextGenerator produces random strings of a requested length. It is the
// source of both public file stems and deletion secrets.
type TextGenerator interface {
	RandomText(length int) string
}

// AlphanumericGenerator is the production TextGenerator.
type AlphanumericGenerator struct{}

// RandomText implements TextGenerator.
func (AlphanumericGenerator) RandomText(length int) string {
	return RandomText(length)
}

// RandomText returns exactly length characters drawn uniformly from the 62
// alphanumeric symbols.
//
// Uses the top-level math/rand/v2 source, which is safe for concurrent use
// and needs no seeding. Not a cryptographic source.
//
// A non-positive length yields an empty string.
func RandomText(length int) string {
	if length <= 0 {
		return ""
	}

	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}

	return string(b)
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to drop a plaintext password read from the terminal once it is hashed.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
