// Package cryptox implements one-way, salted hashing of secrets (deletion
// secrets and the global API password).
//
// Digests are self-describing PHC strings, so a digest produced by any
// supported algorithm can be verified regardless of which algorithm the
// running server is configured to produce:
//
//	$pbkdf2-sha256$i=100000,l=32$<salt>$<hash>
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
//
// Salt and hash are unpadded standard base64.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	AlgorithmPBKDF2   = "pbkdf2"
	AlgorithmArgon2id = "argon2id"

	pbkdf2ID   = "pbkdf2-sha256"
	argon2ID   = "argon2id"
	saltLength = 16
)

// Defaults used when a hasher field is left zero.
const (
	DefaultPBKDF2Iterations = 100_000
	DefaultKeyLength        = 32
	DefaultArgon2Time       = 1
	DefaultArgon2Memory     = 64 * 1024
	DefaultArgon2Threads    = 4
)

var ErrMalformedDigest = errors.New("malformed digest")

var b64 = base64.RawStdEncoding

// Hasher hashes a secret into a self-describing digest and verifies
// candidates against such digests.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(digest, candidate string) (bool, error)
}

// NewHasher returns the hasher for the named algorithm with default
// parameters.
func NewHasher(algorithm string) (Hasher, error) {
	switch strings.ToLower(algorithm) {
	case "", AlgorithmPBKDF2:
		return &PBKDF2Hasher{}, nil
	case AlgorithmArgon2id:
		return &Argon2Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}

// PBKDF2Hasher produces PBKDF2-HMAC-SHA256 digests.
type PBKDF2Hasher struct {
	Iterations int
	KeyLength  int
}

func (h *PBKDF2Hasher) Hash(secret string) (string, error) {
	iter, keyLen := h.Iterations, h.KeyLength
	if iter <= 0 {
		iter = DefaultPBKDF2Iterations
	}
	if keyLen <= 0 {
		keyLen = DefaultKeyLength
	}

	salt, err := newSalt()
	if err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(secret), salt, iter, keyLen, sha256.New)

	return fmt.Sprintf("$%s$i=%d,l=%d$%s$%s", pbkdf2ID, iter, keyLen, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (h *PBKDF2Hasher) Verify(digest, candidate string) (bool, error) {
	return Verify(digest, candidate)
}

// Argon2Hasher produces Argon2id digests.
type Argon2Hasher struct {
	Time      uint32
	Memory    uint32
	Threads   uint8
	KeyLength uint32
}

func (h *Argon2Hasher) Hash(secret string) (string, error) {
	t, m, p, keyLen := h.Time, h.Memory, h.Threads, h.KeyLength
	if t == 0 {
		t = DefaultArgon2Time
	}
	if m == 0 {
		m = DefaultArgon2Memory
	}
	if p == 0 {
		p = DefaultArgon2Threads
	}
	if keyLen == 0 {
		keyLen = DefaultKeyLength
	}

	salt, err := newSalt()
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, t, m, p, keyLen)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2ID, argon2.Version, m, t, p, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (h *Argon2Hasher) Verify(digest, candidate string) (bool, error) {
	return Verify(digest, candidate)
}

// Verify reports whether candidate matches the secret digest was made from.
// A digest that cannot be parsed yields ErrMalformedDigest; a mismatch is
// (false, nil).
func Verify(digest, candidate string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) < 2 || parts[0] != "" {
		return false, ErrMalformedDigest
	}

	switch parts[1] {
	case pbkdf2ID:
		return verifyPBKDF2(parts, candidate)
	case argon2ID:
		return verifyArgon2(parts, candidate)
	default:
		return false, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedDigest, parts[1])
	}
}

func verifyPBKDF2(parts []string, candidate string) (bool, error) {
	if len(parts) != 5 {
		return false, ErrMalformedDigest
	}

	params, err := parseParams(parts[2], "i", "l")
	if err != nil {
		return false, err
	}

	salt, want, err := decodeSaltAndHash(parts[3], parts[4])
	if err != nil {
		return false, err
	}
	if params["l"] != len(want) || params["i"] <= 0 {
		return false, ErrMalformedDigest
	}

	got := pbkdf2.Key([]byte(candidate), salt, params["i"], len(want), sha256.New)

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func verifyArgon2(parts []string, candidate string) (bool, error) {
	if len(parts) != 6 {
		return false, ErrMalformedDigest
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return false, fmt.Errorf("%w: unsupported argon2 version", ErrMalformedDigest)
	}

	params, err := parseParams(parts[3], "m", "t", "p")
	if err != nil {
		return false, err
	}
	if params["m"] <= 0 || params["t"] <= 0 || params["p"] <= 0 || params["p"] > 255 {
		return false, ErrMalformedDigest
	}

	salt, want, err := decodeSaltAndHash(parts[4], parts[5])
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(candidate), salt, uint32(params["t"]), uint32(params["m"]), uint8(params["p"]), uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// parseParams parses "k=v,k=v" and requires every key in required.
func parseParams(s string, required ...string) (map[string]int, error) {
	params := make(map[string]int)
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, ErrMalformedDigest
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: param %s: %v", ErrMalformedDigest, k, err)
		}
		params[k] = n
	}

	for _, k := range required {
		if _, ok := params[k]; !ok {
			return nil, fmt.Errorf("%w: missing param %s", ErrMalformedDigest, k)
		}
	}

	return params, nil
}

func decodeSaltAndHash(saltPart, hashPart string) ([]byte, []byte, error) {
	salt, err := b64.DecodeString(saltPart)
	if err != nil || len(salt) == 0 {
		return nil, nil, fmt.Errorf("%w: salt", ErrMalformedDigest)
	}
	hash, err := b64.DecodeString(hashPart)
	if err != nil || len(hash) == 0 {
		return nil, nil, fmt.Errorf("%w: hash", ErrMalformedDigest)
	}
	return salt, hash, nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return salt, nil
}
