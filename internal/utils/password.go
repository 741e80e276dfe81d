package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonAlgorithm = "argon2id"
	saltLength     = 16
	keyLength      = 32
)

// ErrMalformedHash is returned by Verify when the stored hash cannot be
// parsed.  A plain mismatch returns (false, nil) instead.
var ErrMalformedHash = errors.New("malformed password hash")

// Hasher derives and checks argon2id password hashes with fixed cost
// parameters.  Parameters are embedded in the PHC-encoded output so that
// old hashes remain verifiable after a cost change.
type Hasher struct {
	Memory  uint32 // memory cost in KiB
	Time    uint32 // iteration count
	Threads uint8  // parallelism degree
}

// NewHasher returns a Hasher with the given costs, clamping anything below
// sane minimums.
func NewHasher(memoryKB, timeCost uint32, threads uint8) *Hasher {
	if memoryKB < 8*1024 {
		memoryKB = 8 * 1024
	}
	if timeCost < 1 {
		timeCost = 1
	}
	if threads < 1 {
		threads = 1
	}
	return &Hasher{Memory: memoryKB, Time: timeCost, Threads: threads}
}

// Hash derives a salted argon2id hash and returns it PHC-encoded:
// $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, keyLength)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonAlgorithm, argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify recomputes the hash under the stored parameters and compares in
// constant time.  It returns an error only for malformed input; a wrong
// password is (false, nil).
func (h *Hasher) Verify(encoded, password string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// RehashIfNeeded returns a fresh hash under current parameters when the
// stored hash was produced with weaker ones.  The boolean reports whether a
// rehash happened.  Any internal failure returns ("", false): callers treat
// rehashing as best-effort and must not fail the surrounding operation.
func (h *Hasher) RehashIfNeeded(encoded, password string) (string, bool) {
	p, err := parsePHC(encoded)
	if err != nil {
		return "", false
	}
	if p.memory >= h.Memory && p.time >= h.Time && p.threads >= h.Threads {
		return "", false
	}
	rehashed, err := h.Hash(password)
	if err != nil {
		return "", false
	}
	return rehashed, true
}

type phcParts struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parsePHC(encoded string) (*phcParts, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argonAlgorithm {
		return nil, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, ErrMalformedHash
	}
	p := &phcParts{}
	for _, kv := range strings.Split(parts[3], ",") {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			return nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(pair[1], 10, 32)
		if err != nil {
			return nil, ErrMalformedHash
		}
		switch pair[0] {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			p.threads = uint8(n)
		default:
			return nil, ErrMalformedHash
		}
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return nil, ErrMalformedHash
	}
	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return nil, ErrMalformedHash
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, ErrMalformedHash
	}
	return p, nil
}
