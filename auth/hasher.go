package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext passwords into storable bcrypt hashes and
// verifies attempts against them. A process-wide pepper is appended to the
// password before hashing; it lives in server configuration, not in the
// database, so a database-only breach is not enough to offline-crack
// hashes. bcrypt generates its own per-record salt, which is embedded in
// the encoded hash string, so no salt column exists. One scheme, applied
// uniformly to every stored hash.
//
// bcrypt caps its input at 72 bytes, so the peppered password is digested
// with SHA-256 first. The 64-byte hex digest always fits, whatever the
// password and pepper lengths.
type Hasher struct {
	pepper string
	cost   int
}

// NewHasher creates a Hasher. cost 0 selects bcrypt.DefaultCost; the knob
// exists so the work factor can be tuned to the deployment's latency
// budget.
func NewHasher(pepper string, cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{pepper: pepper, cost: cost}
}

// preimage digests password+pepper into the fixed-length bcrypt input.
func (h *Hasher) preimage(password string) []byte {
	sum := sha256.Sum256([]byte(password + h.pepper))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}

// Hash produces an encoded bcrypt hash of the peppered password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(h.preimage(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash. Malformed or
// corrupt stored hashes verify as false; they never surface as an error to
// the caller.
func (h *Hasher) Verify(password, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), h.preimage(password))
	return err == nil
}
