// Package credential issues and verifies the one-time check-in secret
// attached to every order.  Only the SHA-256 hash of the secret is
// persisted on the order row; the plaintext is handed to the delivery
// outbox exactly once and wiped after a confirmed send.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	qrcode "github.com/skip2/go-qrcode"
)

// plaintextBytes is the entropy of an issued credential. 32 bytes
// (256 bits) comfortably clears the 128-bit floor.
const plaintextBytes = 32

// Credential pairs the raw secret with its storable hash.  The
// Plaintext must never be persisted outside the delivery outbox row.
type Credential struct {
	Plaintext string // hex-encoded random secret, returned to the buyer once
	Hash      string // hex-encoded SHA-256 of Plaintext, stored on the order
}

// Issue generates a fresh credential from cryptographically secure
// random bytes.
func Issue() (Credential, error) {
	buf := make([]byte, plaintextBytes)
	if _, err := rand.Read(buf); err != nil {
		return Credential{}, err
	}
	plaintext := hex.EncodeToString(buf)
	return Credential{Plaintext: plaintext, Hash: HashPlaintext(plaintext)}, nil
}

// HashPlaintext returns the hex SHA-256 digest of a presented
// credential.  Check-in resolves orders by comparing this against the
// stored hash, so wiping the plaintext after delivery does not affect
// later check-ins.
func HashPlaintext(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// QRPNG renders the plaintext as a QR code PNG for embedding in the
// ticket email and PDF.
func QRPNG(plaintext string, size int) ([]byte, error) {
	return qrcode.Encode(plaintext, qrcode.Medium, size)
}
