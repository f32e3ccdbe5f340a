// Package crypto implements token generation and device signature verification.
package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
)

const (
	// identityKeyBytes yields 128 base64url characters, matching the
	// devices' expectation of a 128-char identity key.
	identityKeyBytes = 96
	challengeBytes   = 96

	// PairingKeyLength is the length of the human-copyable pairing code.
	PairingKeyLength = 6
)

// pairingAlphabet avoids 0/O/1/I to keep the code copyable from a display.
const pairingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewIdentityKey returns a fresh 128-character URL-safe identity token.
func NewIdentityKey() (string, error) {
	b, err := RandBytes(identityKeyBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewChallenge returns a fresh 128-character URL-safe challenge nonce.
func NewChallenge() (string, error) {
	b, err := RandBytes(challengeBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewPairingKey returns a short uppercase pairing code. Uniqueness is the
// caller's concern; the code only needs enough entropy to make operator
// mix-ups unlikely.
func NewPairingKey() (string, error) {
	out := make([]byte, PairingKeyLength)
	max := big.NewInt(int64(len(pairingAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = pairingAlphabet[n.Int64()]
	}
	return string(out), nil
}

// ParseRSAPublicKey parses a PEM-encoded SubjectPublicKeyInfo RSA key.
func ParseRSAPublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return pub, nil
}

// VerifyChallengeSignature verifies a base64url RSA-PSS-SHA256 signature
// (salt length = hash length) over the raw bytes of the nonce.
func VerifyChallengeSignature(pub *rsa.PublicKey, nonce, signatureB64 string) bool {
	sig, err := base64.URLEncoding.DecodeString(signatureB64)
	if err != nil {
		// devices differ on padding; accept the unpadded form too
		sig, err = base64.RawURLEncoding.DecodeString(signatureB64)
		if err != nil {
			return false
		}
	}
	digest := sha256.Sum256([]byte(nonce))
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, opts) == nil
}
