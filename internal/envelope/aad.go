package envelope

import "crypto/sha256"

// digestAAD returns a SHA-256 digest of aad for storage in an Envelope's
// AADDigest field, letting a caller confirm which AAD a ciphertext was
// bound to without re-transmitting the AAD itself.
func digestAAD(aad []byte) []byte {
	sum := sha256.Sum256(aad)
	return sum[:]
}
