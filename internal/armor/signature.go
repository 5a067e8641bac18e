package armor

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/keychain"
	"github.com/cryptkit/vault/internal/pqsign"
)

// signatureContext binds an ML-DSA-65 signature to this specific use, so a
// signature produced for some other purpose can never be replayed as an
// armor-frame signature.
var signatureContext = []byte("cryptkit-armor-frame-v1")

// SealWithSignature behaves like Seal but additionally signs the encoded
// frame with signer and appends the detached signature (sig_len(u16 LE) ||
// signature) after it, supplementing the AEAD tag with a PQ integrity
// layer a holder of only the KEM public key cannot forge.
func SealWithSignature(ctx context.Context, kc keychain.Keychain, dbPath, keyID string, signer *pqsign.KeyPair) error {
	if err := Seal(ctx, kc, dbPath, keyID); err != nil {
		return err
	}
	armorPath := ArmorPath(dbPath)

	base, err := os.ReadFile(armorPath)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "read armored frame to sign", err)
	}
	sig, err := signer.SignDetached(base, signatureContext)
	if err != nil {
		return err
	}

	sigLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(sigLen, uint16(len(sig)))
	combined := append(append(base, sigLen...), sig...)

	return writeAtomic(armorPath, combined, 0o600)
}

// VerifySignature checks the trailing detached signature appended by
// SealWithSignature against publicKey, without touching the encrypted
// payload. Returns AuthenticationFailed if the file carries no recognized
// signature trailer or the signature does not verify.
func VerifySignature(armorPath string, scheme pqsign.Scheme, publicKey []byte) error {
	data, err := os.ReadFile(armorPath)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "read armored file to verify signature", err)
	}
	_, frameLen, err := decodeFrameLen(data)
	if err != nil {
		return err
	}
	if len(data) < frameLen+2 {
		return crypterrors.New(crypterrors.AuthenticationFailed, "armored file carries no signature trailer")
	}
	base := data[:frameLen]
	sigLen := int(binary.LittleEndian.Uint16(data[frameLen : frameLen+2]))
	if len(data) < frameLen+2+sigLen {
		return crypterrors.New(crypterrors.InvalidInput, "armored file signature trailer truncated")
	}
	sig := data[frameLen+2 : frameLen+2+sigLen]
	return pqsign.VerifyDetached(scheme, publicKey, base, signatureContext, sig)
}
