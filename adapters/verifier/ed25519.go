package verifier

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/garuda/core"
)

// signedMessagePrefix is prepended, together with the decimal byte length of
// the message, before hashing. 0x17 is the length of the prefix text itself.
const signedMessagePrefix = "\x17Elrond Signed Message:\n"

// pkixPrefix is the DER SubjectPublicKeyInfo header for the Ed25519 OID
// (1.3.101.112); appending the raw 32-byte key yields a complete PKIX
// encoding.
var pkixPrefix = []byte{0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00}

// Ed25519 is the default signature verifier. Account addresses are bech32
// encodings of Ed25519 public keys; the signature covers the keccak-256
// digest of the canonicalized message.
type Ed25519 struct {
	hrp string
}

// NewEd25519 creates a verifier for addresses carrying the given bech32
// human-readable prefix.
func NewEd25519(hrp string) *Ed25519 {
	if hrp == "" {
		hrp = core.DefaultAddressHRP
	}
	return &Ed25519{hrp: hrp}
}

// Verify reports whether signature is a valid account signature over message.
// A wrong signature is a false verdict, not an error; errors are reserved for
// addresses that do not decode into a public key.
func (v *Ed25519) Verify(ctx context.Context, address string, message string, signature []byte) (bool, error) {
	publicKey, err := v.publicKeyFromAddress(address)
	if err != nil {
		return false, err
	}

	digest := crypto.Keccak256([]byte(signedMessagePrefix + strconv.Itoa(len(message)) + message))

	return ed25519.Verify(publicKey, digest, signature), nil
}

// publicKeyFromAddress decodes a bech32 account address into its Ed25519
// public key, round-tripping through the PKIX encoding to reject anything
// that is not a well-formed key.
func (v *Ed25519) publicKeyFromAddress(address string) (ed25519.PublicKey, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAddress, err)
	}
	if hrp != v.hrp {
		return nil, fmt.Errorf("%w: expected %q prefix, got %q", core.ErrInvalidAddress, v.hrp, hrp)
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAddress, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", core.ErrInvalidAddress, ed25519.PublicKeySize, len(raw))
	}

	pkix := make([]byte, 0, len(pkixPrefix)+len(raw))
	pkix = append(pkix, pkixPrefix...)
	pkix = append(pkix, raw...)

	parsed, err := x509.ParsePKIXPublicKey(pkix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidAddress, err)
	}

	publicKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ed25519 public key", core.ErrInvalidAddress)
	}
	return publicKey, nil
}
