package ports

import "context"

// SignatureVerifier checks a token signature against the account that claims
// to have produced it. Implementations return the verdict as a boolean; an
// error means the input was malformed, not that the signature was wrong.
type SignatureVerifier interface {
	Verify(ctx context.Context, address string, message string, signature []byte) (bool, error)
}
