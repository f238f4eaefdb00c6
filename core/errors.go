package core

import "errors"

var (
	// ErrInvalidConfig is returned when the validator is constructed with
	// bad arguments: a max expiry outside its allowed bounds, an empty
	// accepted-origins list, or a malformed wildcard entry.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidWildcardOrigin is returned for an accepted-origins entry
	// whose wildcard shape is malformed (more than one '*', or a protocol
	// prefix other than "", "http://" or "https://").
	ErrInvalidWildcardOrigin = errors.New("invalid wildcard origin")

	// ErrInvalidToken is returned when a token is structurally malformed
	// at any decode step
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidTokenTTL is returned when a token requests a lifetime
	// longer than the configured maximum
	ErrInvalidTokenTTL = errors.New("invalid token ttl")

	// ErrOriginNotAccepted is returned when the token origin is not in the
	// allow-list, matches no wildcard, and no custom approver accepted it
	ErrOriginNotAccepted = errors.New("origin not accepted")

	// ErrInvalidBlockHash is returned when the referenced block hash does
	// not exist on the ledger, so the token cannot be time-anchored
	ErrInvalidBlockHash = errors.New("invalid block hash")

	// ErrTokenExpired is returned when the token expiry is before the
	// current block timestamp
	ErrTokenExpired = errors.New("token has expired")

	// ErrInvalidSignature is returned when signature verification failed
	// on both the current and the legacy message shapes
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidImpersonate is returned when an impersonation target was
	// present but could not be authorized
	ErrInvalidImpersonate = errors.New("invalid impersonation")

	// ErrInvalidAddress is returned when an account address cannot be
	// decoded into a public key
	ErrInvalidAddress = errors.New("invalid address")
)
