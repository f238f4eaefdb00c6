package core

import (
	"fmt"
	"strings"
)

const (
	// DefaultAPIURL is the ledger API queried for block timestamps when no
	// other URL is configured
	DefaultAPIURL = "https://api.multiversx.com"

	// DefaultAddressHRP is the bech32 human-readable prefix of account
	// addresses
	DefaultAddressHRP = "erd"

	// MaxExpiryBound is the upper bound on MaxExpirySeconds
	MaxExpiryBound = 86_400_000
)

// wildcardProtocols are the only protocol prefixes a wildcard origin entry
// may carry in front of its '*'.
var wildcardProtocols = []string{"", "http://", "https://"}

// Config carries the construction-time settings of a validator. All fields
// are fixed for the lifetime of the validator instance.
type Config struct {
	// APIURL is the base URL of the ledger API; DefaultAPIURL when empty
	APIURL string

	// MaxExpirySeconds is the longest token lifetime the server accepts,
	// in seconds; must be positive and at most MaxExpiryBound
	MaxExpirySeconds int64

	// AcceptedOrigins is the origin allow-list; must be non-empty. Entries
	// may contain exactly one '*' preceded by "", "http://" or "https://".
	AcceptedOrigins []string

	// AddressHRP is the bech32 prefix expected on account addresses;
	// DefaultAddressHRP when empty. Threaded explicitly so validators for
	// different chains can coexist in one process.
	AddressHRP string

	// SkipLegacyValidation disables the second signature check against the
	// pre-extra-info message shape
	SkipLegacyValidation bool

	// ValidateImpersonateURL is the base URL of the impersonation-check
	// endpoint; impersonation claims are rejected when neither this nor a
	// custom approver is configured
	ValidateImpersonateURL string

	// ExtraRequestHeaders are added to every ledger API request
	ExtraRequestHeaders map[string]string
}

// WildcardOrigin is one parsed wildcard allow-list entry. An origin matches
// when it starts with Protocol and ends with Domain.
type WildcardOrigin struct {
	Protocol string
	Domain   string
}

// Validate checks the construction-time invariants. A config that fails here
// must never produce a validator instance.
func (c *Config) Validate() error {
	if c.MaxExpirySeconds <= 0 || c.MaxExpirySeconds > MaxExpiryBound {
		return fmt.Errorf("%w: max expiry seconds must be in (0, %d], got %d",
			ErrInvalidConfig, int64(MaxExpiryBound), c.MaxExpirySeconds)
	}
	if len(c.AcceptedOrigins) == 0 {
		return fmt.Errorf("%w: accepted origins must not be empty", ErrInvalidConfig)
	}
	if _, err := ParseWildcardOrigins(c.AcceptedOrigins); err != nil {
		return err
	}
	return nil
}

// ParseWildcardOrigins derives the wildcard entries from an allow-list. The
// result is fixed at construction time and reused for every origin check.
func ParseWildcardOrigins(acceptedOrigins []string) ([]WildcardOrigin, error) {
	var wildcards []WildcardOrigin
	for _, origin := range acceptedOrigins {
		if !strings.Contains(origin, "*") {
			continue
		}

		parts := strings.Split(origin, "*")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %w: %q must contain exactly one '*'",
				ErrInvalidConfig, ErrInvalidWildcardOrigin, origin)
		}
		if !isWildcardProtocol(parts[0]) {
			return nil, fmt.Errorf("%w: %w: %q has unsupported protocol prefix %q",
				ErrInvalidConfig, ErrInvalidWildcardOrigin, origin, parts[0])
		}

		wildcards = append(wildcards, WildcardOrigin{Protocol: parts[0], Domain: parts[1]})
	}
	return wildcards, nil
}

func isWildcardProtocol(prefix string) bool {
	for _, protocol := range wildcardProtocols {
		if prefix == protocol {
			return true
		}
	}
	return false
}
