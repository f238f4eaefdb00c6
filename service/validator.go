package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/layer-3/garuda/adapters/blocks"
	"github.com/layer-3/garuda/adapters/impersonation"
	"github.com/layer-3/garuda/adapters/verifier"
	"github.com/layer-3/garuda/core"
	"github.com/layer-3/garuda/ports"
	"github.com/rs/zerolog"
)

// legacyExtraInfoSuffix is appended to the signed message when retrying
// verification for tokens issued before extra info existed.
const legacyExtraInfoSuffix = "{}"

// Config carries the optional collaborators of a validator. Every nil field
// gets a default: the ledger-API block source, the bech32/Ed25519 verifier,
// and an impersonation approver derived from the core config. Cache and
// Events stay nil unless provided.
type Config struct {
	// Blocks overrides the ledger-API block source
	Blocks ports.BlockSource

	// Verifier overrides the default Ed25519 signature verifier
	Verifier ports.SignatureVerifier

	// Cache memoizes block timestamps and impersonation decisions; the
	// validator works without one
	Cache ports.Cache

	// OriginApprover is consulted for origins the allow-list rejects
	OriginApprover ports.OriginApprover

	// ImpersonationApprover decides impersonation claims; it takes
	// precedence over the HTTP approver built from the core config
	ImpersonationApprover ports.ImpersonationApprover

	// Events receives a validation event for every accepted token
	Events ports.EventPublisher

	// Logger for pipeline diagnostics; silent when nil
	Logger *zerolog.Logger
}

// Validator runs the token validation pipeline: decode, ttl bound, origin,
// block anchor, expiry, signature, impersonation. Stages run strictly in
// order and the first failure wins; the validator never retries anything
// itself.
type Validator struct {
	cfg           core.Config
	origins       *originMatcher
	blocks        ports.BlockSource
	verifier      ports.SignatureVerifier
	impersonation ports.ImpersonationApprover
	events        ports.EventPublisher
	log           zerolog.Logger
}

// NewValidator creates a validator for the given configuration. The
// configuration is checked once here; a validator is never produced from a
// bad config.
func NewValidator(cfg core.Config, deps Config) (*Validator, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = core.DefaultAPIURL
	}
	if cfg.AddressHRP == "" {
		cfg.AddressHRP = core.DefaultAddressHRP
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wildcards, err := core.ParseWildcardOrigins(cfg.AcceptedOrigins)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	blockSource := deps.Blocks
	if blockSource == nil {
		blockSource = blocks.NewAPISource(blocks.Config{
			APIURL:              cfg.APIURL,
			MaxExpiry:           time.Duration(cfg.MaxExpirySeconds) * time.Second,
			ExtraRequestHeaders: cfg.ExtraRequestHeaders,
			Cache:               deps.Cache,
		})
	}

	signatures := deps.Verifier
	if signatures == nil {
		signatures = verifier.NewEd25519(cfg.AddressHRP)
	}

	approver := deps.ImpersonationApprover
	if approver == nil && cfg.ValidateImpersonateURL != "" {
		approver = impersonation.NewHTTPApprover(impersonation.Config{
			BaseURL: cfg.ValidateImpersonateURL,
			Cache:   deps.Cache,
		})
	}

	return &Validator{
		cfg:           cfg,
		origins:       newOriginMatcher(cfg.AcceptedOrigins, wildcards, deps.OriginApprover),
		blocks:        blockSource,
		verifier:      signatures,
		impersonation: approver,
		events:        deps.Events,
		log:           logger,
	}, nil
}

// Decode parses an access token without validating it.
func (v *Validator) Decode(accessToken string) (*core.Token, error) {
	return core.DecodeToken(accessToken)
}

// Validate runs the full validation pipeline on an access token. On success
// the returned result carries the effective address (the impersonation
// target when one was approved) and the original signer.
func (v *Validator) Validate(ctx context.Context, accessToken string) (*core.ValidationResult, error) {
	result, err := v.validate(ctx, accessToken)
	if err != nil {
		v.log.Debug().Err(err).Msg("token validation failed")
		return nil, err
	}

	if v.events != nil {
		// The token is already accepted; a lost event must not undo that.
		if err := v.events.PublishValidation(ctx, result); err != nil {
			v.log.Warn().Err(err).Msg("failed to publish validation event")
		}
	}

	return result, nil
}

func (v *Validator) validate(ctx context.Context, accessToken string) (*core.ValidationResult, error) {
	token, err := core.DecodeToken(accessToken)
	if err != nil {
		return nil, err
	}

	if token.TTL > v.cfg.MaxExpirySeconds {
		return nil, fmt.Errorf("%w: ttl %d exceeds maximum %d", core.ErrInvalidTokenTTL, token.TTL, v.cfg.MaxExpirySeconds)
	}

	accepted, err := v.origins.Accept(ctx, token.Origin)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, fmt.Errorf("%w: %s", core.ErrOriginNotAccepted, token.Origin)
	}

	issued, found, err := v.blocks.BlockTimestamp(ctx, token.BlockHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidBlockHash, token.BlockHash)
	}

	current, err := v.blocks.CurrentBlockTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	// The upstream expiry convention: the ttl is scaled by 1000 while both
	// block timestamps stay as the ledger reports them.
	expires := issued + token.TTL*1000
	if expires < current {
		return nil, fmt.Errorf("%w: expired at %d, current block timestamp %d", core.ErrTokenExpired, expires, current)
	}

	if err := v.checkSignature(ctx, token); err != nil {
		return nil, err
	}

	address := token.Address
	if target := impersonationTarget(token.ExtraInfo); target != "" {
		if err := v.resolveImpersonation(ctx, token.Address, target); err != nil {
			return nil, err
		}
		address = target
	}

	return &core.ValidationResult{
		Issued:        issued,
		Expires:       expires,
		Origin:        token.Origin,
		Address:       address,
		SignerAddress: token.Address,
		ExtraInfo:     token.ExtraInfo,
	}, nil
}

// checkSignature verifies the token signature over address + body, falling
// back once to the legacy message shape used before extra info existed.
func (v *Validator) checkSignature(ctx context.Context, token *core.Token) error {
	signature, err := hex.DecodeString(token.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex: %v", core.ErrInvalidSignature, err)
	}

	message := token.Address + token.Body

	valid, err := v.verifier.Verify(ctx, token.Address, message, signature)
	if err != nil {
		return err
	}

	if !valid && !v.cfg.SkipLegacyValidation {
		valid, err = v.verifier.Verify(ctx, token.Address, message+legacyExtraInfoSuffix, signature)
		if err != nil {
			return err
		}
	}

	if !valid {
		return fmt.Errorf("%w: signer %s", core.ErrInvalidSignature, token.Address)
	}
	return nil
}

// resolveImpersonation authorizes the signer to act as target. With no
// approver configured at all, a present target is always rejected.
func (v *Validator) resolveImpersonation(ctx context.Context, signer string, target string) error {
	if v.impersonation == nil {
		return fmt.Errorf("%w: no impersonation approver configured", core.ErrInvalidImpersonate)
	}

	approved, err := v.impersonation.ApproveImpersonation(ctx, signer, target)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("%w: %s may not act as %s", core.ErrInvalidImpersonate, signer, target)
	}
	return nil
}

// impersonationTarget extracts the candidate impersonation address from the
// token claims; multisig takes precedence. Only string claims count.
func impersonationTarget(extraInfo map[string]any) string {
	for _, claim := range []string{"multisig", "impersonate"} {
		if target, ok := extraInfo[claim].(string); ok && target != "" {
			return target
		}
	}
	return ""
}
