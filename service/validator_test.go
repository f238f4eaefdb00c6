package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/garuda/core"
	"github.com/layer-3/garuda/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrigin    = "https://dapp.example.com"
	testBlockHash = "b3d07565293fd5684c97d2b96eb862d124fd698678f3f95b2515ed07178a27b4"

	blockTimestamp   = int64(1_700_000_000)
	currentTimestamp = blockTimestamp + 1800
)

func encodeSegment(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// buildToken assembles a syntactically valid token. The signature segment is
// arbitrary hex; tests that care about verification use a stub verifier or
// sign for real.
func buildToken(t *testing.T, address, origin string, ttl int64, extraInfo map[string]any) string {
	t.Helper()
	return buildSignedToken(t, address, origin, ttl, extraInfo, func(message string) []byte {
		return []byte{0x0f, 0x6e}
	})
}

func buildSignedToken(t *testing.T, address, origin string, ttl int64, extraInfo map[string]any, sign func(message string) []byte) string {
	t.Helper()

	extraSegment := "e30"
	if len(extraInfo) > 0 {
		raw, err := json.Marshal(extraInfo)
		require.NoError(t, err)
		extraSegment = encodeSegment(string(raw))
	}

	body := strings.Join([]string{
		encodeSegment(origin),
		testBlockHash,
		strconv.FormatInt(ttl, 10),
		extraSegment,
	}, ".")

	signature := hex.EncodeToString(sign(address + body))

	return encodeSegment(address) + "." + encodeSegment(body) + "." + signature
}

type stubBlocks struct {
	current    int64
	currentErr error
	timestamps map[string]int64
	fetchErr   error
}

func (s *stubBlocks) CurrentBlockTimestamp(ctx context.Context) (int64, error) {
	return s.current, s.currentErr
}

func (s *stubBlocks) BlockTimestamp(ctx context.Context, hash string) (int64, bool, error) {
	if s.fetchErr != nil {
		return 0, false, s.fetchErr
	}
	timestamp, found := s.timestamps[hash]
	return timestamp, found, nil
}

type stubVerifier struct {
	messages []string
	verdict  func(message string) bool
	err      error
}

func (s *stubVerifier) Verify(ctx context.Context, address string, message string, signature []byte) (bool, error) {
	s.messages = append(s.messages, message)
	if s.err != nil {
		return false, s.err
	}
	if s.verdict == nil {
		return true, nil
	}
	return s.verdict(message), nil
}

type stubEvents struct {
	published []*core.ValidationResult
	err       error
}

func (s *stubEvents) PublishValidation(ctx context.Context, result *core.ValidationResult) error {
	s.published = append(s.published, result)
	return s.err
}

func anchoredBlocks() *stubBlocks {
	return &stubBlocks{
		current:    currentTimestamp,
		timestamps: map[string]int64{testBlockHash: blockTimestamp},
	}
}

func testConfig() core.Config {
	return core.Config{
		MaxExpirySeconds: 86_400,
		AcceptedOrigins:  []string{testOrigin},
	}
}

func newTestValidator(t *testing.T, cfg core.Config, deps Config) *Validator {
	t.Helper()

	if deps.Blocks == nil {
		deps.Blocks = anchoredBlocks()
	}
	if deps.Verifier == nil {
		deps.Verifier = &stubVerifier{}
	}

	v, err := NewValidator(cfg, deps)
	require.NoError(t, err)
	return v
}

func TestNewValidatorRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  core.Config
	}{
		{"zero max expiry", core.Config{AcceptedOrigins: []string{testOrigin}}},
		{"empty origins", core.Config{MaxExpirySeconds: 86_400}},
		{"malformed wildcard", core.Config{MaxExpirySeconds: 86_400, AcceptedOrigins: []string{"a*b*c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator(tt.cfg, Config{})
			require.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestValidate(t *testing.T) {
	signer := "erd1signer"
	v := newTestValidator(t, testConfig(), Config{})

	result, err := v.Validate(context.Background(), buildToken(t, signer, testOrigin, 3600, nil))
	require.NoError(t, err)

	assert.Equal(t, blockTimestamp, result.Issued)
	assert.Equal(t, blockTimestamp+3600*1000, result.Expires)
	assert.Equal(t, testOrigin, result.Origin)
	assert.Equal(t, signer, result.Address)
	assert.Equal(t, signer, result.SignerAddress)
	assert.Nil(t, result.ExtraInfo)
}

func TestValidateEndToEnd(t *testing.T) {
	// Real crypto end to end: a generated Ed25519 account signs the token
	// and the default verifier accepts it.
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	converted, err := bech32.ConvertBits(publicKey, 8, 5, true)
	require.NoError(t, err)
	address, err := bech32.Encode("erd", converted)
	require.NoError(t, err)

	token := buildSignedToken(t, address, testOrigin, 3600, nil, func(message string) []byte {
		digest := crypto.Keccak256([]byte("\x17Elrond Signed Message:\n" + strconv.Itoa(len(message)) + message))
		return ed25519.Sign(privateKey, digest)
	})

	v, err := NewValidator(testConfig(), Config{Blocks: anchoredBlocks()})
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, address, result.Address)
	assert.Equal(t, address, result.SignerAddress)
}

func TestValidateInvalidToken(t *testing.T) {
	v := newTestValidator(t, testConfig(), Config{})

	_, err := v.Validate(context.Background(), "not.a-token")
	require.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestValidateTTLBound(t *testing.T) {
	v := newTestValidator(t, testConfig(), Config{})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 86_401, nil))
	require.ErrorIs(t, err, core.ErrInvalidTokenTTL)
}

func TestValidateOriginNotAccepted(t *testing.T) {
	v := newTestValidator(t, testConfig(), Config{})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", "https://evil.example.org", 3600, nil))
	require.ErrorIs(t, err, core.ErrOriginNotAccepted)
}

func TestValidateUnknownBlockHash(t *testing.T) {
	v := newTestValidator(t, testConfig(), Config{
		Blocks: &stubBlocks{current: currentTimestamp},
	})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.ErrorIs(t, err, core.ErrInvalidBlockHash)
}

func TestValidateBlockSourceErrorPropagates(t *testing.T) {
	transportErr := fmt.Errorf("api unreachable")
	v := newTestValidator(t, testConfig(), Config{
		Blocks: &stubBlocks{fetchErr: transportErr},
	})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.ErrorIs(t, err, transportErr)
	require.NotErrorIs(t, err, core.ErrInvalidBlockHash)
}

func TestValidateExpired(t *testing.T) {
	blocks := anchoredBlocks()
	// One past the computed expiry.
	blocks.current = blockTimestamp + 3600*1000 + 1

	v := newTestValidator(t, testConfig(), Config{Blocks: blocks})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestValidateExpiryBoundaryIsInclusive(t *testing.T) {
	blocks := anchoredBlocks()
	blocks.current = blockTimestamp + 3600*1000

	v := newTestValidator(t, testConfig(), Config{Blocks: blocks})

	result, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.NoError(t, err)
	assert.Equal(t, blocks.current, result.Expires)
}

func TestValidateInvalidSignature(t *testing.T) {
	verifier := &stubVerifier{verdict: func(string) bool { return false }}
	v := newTestValidator(t, testConfig(), Config{Verifier: verifier})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.ErrorIs(t, err, core.ErrInvalidSignature)

	// First the current message shape, then the legacy one.
	require.Len(t, verifier.messages, 2)
	assert.Equal(t, verifier.messages[0]+"{}", verifier.messages[1])
}

func TestValidateLegacySignatureFallback(t *testing.T) {
	verifier := &stubVerifier{verdict: func(message string) bool {
		return strings.HasSuffix(message, "{}")
	}}
	v := newTestValidator(t, testConfig(), Config{Verifier: verifier})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.NoError(t, err)
	assert.Len(t, verifier.messages, 2)
}

func TestValidateSkipLegacyValidation(t *testing.T) {
	cfg := testConfig()
	cfg.SkipLegacyValidation = true

	verifier := &stubVerifier{verdict: func(message string) bool {
		return strings.HasSuffix(message, "{}")
	}}
	v := newTestValidator(t, cfg, Config{Verifier: verifier})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.ErrorIs(t, err, core.ErrInvalidSignature)
	assert.Len(t, verifier.messages, 1)
}

func TestValidateSignatureNotHex(t *testing.T) {
	v := newTestValidator(t, testConfig(), Config{})

	body := encodeSegment(testOrigin) + "." + testBlockHash + ".3600.e30"
	token := encodeSegment("erd1signer") + "." + encodeSegment(body) + ".zz-not-hex"

	_, err := v.Validate(context.Background(), token)
	require.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestValidateVerifierErrorPropagates(t *testing.T) {
	verifierErr := fmt.Errorf("%w: bogus", core.ErrInvalidAddress)
	v := newTestValidator(t, testConfig(), Config{
		Verifier: &stubVerifier{err: verifierErr},
	})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.ErrorIs(t, err, core.ErrInvalidAddress)
	require.NotErrorIs(t, err, core.ErrInvalidSignature)
}

func TestValidateImpersonation(t *testing.T) {
	extraInfo := map[string]any{"impersonate": "erd1target"}

	t.Run("no approver configured", func(t *testing.T) {
		v := newTestValidator(t, testConfig(), Config{})

		_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, extraInfo))
		require.ErrorIs(t, err, core.ErrInvalidImpersonate)
	})

	t.Run("approved", func(t *testing.T) {
		approver := ports.ImpersonationApproverFunc(func(ctx context.Context, signer, target string) (bool, error) {
			assert.Equal(t, "erd1signer", signer)
			assert.Equal(t, "erd1target", target)
			return true, nil
		})
		v := newTestValidator(t, testConfig(), Config{ImpersonationApprover: approver})

		result, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, extraInfo))
		require.NoError(t, err)
		assert.Equal(t, "erd1target", result.Address)
		assert.Equal(t, "erd1signer", result.SignerAddress)
		assert.Equal(t, extraInfo, result.ExtraInfo)
	})

	t.Run("denied", func(t *testing.T) {
		approver := ports.ImpersonationApproverFunc(func(ctx context.Context, signer, target string) (bool, error) {
			return false, nil
		})
		v := newTestValidator(t, testConfig(), Config{ImpersonationApprover: approver})

		_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, extraInfo))
		require.ErrorIs(t, err, core.ErrInvalidImpersonate)
	})

	t.Run("approver error propagates", func(t *testing.T) {
		approverErr := fmt.Errorf("endpoint unreachable")
		approver := ports.ImpersonationApproverFunc(func(ctx context.Context, signer, target string) (bool, error) {
			return false, approverErr
		})
		v := newTestValidator(t, testConfig(), Config{ImpersonationApprover: approver})

		_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, extraInfo))
		require.ErrorIs(t, err, approverErr)
		require.NotErrorIs(t, err, core.ErrInvalidImpersonate)
	})

	t.Run("multisig takes precedence", func(t *testing.T) {
		var gotTarget string
		approver := ports.ImpersonationApproverFunc(func(ctx context.Context, signer, target string) (bool, error) {
			gotTarget = target
			return true, nil
		})
		v := newTestValidator(t, testConfig(), Config{ImpersonationApprover: approver})

		token := buildToken(t, "erd1signer", testOrigin, 3600, map[string]any{
			"impersonate": "erd1target",
			"multisig":    "erd1multisig",
		})
		result, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "erd1multisig", gotTarget)
		assert.Equal(t, "erd1multisig", result.Address)
	})

	t.Run("non-string claim is not a target", func(t *testing.T) {
		v := newTestValidator(t, testConfig(), Config{})

		token := buildToken(t, "erd1signer", testOrigin, 3600, map[string]any{"impersonate": float64(7)})
		result, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "erd1signer", result.Address)
	})
}

func TestValidatePublishesEvent(t *testing.T) {
	events := &stubEvents{}
	v := newTestValidator(t, testConfig(), Config{Events: events})

	result, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.NoError(t, err)

	require.Len(t, events.published, 1)
	assert.Equal(t, result, events.published[0])
}

func TestValidatePublishFailureDoesNotFailValidation(t *testing.T) {
	events := &stubEvents{err: fmt.Errorf("broker down")}
	v := newTestValidator(t, testConfig(), Config{Events: events})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", testOrigin, 3600, nil))
	require.NoError(t, err)
}

func TestValidateNoEventOnFailure(t *testing.T) {
	events := &stubEvents{}
	v := newTestValidator(t, testConfig(), Config{Events: events})

	_, err := v.Validate(context.Background(), buildToken(t, "erd1signer", "https://evil.example.org", 3600, nil))
	require.Error(t, err)
	assert.Empty(t, events.published)
}

func TestDecodeDoesNotValidate(t *testing.T) {
	// Everything past decoding would fail, but Decode never gets there.
	blocks := &stubBlocks{}
	verifier := &stubVerifier{verdict: func(string) bool { return false }}
	v := newTestValidator(t, testConfig(), Config{Blocks: blocks, Verifier: verifier})

	token, err := v.Decode(buildToken(t, "erd1signer", "https://evil.example.org", 3600, nil))
	require.NoError(t, err)
	assert.Equal(t, "erd1signer", token.Address)
	assert.Empty(t, verifier.messages)
}
