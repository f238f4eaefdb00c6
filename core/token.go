package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// emptyExtraInfo is the encoded form of an empty JSON object ("{}"). Tokens
// issued without extra info carry this literal segment, which decodes to
// nothing rather than an empty map.
const emptyExtraInfo = "e30"

// Token is the decoded, structured form of an access token. It is produced by
// DecodeToken and carries no proof of validity on its own: the signature and
// the block anchor still have to be checked by the validator.
type Token struct {
	// Address is the bech32 account address of the signer
	Address string `json:"address"`

	// Origin is the request origin the token was issued for
	Origin string `json:"origin"`

	// BlockHash anchors the token to a point in ledger history
	BlockHash string `json:"blockHash"`

	// TTL is the requested token lifetime in seconds
	TTL int64 `json:"ttl"`

	// Signature is the hex-encoded signature over address + body
	Signature string `json:"signature"`

	// Body is the decoded token body, kept verbatim because it is part of
	// the signed message
	Body string `json:"body"`

	// ExtraInfo holds the optional free-form claims; nil when the token
	// carried none (an empty object is normalized to nil)
	ExtraInfo map[string]any `json:"extraInfo,omitempty"`
}

// ValidationResult is returned for a token that passed the full validation
// pipeline.
type ValidationResult struct {
	// Issued is the timestamp of the block the token is anchored to
	Issued int64 `json:"issued"`

	// Expires is the computed expiry of the token
	Expires int64 `json:"expires"`

	// Origin is the accepted request origin
	Origin string `json:"origin"`

	// Address is the effective account: the impersonation target when one
	// was approved, otherwise the signer
	Address string `json:"address"`

	// SignerAddress is always the account that signed the token
	SignerAddress string `json:"signerAddress"`

	// ExtraInfo mirrors the token's extra claims when present
	ExtraInfo map[string]any `json:"extraInfo,omitempty"`
}

// DecodeToken parses an access token into its structured form. It is a pure
// function: no I/O, no side effects, and the same input always yields the
// same result. Any structural defect is reported as ErrInvalidToken.
func DecodeToken(accessToken string) (*Token, error) {
	parts := strings.Split(accessToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidToken, len(parts))
	}

	address, err := decodeValue(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: address segment: %v", ErrInvalidToken, err)
	}

	body, err := decodeValue(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: body segment: %v", ErrInvalidToken, err)
	}

	fields := strings.Split(body, ".")
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: expected 4 body fields, got %d", ErrInvalidToken, len(fields))
	}

	origin, err := decodeValue(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: origin field: %v", ErrInvalidToken, err)
	}

	ttl, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: ttl field: %v", ErrInvalidToken, err)
	}

	extraInfo, err := decodeExtraInfo(fields[3])
	if err != nil {
		return nil, err
	}

	return &Token{
		Address:   address,
		Origin:    origin,
		BlockHash: fields[1],
		TTL:       ttl,
		Signature: parts[2],
		Body:      body,
		ExtraInfo: extraInfo,
	}, nil
}

// decodeExtraInfo decodes the fourth body field into the optional claims map.
// The literal encoding of "{}" (and an empty segment) mean "no extra info",
// and a decoded-but-empty object is normalized to nil so that presence always
// implies at least one claim.
func decodeExtraInfo(raw string) (map[string]any, error) {
	if raw == "" || raw == emptyExtraInfo {
		return nil, nil
	}

	decoded, err := decodeValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: extra info field: %v", ErrInvalidToken, err)
	}

	var extraInfo map[string]any
	if err := json.Unmarshal([]byte(decoded), &extraInfo); err != nil {
		return nil, fmt.Errorf("%w: extra info is not a JSON object: %v", ErrInvalidToken, err)
	}

	if len(extraInfo) == 0 {
		return nil, nil
	}
	return extraInfo, nil
}

// decodeValue decodes one token segment. Segments are base64 with the
// URL-safe alphabet escaped ('-' for '+', '_' for '/') and padding stripped,
// so both alphabets are tolerated and padding is optional.
func decodeValue(segment string) (string, error) {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(segment)
	normalized = strings.TrimRight(normalized, "=")

	decoded, err := base64.RawStdEncoding.DecodeString(normalized)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
