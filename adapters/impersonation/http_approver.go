package impersonation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/layer-3/garuda/ports"
)

const (
	decisionKeyPrefix = "impersonate:"
	decisionTTL       = time.Hour

	approvedValue = "1"
	deniedValue   = "0"
)

// Config configures an HTTPApprover.
type Config struct {
	// BaseURL is the impersonation-check endpoint; the signer and target
	// addresses are appended as path segments
	BaseURL string

	// HTTPClient overrides the default pooled client
	HTTPClient *http.Client

	// Cache memoizes decisions; nil disables memoization
	Cache ports.Cache
}

// HTTPApprover asks a remote endpoint whether a signer may act as another
// account. Both verdict polarities are cached for an hour, so a denied pair
// does not hammer the endpoint.
type HTTPApprover struct {
	baseURL string
	client  *http.Client
	cache   ports.Cache
}

// NewHTTPApprover creates an approver backed by a remote check endpoint.
func NewHTTPApprover(cfg Config) *HTTPApprover {
	client := cfg.HTTPClient
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}

	return &HTTPApprover{
		baseURL: cfg.BaseURL,
		client:  client,
		cache:   cfg.Cache,
	}
}

// ApproveImpersonation reports whether signerAddress is allowed to act as
// targetAddress. A 2xx response approves, 403 denies; any other outcome is
// returned as an error without a verdict.
func (a *HTTPApprover) ApproveImpersonation(ctx context.Context, signerAddress string, targetAddress string) (bool, error) {
	key := decisionKeyPrefix + signerAddress + ":" + targetAddress
	if verdict, ok := a.cachedDecision(ctx, key); ok {
		return verdict, nil
	}

	url := fmt.Sprintf("%s/%s/%s", a.baseURL, signerAddress, targetAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		a.storeDecision(ctx, key, approvedValue)
		return true, nil
	case resp.StatusCode == http.StatusForbidden:
		a.storeDecision(ctx, key, deniedValue)
		return false, nil
	default:
		return false, fmt.Errorf("impersonation check for %s as %s: unexpected status %s", signerAddress, targetAddress, resp.Status)
	}
}

// cachedDecision reads a memoized verdict. Cache errors and unknown values
// count as misses.
func (a *HTTPApprover) cachedDecision(ctx context.Context, key string) (bool, bool) {
	if a.cache == nil {
		return false, false
	}

	value, found, err := a.cache.GetValue(ctx, key)
	if err != nil || !found {
		return false, false
	}

	switch value {
	case approvedValue:
		return true, true
	case deniedValue:
		return false, true
	default:
		return false, false
	}
}

// storeDecision memoizes a verdict. Writes are best-effort.
func (a *HTTPApprover) storeDecision(ctx context.Context, key string, value string) {
	if a.cache == nil {
		return
	}
	_ = a.cache.SetValue(ctx, key, value, decisionTTL)
}
