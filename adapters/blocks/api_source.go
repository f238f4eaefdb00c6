package blocks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/layer-3/garuda/ports"
)

const (
	// latestTimestampKey caches the chain head timestamp. The head moves
	// every few seconds, so the entry is short-lived.
	latestTimestampKey = "block:timestamp:latest"
	latestTimestampTTL = 6 * time.Second

	blockTimestampKeyPrefix = "block:timestamp:"
)

// Config configures an APISource.
type Config struct {
	// APIURL is the base URL of the ledger API
	APIURL string

	// MaxExpiry is how long historical block timestamps are cached. They
	// are immutable once mined, so the longest accepted token lifetime is
	// a safe bound.
	MaxExpiry time.Duration

	// ExtraRequestHeaders are added to every request
	ExtraRequestHeaders map[string]string

	// HTTPClient overrides the default pooled client
	HTTPClient *http.Client

	// Cache memoizes timestamps; nil disables memoization
	Cache ports.Cache
}

// APISource fetches block timestamps from the remote ledger API. It does not
// retry: transport failures are returned to the caller unchanged.
type APISource struct {
	apiURL       string
	maxExpiry    time.Duration
	extraHeaders map[string]string
	client       *http.Client
	cache        ports.Cache
}

// NewAPISource creates a block source backed by the ledger HTTP API.
func NewAPISource(cfg Config) *APISource {
	client := cfg.HTTPClient
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}

	return &APISource{
		apiURL:       cfg.APIURL,
		maxExpiry:    cfg.MaxExpiry,
		extraHeaders: cfg.ExtraRequestHeaders,
		client:       client,
		cache:        cfg.Cache,
	}
}

// CurrentBlockTimestamp returns the timestamp of the most recent block.
func (s *APISource) CurrentBlockTimestamp(ctx context.Context) (int64, error) {
	if timestamp, ok := s.cachedTimestamp(ctx, latestTimestampKey); ok {
		return timestamp, nil
	}

	resp, err := s.get(ctx, fmt.Sprintf("%s/blocks?size=1&fields=timestamp", s.apiURL))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching latest block: unexpected status %s", resp.Status)
	}

	var blocks []struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&blocks); err != nil {
		return 0, fmt.Errorf("decoding latest block response: %w", err)
	}
	if len(blocks) == 0 {
		return 0, fmt.Errorf("fetching latest block: empty result")
	}

	timestamp := blocks[0].Timestamp
	s.storeTimestamp(ctx, latestTimestampKey, timestamp, latestTimestampTTL)

	return timestamp, nil
}

// BlockTimestamp returns the timestamp of the block with the given hash, or
// found == false when the ledger does not know the hash.
func (s *APISource) BlockTimestamp(ctx context.Context, hash string) (int64, bool, error) {
	key := blockTimestampKeyPrefix + hash
	if timestamp, ok := s.cachedTimestamp(ctx, key); ok {
		return timestamp, true, nil
	}

	resp, err := s.get(ctx, fmt.Sprintf("%s/blocks/%s?extract=timestamp", s.apiURL, hash))
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("fetching block %s: unexpected status %s", hash, resp.Status)
	}

	var timestamp int64
	if err := json.NewDecoder(resp.Body).Decode(&timestamp); err != nil {
		return 0, false, fmt.Errorf("decoding block %s timestamp: %w", hash, err)
	}

	s.storeTimestamp(ctx, key, timestamp, s.maxExpiry)

	return timestamp, true, nil
}

func (s *APISource) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range s.extraHeaders {
		req.Header.Set(key, value)
	}
	return s.client.Do(req)
}

// cachedTimestamp reads a memoized timestamp. Cache errors and unparseable
// entries count as misses.
func (s *APISource) cachedTimestamp(ctx context.Context, key string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}

	value, found, err := s.cache.GetValue(ctx, key)
	if err != nil || !found {
		return 0, false
	}

	timestamp, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return timestamp, true
}

// storeTimestamp memoizes a timestamp. Writes are best-effort.
func (s *APISource) storeTimestamp(ctx context.Context, key string, timestamp int64, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	_ = s.cache.SetValue(ctx, key, strconv.FormatInt(timestamp, 10), ttl)
}
