package ports

import "context"

// BlockSource provides block timestamps from the ledger the tokens are
// anchored to. Timestamps are returned exactly as the ledger reports them.
type BlockSource interface {
	// CurrentBlockTimestamp returns the timestamp of the most recent block
	CurrentBlockTimestamp(ctx context.Context) (int64, error)

	// BlockTimestamp returns the timestamp of the block with the given
	// hash. An unknown hash is reported as found == false, not an error.
	BlockTimestamp(ctx context.Context, hash string) (int64, bool, error)
}
