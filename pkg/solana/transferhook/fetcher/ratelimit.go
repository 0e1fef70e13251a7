package fetcher

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/transfer-hook-client/pkg/rate"
	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook"
)

type rateLimitedFetcher struct {
	next    transferhook.AccountFetcher
	limiter rate.Limiter
	key     string
}

// NewRateLimitedFetcher returns an AccountFetcher that waits on limiter,
// under key, before every fetch. Fetchers sharing a limiter and key share a
// request budget, typically one per RPC endpoint.
func NewRateLimitedFetcher(next transferhook.AccountFetcher, limiter rate.Limiter, key string) transferhook.AccountFetcher {
	return &rateLimitedFetcher{
		next:    next,
		limiter: limiter,
		key:     key,
	}
}

func (f *rateLimitedFetcher) FetchAccount(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	if err := f.limiter.Wait(ctx, f.key); err != nil {
		return nil, err
	}
	return f.next.FetchAccount(ctx, address)
}
