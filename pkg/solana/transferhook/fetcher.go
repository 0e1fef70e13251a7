package transferhook

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

// AccountFetcher loads raw account state on demand while resolving extra
// account metas.
//
// Implementations return ErrAccountNotFound (optionally wrapped) when no
// account exists at the address. Retry policy, if any, belongs to the
// implementation.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error)
}

// AccountFetcherFunc adapts a function to an AccountFetcher.
type AccountFetcherFunc func(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error)

func (f AccountFetcherFunc) FetchAccount(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	return f(ctx, address)
}
