package transferhook

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana/token"
)

// GetMint fetches the mint state at the provided address, along with the
// token program that owns it.
func GetMint(ctx context.Context, fetcher AccountFetcher, mint ed25519.PublicKey) (*token.Mint, ed25519.PublicKey, error) {
	info, err := fetcher.FetchAccount(ctx, mint)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch mint")
	}
	if info == nil {
		return nil, nil, errors.Wrap(ErrAccountNotFound, "mint")
	}

	state, err := token.DecodeMint(info)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid mint")
	}

	return state, info.Owner, nil
}
