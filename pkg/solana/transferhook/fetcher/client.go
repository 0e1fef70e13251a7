package fetcher

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook"
)

type clientFetcher struct {
	sc         solana.Client
	commitment solana.Commitment
}

// NewClientFetcher returns an AccountFetcher backed by the JSON RPC client.
// The client retries rate limited and unhealthy node responses itself.
func NewClientFetcher(sc solana.Client, commitment solana.Commitment) transferhook.AccountFetcher {
	return &clientFetcher{
		sc:         sc,
		commitment: commitment,
	}
}

func (f *clientFetcher) FetchAccount(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := f.sc.GetAccountInfo(address, f.commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, transferhook.ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}

	return &info, nil
}
