package transferhook

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

// ResolveExtraAccountMeta resolves a single extra account meta into a
// concrete account.
//
// previous is the index space for account references: the instruction's
// accounts followed by the extra accounts resolved so far. program is the
// program that owns the instruction, used by MetaKindPDA entries. Signer and
// writable flags are always taken from the meta.
func ResolveExtraAccountMeta(
	ctx context.Context,
	fetcher AccountFetcher,
	meta ExtraAccountMeta,
	previous []solana.AccountMeta,
	data []byte,
	program ed25519.PublicKey,
) (solana.AccountMeta, error) {
	var address ed25519.PublicKey
	var err error

	switch meta.Kind() {
	case MetaKindFixed:
		address = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(address, meta.AddressConfig[:])
	case MetaKindKeyData:
		var keyData KeyData
		keyData, err = DecodeKeyData(meta.AddressConfig)
		if err == nil {
			address, err = keyData.Extract(ctx, fetcher, previous, data)
		}
	case MetaKindPDA:
		address, err = deriveAddress(ctx, fetcher, meta.AddressConfig, program, previous, data)
	case MetaKindExternalPDA:
		index, _ := meta.ProgramIndex()

		var programAccount solana.AccountMeta
		programAccount, err = accountAt(previous, index)
		if err != nil {
			err = errors.Wrap(err, "invalid program index")
		} else {
			address, err = deriveAddress(ctx, fetcher, meta.AddressConfig, programAccount.PublicKey, previous, data)
		}
	default:
		err = errors.Wrapf(ErrMalformedEncoding, "unsupported discriminator: %d", meta.Discriminator)
	}
	if err != nil {
		return solana.AccountMeta{}, err
	}

	return solana.AccountMeta{
		PublicKey:  address,
		IsSigner:   meta.IsSigner,
		IsWritable: meta.IsWritable,
	}, nil
}

// ResolveExtraAccountMetas resolves metas strictly in order. Each meta may
// reference the initial accounts and every meta resolved before it.
//
// Resolution is all or nothing: the first failure aborts the pass with a
// *ResolutionError and no accounts are returned.
func ResolveExtraAccountMetas(
	ctx context.Context,
	fetcher AccountFetcher,
	metas []ExtraAccountMeta,
	initial []solana.AccountMeta,
	data []byte,
	program ed25519.PublicKey,
) ([]solana.AccountMeta, error) {
	accounts := make([]solana.AccountMeta, len(initial), len(initial)+len(metas))
	copy(accounts, initial)

	for i, meta := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resolved, err := ResolveExtraAccountMeta(ctx, fetcher, meta, accounts, data, program)
		if err != nil {
			return nil, &ResolutionError{
				Index:         i,
				Discriminator: meta.Discriminator,
				Err:           err,
			}
		}

		accounts = append(accounts, resolved)
	}

	return accounts[len(initial):], nil
}

func deriveAddress(
	ctx context.Context,
	fetcher AccountFetcher,
	config AddressConfig,
	program ed25519.PublicKey,
	accounts []solana.AccountMeta,
	data []byte,
) (ed25519.PublicKey, error) {
	seeds, err := DecodeSeeds(config)
	if err != nil {
		return nil, err
	}

	values := make([][]byte, len(seeds))
	for i, seed := range seeds {
		values[i], err = seed.Extract(ctx, fetcher, accounts, data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to extract %s seed %d", seed.Kind, i)
		}
	}

	address, err := solana.FindProgramAddress(program, values...)
	switch {
	case err == nil:
		return address, nil
	case errors.Is(err, solana.ErrNoValidAddress):
		return nil, err
	default:
		return nil, errors.Wrapf(ErrMalformedEncoding, "invalid seeds: %v", err)
	}
}
