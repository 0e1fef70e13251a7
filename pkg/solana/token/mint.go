package token

import (
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

// ErrInvalidTokenMint indicates that a Solana account exists at the given
// address, but it is not an initialized mint owned by a token program.
var ErrInvalidTokenMint = errors.New("invalid token mint")

// DecodeMint decodes the mint state held by info.
//
// If the account is not owned by a token program, or is not an initialized
// mint, then ErrInvalidTokenMint is returned.
func DecodeMint(info *solana.AccountInfo) (*Mint, error) {
	if !IsTokenProgram(info.Owner) {
		return nil, errors.Wrapf(ErrInvalidTokenMint, "unexpected owner: %s", base58.Encode(info.Owner))
	}

	var state Mint
	if err := state.Unmarshal(info.Data); err != nil {
		return nil, err
	}
	if !state.IsInitialized {
		return nil, errors.Wrap(ErrInvalidTokenMint, "mint is not initialized")
	}

	return &state, nil
}
