package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

// ProgramKey is the address of the original token program.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

// Program2022Key is the address of the token program with extensions.
//
// Current key: TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb
var Program2022Key = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

type Command byte

const (
	// nolint:varcheck,deadcode,unused
	CommandInitializeMint Command = iota
	// nolint:varcheck,deadcode,unused
	CommandInitializeAccount
	// nolint:varcheck,deadcode,unused
	CommandInitializeMultisig
	// nolint:varcheck,deadcode,unused
	CommandTransfer
	// nolint:varcheck,deadcode,unused
	CommandApprove
	// nolint:varcheck,deadcode,unused
	CommandRevoke
	// nolint:varcheck,deadcode,unused
	CommandSetAuthority
	// nolint:varcheck,deadcode,unused
	CommandMintTo
	// nolint:varcheck,deadcode,unused
	CommandBurn
	// nolint:varcheck,deadcode,unused
	CommandCloseAccount
	// nolint:varcheck,deadcode,unused
	CommandFreezeAccount
	// nolint:varcheck,deadcode,unused
	CommandThawAccount
	CommandTransferChecked
	// nolint:varcheck,deadcode,unused
	CommandApproveChecked
	// nolint:varcheck,deadcode,unused
	CommandMintToChecked
	// nolint:varcheck,deadcode,unused
	CommandBurnChecked

	CommandUnknown = Command(math.MaxUint8)
)

// IsTokenProgram reports whether the key belongs to either token program.
func IsTokenProgram(program ed25519.PublicKey) bool {
	return bytes.Equal(program, ProgramKey) || bytes.Equal(program, Program2022Key)
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L230-L252
func TransferChecked(program, source, mint, dest, owner ed25519.PublicKey, amount uint64, decimals byte, signers ...ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   * Single owner/delegate
	//   0. `[writable]` The source account.
	//   1. `[]` The token mint.
	//   2. `[writable]` The destination account.
	//   3. `[signer]` The source account's owner/delegate.
	//
	//   * Multisignature owner/delegate
	//   0. `[writable]` The source account.
	//   1. `[]` The token mint.
	//   2. `[writable]` The destination account.
	//   3. `[]` The source account's multisignature owner/delegate.
	//   4. ..4+M `[signer]` M signer accounts.
	data := make([]byte, 1+8+1)
	data[0] = byte(CommandTransferChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	accounts := make([]solana.AccountMeta, 4+len(signers))
	accounts[0] = solana.NewAccountMeta(source, false)
	accounts[1] = solana.NewReadonlyAccountMeta(mint, false)
	accounts[2] = solana.NewAccountMeta(dest, false)
	accounts[3] = solana.NewReadonlyAccountMeta(owner, len(signers) == 0)
	for i := 0; i < len(signers); i++ {
		accounts[4+i] = solana.NewReadonlyAccountMeta(signers[i], true)
	}

	return solana.NewInstruction(
		program,
		data,
		accounts...,
	)
}

type DecompiledTransferChecked struct {
	Source      ed25519.PublicKey
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
	Decimals    byte
}

// DecompileTransferChecked extracts the transfer parameters out of a built
// TransferChecked instruction.
func DecompileTransferChecked(i solana.Instruction) (*DecompiledTransferChecked, error) {
	if !IsTokenProgram(i.Program) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, []byte{byte(CommandTransferChecked)}) {
		return nil, solana.ErrIncorrectInstruction
	}
	// note: we do < 4 instead of != 4 in order to support multisig and
	//       transfer hook extra accounts.
	if len(i.Accounts) < 4 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != 10 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	v := &DecompiledTransferChecked{
		Source:      i.Accounts[0].PublicKey,
		Mint:        i.Accounts[1].PublicKey,
		Destination: i.Accounts[2].PublicKey,
		Owner:       i.Accounts[3].PublicKey,
	}
	v.Amount = binary.LittleEndian.Uint64(i.Data[1:9])
	v.Decimals = i.Data[9]
	return v, nil
}
