package main

import (
	"crypto/ed25519"
	"encoding/base64"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/token"
)

// Source, mint, destination and owner.
const transferCheckedAccountCount = 4

type outputAccount struct {
	Address    string `json:"address"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

type outputTransfer struct {
	Source      string `json:"source"`
	Mint        string `json:"mint"`
	Destination string `json:"destination"`
	Owner       string `json:"owner"`
	Amount      uint64 `json:"amount"`
	Decimals    byte   `json:"decimals"`

	// Accounts following the transfer's own, including the hook program and
	// its validation state.
	ExtraAccounts int `json:"extra_accounts"`
}

type output struct {
	Program  string          `json:"program"`
	Data     string          `json:"data"`
	Accounts []outputAccount `json:"accounts"`
	Transfer outputTransfer  `json:"transfer"`

	// Base64 unsigned transaction message, only set when a payer is given.
	Message string `json:"message,omitempty"`
}

func newOutput(ix solana.Instruction) (output, error) {
	transfer, err := token.DecompileTransferChecked(ix)
	if err != nil {
		return output{}, errors.Wrap(err, "failed to decompile transfer")
	}

	out := output{
		Program:  encodeKey(ix.Program),
		Data:     base64.StdEncoding.EncodeToString(ix.Data),
		Accounts: make([]outputAccount, len(ix.Accounts)),
		Transfer: outputTransfer{
			Source:        encodeKey(transfer.Source),
			Mint:          encodeKey(transfer.Mint),
			Destination:   encodeKey(transfer.Destination),
			Owner:         encodeKey(transfer.Owner),
			Amount:        transfer.Amount,
			Decimals:      transfer.Decimals,
			ExtraAccounts: len(ix.Accounts) - transferCheckedAccountCount,
		},
	}

	for i, account := range ix.Accounts {
		out.Accounts[i] = outputAccount{
			Address:    encodeKey(account.PublicKey),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return out, nil
}

func toSolanaGoInstruction(ix solana.Instruction) solanago.Instruction {
	accounts := make(solanago.AccountMetaSlice, len(ix.Accounts))
	for i, account := range ix.Accounts {
		accounts[i] = &solanago.AccountMeta{
			PublicKey:  solanago.PublicKeyFromBytes(account.PublicKey),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return solanago.NewInstruction(solanago.PublicKeyFromBytes(ix.Program), accounts, ix.Data)
}

// compileMessage compiles ix into a legacy transaction message paid for by
// payer and returns it base64 encoded, ready to be signed.
func compileMessage(ix solana.Instruction, payer ed25519.PublicKey, blockhash solanago.Hash) (string, error) {
	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{toSolanaGoInstruction(ix)},
		blockhash,
		solanago.TransactionPayer(solanago.PublicKeyFromBytes(payer)),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to build transaction")
	}

	raw, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal message")
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}
