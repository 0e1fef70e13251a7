package transferhook

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/transfer-hook-client/pkg/metrics"
	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/token"
)

const (
	metricsStructName = "transferhook"

	resolvedAccountsMetricName   = "TransferHook_ResolvedAccounts"
	resolutionDurationMetricName = "TransferHook_ResolutionDuration"
	resolutionFailureEventName   = "TransferHookResolutionFailure"

	extraAccountMetasSeed = "extra-account-metas"

	// Execute accounts preceding the extra accounts.
	executeAccountCount = 5
)

// ExecuteDiscriminator is the first 8 bytes of
// sha256("spl-transfer-hook-interface:execute"). Validation state accounts
// store it as their list discriminator.
var ExecuteDiscriminator = [discriminatorSize]byte{105, 37, 101, 197, 75, 251, 102, 26}

var log = logrus.StandardLogger().WithField("type", "solana/transferhook")

// GetExtraAccountMetaAddress returns the validation state address of a mint
// for the provided transfer hook program.
func GetExtraAccountMetaAddress(mint, program ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(program, []byte(extraAccountMetasSeed), mint)
}

// Execute builds the hook program's execute instruction. None of the accounts
// are signers or writable.
func Execute(program, source, mint, destination, authority, validationState ed25519.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, discriminatorSize+8)
	copy(data, ExecuteDiscriminator[:])
	binary.LittleEndian.PutUint64(data[discriminatorSize:], amount)

	return solana.NewInstruction(
		program,
		data,
		solana.NewReadonlyAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewReadonlyAccountMeta(validationState, false),
	)
}

// AddExtraAccountMetasForExecute appends the extra accounts required by the
// transfer hook program to ix, followed by the hook program and its
// validation state account.
//
// The extra accounts are resolved against the hook's execute instruction, so
// account indices 0 through 4 refer to source, mint, destination, authority
// and validation state, and instruction data [8:16] is the amount. If the
// validation state account does not exist, ix is left unchanged. On any
// failure ix is left unchanged.
func AddExtraAccountMetasForExecute(
	ctx context.Context,
	fetcher AccountFetcher,
	ix *solana.Instruction,
	program, source, mint, destination, authority ed25519.PublicKey,
	amount uint64,
) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "AddExtraAccountMetasForExecute")
	defer tracer.End()

	start := time.Now()
	defer func() {
		if err != nil {
			tracer.OnError(err)
			metrics.RecordEvent(ctx, resolutionFailureEventName, map[string]interface{}{
				"program": base58.Encode(program),
				"mint":    base58.Encode(mint),
				"error":   err.Error(),
			})
		}
	}()

	log := log.WithFields(logrus.Fields{
		"method":  "AddExtraAccountMetasForExecute",
		"program": base58.Encode(program),
		"mint":    base58.Encode(mint),
	})

	if len(ix.Accounts) < 4 {
		return errors.Wrapf(ErrMissingRequiredAccount, "instruction has %d accounts", len(ix.Accounts))
	}
	for _, required := range []ed25519.PublicKey{source, mint, destination, authority} {
		if !ix.HasAccount(required) {
			return errors.Wrapf(ErrMissingRequiredAccount, "account %s", base58.Encode(required))
		}
	}

	validationState, err := GetExtraAccountMetaAddress(mint, program)
	if err != nil {
		return errors.Wrap(err, "failed to derive validation state address")
	}
	log = log.WithField("validation_state", base58.Encode(validationState))

	info, err := fetcher.FetchAccount(ctx, validationState)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && info == nil) {
		log.Debug("no validation state account, skipping extra accounts")
		return nil
	} else if err != nil {
		return errors.Wrap(err, "failed to fetch validation state account")
	}

	var list ExtraAccountMetaList
	if err := list.Unmarshal(info.Data); err != nil {
		return &ValidationStateError{Address: validationState, Err: err}
	}
	if list.Discriminator != ExecuteDiscriminator {
		return &ValidationStateError{
			Address: validationState,
			Err:     errors.Errorf("unexpected list discriminator: %v", list.Discriminator),
		}
	}

	execute := Execute(program, source, mint, destination, authority, validationState, amount)

	resolved, err := ResolveExtraAccountMetas(ctx, fetcher, list.Entries, execute.Accounts, execute.Data, program)
	if err != nil {
		return err
	}

	accounts := append([]solana.AccountMeta{}, execute.Accounts...)
	for _, account := range resolved {
		accounts = append(accounts, deEscalate(account, accounts))
	}

	extra := make([]solana.AccountMeta, 0, len(resolved)+2)
	extra = append(extra, accounts[executeAccountCount:]...)
	extra = append(extra,
		solana.NewReadonlyAccountMeta(program, false),
		solana.NewReadonlyAccountMeta(validationState, false),
	)
	ix.Accounts = append(ix.Accounts, extra...)

	log.WithField("resolved", len(resolved)).Debug("added extra account metas")
	metrics.RecordCount(ctx, resolvedAccountsMetricName, uint64(len(resolved)))
	metrics.RecordDuration(ctx, resolutionDurationMetricName, time.Since(start))

	return nil
}

// deEscalate drops signer and writable privileges that none of the earlier
// occurrences of the same address hold. Addresses seen for the first time
// keep their privileges.
func deEscalate(account solana.AccountMeta, previous []solana.AccountMeta) solana.AccountMeta {
	var found, isSigner, isWritable bool
	for _, p := range previous {
		if !p.PublicKey.Equal(account.PublicKey) {
			continue
		}

		found = true
		isSigner = isSigner || p.IsSigner
		isWritable = isWritable || p.IsWritable
	}
	if !found {
		return account
	}

	account.IsSigner = account.IsSigner && isSigner
	account.IsWritable = account.IsWritable && isWritable
	return account
}

// TransferCheckedWithTransferHook builds a TransferChecked instruction and,
// if the mint has a transfer hook program configured, appends the accounts
// the hook requires.
func TransferCheckedWithTransferHook(
	ctx context.Context,
	fetcher AccountFetcher,
	tokenProgram, source, mint, destination, owner ed25519.PublicKey,
	amount uint64,
	decimals byte,
	signers ...ed25519.PublicKey,
) (solana.Instruction, error) {
	ix := token.TransferChecked(tokenProgram, source, mint, destination, owner, amount, decimals, signers...)

	state, mintOwner, err := GetMint(ctx, fetcher, mint)
	if err != nil {
		return solana.Instruction{}, err
	}
	if !mintOwner.Equal(tokenProgram) {
		return solana.Instruction{}, errors.Wrapf(
			token.ErrInvalidTokenMint,
			"mint is owned by %s, not %s",
			base58.Encode(mintOwner),
			base58.Encode(tokenProgram),
		)
	}

	hookProgram, err := state.GetTransferHookProgram()
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "invalid transfer hook extension")
	}
	if hookProgram == nil {
		return ix, nil
	}

	if err := AddExtraAccountMetasForExecute(ctx, fetcher, &ix, hookProgram, source, mint, destination, owner, amount); err != nil {
		return solana.Instruction{}, err
	}
	return ix, nil
}
