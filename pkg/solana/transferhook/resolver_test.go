package transferhook_test

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook/fetcher"
	"github.com/code-payments/transfer-hook-client/pkg/testutil"
)

var (
	testProgram  = solana.MustPublicKeyFromBase58("7N4HggYEJAtCLJdnHGCtFqfxcB5rhQCsQTze3ftYstVj")
	plainAccount = solana.MustPublicKeyFromBase58("6c5q79ccBTWvZTEx3JkdHThtMa2eALba5bfvHGf8kA2c")
)

type resolverEnv struct {
	fetcher         *fetcher.Memory
	instructionData []byte

	plainMeta          transferhook.ExtraAccountMeta
	pdaMeta            transferhook.ExtraAccountMeta
	externalPDAMeta    transferhook.ExtraAccountMeta
	keyFromInstruction transferhook.ExtraAccountMeta
	keyFromAccount     transferhook.ExtraAccountMeta

	expectedPDA         ed25519.PublicKey
	expectedExternalPDA ed25519.PublicKey
}

func setupResolverEnv(t *testing.T) *resolverEnv {
	env := &resolverEnv{
		fetcher: fetcher.NewMemory(),
	}

	env.fetcher.SetAccountData(plainAccount, make(ed25519.PublicKey, ed25519.PublicKeySize), append([]byte{0, 0, 2, 2, 2, 2}, plainAccount...))

	env.instructionData = make([]byte, 32)
	for i := range env.instructionData {
		env.instructionData[i] = byte(i)
	}
	env.instructionData = append(env.instructionData, plainAccount...)

	seeds := []transferhook.Seed{
		transferhook.NewLiteralSeed([]byte("seed")),
		transferhook.NewInstructionDataSeed(4, 4),
		transferhook.NewAccountKeySeed(0),
		transferhook.NewAccountDataSeed(0, 2, 4),
	}

	var err error
	env.plainMeta = transferhook.NewFixedExtraAccountMeta(plainAccount, false, false)
	env.pdaMeta, err = transferhook.NewPDAExtraAccountMeta(seeds, true, false)
	require.NoError(t, err)
	env.externalPDAMeta, err = transferhook.NewExternalPDAExtraAccountMeta(0, seeds, false, true)
	require.NoError(t, err)
	env.keyFromInstruction = transferhook.NewKeyDataExtraAccountMeta(transferhook.NewInstructionKeyData(32), false, false)
	env.keyFromAccount = transferhook.NewKeyDataExtraAccountMeta(transferhook.NewAccountKeyData(0, 6), false, false)

	rawSeeds := [][]byte{[]byte("seed"), {4, 5, 6, 7}, plainAccount, {2, 2, 2, 2}}
	env.expectedPDA, err = solana.FindProgramAddress(testProgram, rawSeeds...)
	require.NoError(t, err)
	env.expectedExternalPDA, err = solana.FindProgramAddress(plainAccount, rawSeeds...)
	require.NoError(t, err)

	return env
}

func TestResolveExtraAccountMeta_Fixture(t *testing.T) {
	env := setupResolverEnv(t)
	ctx := context.Background()

	resolvedPlain, err := transferhook.ResolveExtraAccountMeta(ctx, env.fetcher, env.plainMeta, nil, env.instructionData, testProgram)
	require.NoError(t, err)
	assert.Equal(t, solana.NewReadonlyAccountMeta(plainAccount, false), resolvedPlain)

	previous := []solana.AccountMeta{resolvedPlain}

	resolvedPDA, err := transferhook.ResolveExtraAccountMeta(ctx, env.fetcher, env.pdaMeta, previous, env.instructionData, testProgram)
	require.NoError(t, err)
	assert.Equal(t, solana.NewReadonlyAccountMeta(env.expectedPDA, true), resolvedPDA)

	resolvedExternal, err := transferhook.ResolveExtraAccountMeta(ctx, env.fetcher, env.externalPDAMeta, previous, env.instructionData, testProgram)
	require.NoError(t, err)
	assert.Equal(t, solana.NewAccountMeta(env.expectedExternalPDA, false), resolvedExternal)

	resolvedFromInstruction, err := transferhook.ResolveExtraAccountMeta(ctx, env.fetcher, env.keyFromInstruction, nil, env.instructionData, testProgram)
	require.NoError(t, err)
	assert.Equal(t, solana.NewReadonlyAccountMeta(plainAccount, false), resolvedFromInstruction)

	resolvedFromAccount, err := transferhook.ResolveExtraAccountMeta(ctx, env.fetcher, env.keyFromAccount, previous, env.instructionData, testProgram)
	require.NoError(t, err)
	assert.Equal(t, solana.NewReadonlyAccountMeta(plainAccount, false), resolvedFromAccount)
}

func TestResolveExtraAccountMeta_FixedIgnoresContext(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)

	meta := transferhook.NewFixedExtraAccountMeta(keys[0], true, true)
	noFetch := transferhook.AccountFetcherFunc(func(context.Context, ed25519.PublicKey) (*solana.AccountInfo, error) {
		t.Fatal("fixed metas must not fetch")
		return nil, nil
	})

	resolved, err := transferhook.ResolveExtraAccountMeta(context.Background(), noFetch, meta, nil, nil, keys[1])
	require.NoError(t, err)
	assert.Equal(t, solana.NewAccountMeta(keys[0], true), resolved)

	resolved, err = transferhook.ResolveExtraAccountMeta(context.Background(), noFetch, meta, []solana.AccountMeta{solana.NewAccountMeta(keys[2], true)}, []byte{1, 2, 3}, keys[2])
	require.NoError(t, err)
	assert.EqualValues(t, keys[0], resolved.PublicKey)
}

func TestResolveExtraAccountMeta_ExternalProgramIndex(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 4)
	ctx := context.Background()

	meta, err := transferhook.NewExternalPDAExtraAccountMeta(2, []transferhook.Seed{transferhook.NewAccountKeySeed(0)}, false, false)
	require.NoError(t, err)

	previous := []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(keys[0], false),
		solana.NewReadonlyAccountMeta(keys[1], false),
	}

	_, err = transferhook.ResolveExtraAccountMeta(ctx, fetcher.NewMemory(), meta, previous, nil, keys[3])
	testutil.AssertErrorIs(t, err, transferhook.ErrIndexOutOfRange)

	previous = append(previous, solana.NewReadonlyAccountMeta(keys[2], false))
	resolved, err := transferhook.ResolveExtraAccountMeta(ctx, fetcher.NewMemory(), meta, previous, nil, keys[3])
	require.NoError(t, err)

	expected, err := solana.FindProgramAddress(keys[2], keys[0])
	require.NoError(t, err)
	assert.EqualValues(t, expected, resolved.PublicKey)
}

func TestResolveExtraAccountMeta_Errors(t *testing.T) {
	env := setupResolverEnv(t)
	ctx := context.Background()
	missing := testutil.NewRandomAccount(t)

	for _, tc := range []struct {
		name     string
		meta     transferhook.ExtraAccountMeta
		previous []solana.AccountMeta
		data     []byte
		err      error
	}{
		{
			name: "unknown discriminator",
			meta: transferhook.ExtraAccountMeta{Discriminator: 3},
			err:  transferhook.ErrMalformedEncoding,
		},
		{
			name: "invalid key data source",
			meta: transferhook.ExtraAccountMeta{Discriminator: transferhook.DiscriminatorKeyData},
			err:  transferhook.ErrMalformedEncoding,
		},
		{
			name: "short instruction data",
			meta: env.pdaMeta,
			data: []byte{0, 1, 2},
			err:  transferhook.ErrOutOfBounds,
		},
		{
			name: "account key out of range",
			meta: env.pdaMeta,
			data: env.instructionData,
			err:  transferhook.ErrIndexOutOfRange,
		},
		{
			name:     "account data not found",
			meta:     env.pdaMeta,
			previous: []solana.AccountMeta{solana.NewReadonlyAccountMeta(missing, false)},
			data:     env.instructionData,
			err:      transferhook.ErrAccountNotFound,
		},
		{
			name:     "key data account not found",
			meta:     env.keyFromAccount,
			previous: []solana.AccountMeta{solana.NewReadonlyAccountMeta(missing, false)},
			err:      transferhook.ErrAccountNotFound,
		},
		{
			name: "key data instruction out of bounds",
			meta: env.keyFromInstruction,
			data: env.instructionData[:40],
			err:  transferhook.ErrOutOfBounds,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := transferhook.ResolveExtraAccountMeta(ctx, env.fetcher, tc.meta, tc.previous, tc.data, testProgram)
			testutil.AssertErrorIs(t, err, tc.err)
		})
	}
}

func TestResolveExtraAccountMeta_SeedTooLong(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)

	m := fetcher.NewMemory()
	m.SetAccountData(keys[0], nil, make([]byte, 64))

	meta, err := transferhook.NewPDAExtraAccountMeta([]transferhook.Seed{transferhook.NewAccountDataSeed(0, 0, 33)}, false, false)
	require.NoError(t, err)

	_, err = transferhook.ResolveExtraAccountMeta(context.Background(), m, meta, []solana.AccountMeta{solana.NewReadonlyAccountMeta(keys[0], false)}, nil, keys[1])
	testutil.AssertErrorIs(t, err, transferhook.ErrMalformedEncoding)
}

func TestResolveExtraAccountMetas_Sequencing(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)
	ctx := context.Background()

	initial := []solana.AccountMeta{
		solana.NewAccountMeta(keys[0], false),
		solana.NewReadonlyAccountMeta(keys[1], true),
	}

	// The derived meta references index 3, the second extra account.
	derived, err := transferhook.NewPDAExtraAccountMeta([]transferhook.Seed{
		transferhook.NewAccountKeySeed(3),
		transferhook.NewAccountKeySeed(0),
	}, false, true)
	require.NoError(t, err)

	fixed := transferhook.NewFixedExtraAccountMeta(keys[2], false, false)

	// Index 3 is not yet resolved when the derived meta comes second.
	_, err = transferhook.ResolveExtraAccountMetas(ctx, fetcher.NewMemory(), []transferhook.ExtraAccountMeta{fixed, derived}, initial, nil, testProgram)
	testutil.AssertErrorIs(t, err, transferhook.ErrIndexOutOfRange)

	var resolutionErr *transferhook.ResolutionError
	require.True(t, errors.As(err, &resolutionErr))
	assert.Equal(t, 1, resolutionErr.Index)
	assert.Equal(t, transferhook.DiscriminatorPDA, resolutionErr.Discriminator)

	// With one more meta before it, index 3 resolves.
	metas := []transferhook.ExtraAccountMeta{fixed, fixed, derived}
	resolved, err := transferhook.ResolveExtraAccountMetas(ctx, fetcher.NewMemory(), metas, initial, nil, testProgram)
	require.NoError(t, err)
	require.Len(t, resolved, 3)

	expected, err := solana.FindProgramAddress(testProgram, keys[2], keys[0])
	require.NoError(t, err)
	assert.Equal(t, []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(keys[2], false),
		solana.NewReadonlyAccountMeta(keys[2], false),
		solana.NewAccountMeta(expected, false),
	}, resolved)

	// The caller's accounts are untouched.
	assert.Len(t, initial, 2)
}

func TestResolveExtraAccountMetas_Idempotent(t *testing.T) {
	env := setupResolverEnv(t)
	ctx := context.Background()

	metas := []transferhook.ExtraAccountMeta{
		env.plainMeta,
		env.pdaMeta,
		env.externalPDAMeta,
		env.keyFromAccount,
		env.keyFromInstruction,
	}

	first, err := transferhook.ResolveExtraAccountMetas(ctx, env.fetcher, metas, nil, env.instructionData, testProgram)
	require.NoError(t, err)
	second, err := transferhook.ResolveExtraAccountMetas(ctx, env.fetcher, metas, nil, env.instructionData, testProgram)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(plainAccount, false),
		solana.NewReadonlyAccountMeta(env.expectedPDA, true),
		solana.NewAccountMeta(env.expectedExternalPDA, false),
		solana.NewReadonlyAccountMeta(plainAccount, false),
		solana.NewReadonlyAccountMeta(plainAccount, false),
	}, first)
}

func TestResolveExtraAccountMetas_AllOrNothing(t *testing.T) {
	env := setupResolverEnv(t)

	metas := []transferhook.ExtraAccountMeta{
		env.plainMeta,
		{Discriminator: 100},
	}

	resolved, err := transferhook.ResolveExtraAccountMetas(context.Background(), env.fetcher, metas, nil, env.instructionData, testProgram)
	testutil.AssertErrorIs(t, err, transferhook.ErrMalformedEncoding)
	assert.Nil(t, resolved)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	resolved, err = transferhook.ResolveExtraAccountMetas(cancelled, env.fetcher, metas, nil, env.instructionData, testProgram)
	assert.Equal(t, context.Canceled, err)
	assert.Nil(t, resolved)
}
