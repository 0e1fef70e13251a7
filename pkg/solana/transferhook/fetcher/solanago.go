package fetcher

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"net/http"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/retry"
	"github.com/code-payments/transfer-hook-client/pkg/retry/backoff"
	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook"
)

const (
	// Reference: https://github.com/solana-labs/solana/blob/master/rpc-client-api/src/custom_error.rs
	rpcNodeUnhealthyCode = -32005
)

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

type solanaGoFetcher struct {
	client      *rpc.Client
	commitment  rpc.CommitmentType
	maxAttempts uint
}

// NewSolanaGoFetcher returns an AccountFetcher backed by a solana-go RPC
// client. Requests honour context cancellation and transient failures are
// retried with backoff up to maxAttempts.
func NewSolanaGoFetcher(client *rpc.Client, commitment solana.Commitment, maxAttempts uint) transferhook.AccountFetcher {
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	return &solanaGoFetcher{
		client:      client,
		commitment:  rpc.CommitmentType(commitment.Commitment),
		maxAttempts: maxAttempts,
	}
}

func (f *solanaGoFetcher) FetchAccount(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	var result *rpc.GetAccountInfoResult
	_, err := retry.Retry(
		func() (err error) {
			result, err = f.client.GetAccountInfoWithOpts(ctx, solanago.PublicKeyFromBytes(address), &rpc.GetAccountInfoOpts{
				Encoding:   solanago.EncodingBase64,
				Commitment: f.commitment,
			})
			return classifyRPCError(err)
		},
		retry.Context(ctx),
		retry.RetriableErrors(errRateLimited, errServiceError),
		retry.Limit(f.maxAttempts),
		retry.BackoffWithJitter(backoff.BinaryExponential(100*time.Millisecond), 2*time.Second, 0.1),
	)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, transferhook.ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}
	if result == nil || result.Value == nil {
		return nil, transferhook.ErrAccountNotFound
	}

	info := &solana.AccountInfo{
		Owner:      ed25519.PublicKey(result.Value.Owner.Bytes()),
		Lamports:   result.Value.Lamports,
		Executable: result.Value.Executable,
	}
	if result.Value.Data != nil {
		info.Data = result.Value.Data.GetBinary()
	}

	return info, nil
}

// classifyRPCError marks rate limiting, server side failures and transport
// errors as retriable. Everything else, including rpc.ErrNotFound, is
// returned as is.
func classifyRPCError(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", errRateLimited, err)
		}
		if rpcErr.Code >= http.StatusInternalServerError || rpcErr.Code == rpcNodeUnhealthyCode {
			return fmt.Errorf("%w: %w", errServiceError, err)
		}
		return err
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", errRateLimited, err)
		}
		if httpErr.Code >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", errServiceError, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", errServiceError, err)
	}

	return err
}
