package transferhook

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

var (
	// ErrMalformedEncoding indicates an entry, list or seed configuration
	// could not be decoded.
	ErrMalformedEncoding = errors.New("malformed encoding")
	// ErrOutOfBounds indicates a slice of instruction or account data exceeds
	// the source buffer.
	ErrOutOfBounds = errors.New("data slice out of bounds")
	// ErrIndexOutOfRange indicates an account index exceeds the accounts
	// resolved so far.
	ErrIndexOutOfRange = errors.New("account index out of range")
	// ErrAccountNotFound indicates a required account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNoValidAddress indicates no bump seed produced a valid program
	// derived address.
	ErrNoValidAddress = solana.ErrNoValidAddress
	// ErrMissingRequiredAccount indicates the instruction is missing one of
	// the source, mint, destination or authority accounts.
	ErrMissingRequiredAccount = errors.New("missing required account in instruction")
	// ErrInvalidAccountData indicates the validation state account does not
	// hold an extra account meta list for the execute instruction.
	ErrInvalidAccountData = errors.New("invalid validation state account data")
)

// ResolutionError identifies the entry of an extra account meta list that
// failed to resolve.
type ResolutionError struct {
	Index         int
	Discriminator uint8
	Err           error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve extra account meta %d (discriminator %d): %v", e.Index, e.Discriminator, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ValidationStateError reports a validation state account that does not hold
// an extra account meta list for the execute instruction. It matches
// ErrInvalidAccountData and unwraps to the decode failure.
type ValidationStateError struct {
	Address ed25519.PublicKey
	Err     error
}

func (e *ValidationStateError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrInvalidAccountData, base58.Encode(e.Address), e.Err)
}

func (e *ValidationStateError) Is(target error) bool {
	return target == ErrInvalidAccountData
}

func (e *ValidationStateError) Unwrap() error {
	return e.Err
}
