package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana/binary"
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L125
const AccountSize = 165

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L88
const MintSize = 82

// Reference: https://github.com/solana-labs/solana-program-library/blob/8944f428fe693c3a4226bf766a79be9c75e8e520/token/program/src/state.rs#L214
const MultisigAccountSize = 355

const optionSize = 4

var (
	ErrInvalidMint      = errors.New("invalid mint")
	ErrInvalidExtension = errors.New("invalid extension")
)

type Mint struct {
	// Optional authority used to mint new tokens.
	MintAuthority ed25519.PublicKey
	// Total supply of tokens.
	Supply uint64
	// Number of base 10 digits to the right of the decimal place.
	Decimals uint8
	IsInitialized bool
	// Optional authority to freeze token accounts.
	FreezeAuthority ed25519.PublicKey

	// Token-2022 extensions, present only when the mint is owned by the
	// token program with extensions.
	Extensions []Extension
}

func (m *Mint) Marshal() []byte {
	size := MintSize
	if len(m.Extensions) > 0 {
		size = AccountSize + accountTypeSize
		for _, e := range m.Extensions {
			size += tlvHeaderSize + len(e.Value)
		}
	}

	b := make([]byte, size)

	var offset int
	binary.PutOptionalKey32(b[offset:], m.MintAuthority, &offset, optionSize)
	binary.PutUint64(b[offset:], m.Supply, &offset)
	binary.PutUint8(b[offset:], m.Decimals, &offset)
	binary.PutBool(b[offset:], m.IsInitialized, &offset)
	binary.PutOptionalKey32(b[offset:], m.FreezeAuthority, &offset, optionSize)

	if len(m.Extensions) == 0 {
		return b
	}

	offset = AccountSize
	binary.PutUint8(b[offset:], uint8(AccountTypeMint), &offset)
	for _, e := range m.Extensions {
		binary.PutUint16(b[offset:], uint16(e.Type), &offset)
		binary.PutUint16(b[offset:], uint16(len(e.Value)), &offset)
		offset += copy(b[offset:], e.Value)
	}

	return b
}

func (m *Mint) Unmarshal(b []byte) error {
	if len(b) < MintSize {
		return errors.Wrapf(ErrInvalidMint, "invalid size: %d", len(b))
	}

	*m = Mint{}

	var offset int
	binary.GetOptionalKey32(b[offset:], &m.MintAuthority, &offset, optionSize)
	binary.GetUint64(b[offset:], &m.Supply, &offset)
	binary.GetUint8(b[offset:], &m.Decimals, &offset)
	binary.GetBool(b[offset:], &m.IsInitialized, &offset)
	binary.GetOptionalKey32(b[offset:], &m.FreezeAuthority, &offset, optionSize)

	if len(b) == MintSize {
		return nil
	}

	if len(b) <= AccountSize || len(b) == MultisigAccountSize {
		return errors.Wrapf(ErrInvalidMint, "invalid size: %d", len(b))
	}
	if AccountType(b[AccountSize]) != AccountTypeMint {
		return errors.Wrapf(ErrInvalidMint, "unexpected account type: %d", b[AccountSize])
	}

	extensions, err := parseExtensions(b[AccountSize+accountTypeSize:])
	if err != nil {
		return err
	}
	m.Extensions = extensions
	return nil
}

// GetExtension returns the first extension of the provided type, if any.
func (m *Mint) GetExtension(t ExtensionType) (Extension, bool) {
	for _, e := range m.Extensions {
		if e.Type == t {
			return e, true
		}
	}
	return Extension{}, false
}

// GetTransferHook returns the decoded transfer hook extension, if the mint
// has one configured.
func (m *Mint) GetTransferHook() (*TransferHook, error) {
	e, ok := m.GetExtension(ExtensionTypeTransferHook)
	if !ok {
		return nil, nil
	}

	var hook TransferHook
	if err := hook.Unmarshal(e.Value); err != nil {
		return nil, err
	}
	return &hook, nil
}

// GetTransferHookProgram returns the hook program configured on the mint,
// or nil if there is none.
func (m *Mint) GetTransferHookProgram() (ed25519.PublicKey, error) {
	hook, err := m.GetTransferHook()
	if err != nil || hook == nil {
		return nil, err
	}
	return hook.ProgramID, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/1a9c7a8ff2b7e4b2d6f6c1f3ea7c1ee5f0f4b0b8/token/program-2022/src/extension/transfer_hook/mod.rs
const TransferHookSize = 2 * ed25519.PublicKeySize

type TransferHook struct {
	// Authority that can set the transfer hook program id. Nil if unset.
	Authority ed25519.PublicKey
	// Program that authorizes the transfer. Nil if unset.
	ProgramID ed25519.PublicKey
}

func (h *TransferHook) Marshal() []byte {
	b := make([]byte, TransferHookSize)

	var offset int
	binary.PutKey32(b[offset:], h.Authority, &offset)
	binary.PutKey32(b[offset:], h.ProgramID, &offset)

	return b
}

func (h *TransferHook) Unmarshal(b []byte) error {
	if len(b) != TransferHookSize {
		return errors.Wrapf(ErrInvalidExtension, "invalid transfer hook size: %d", len(b))
	}

	var offset int
	binary.GetKey32(b[offset:], &h.Authority, &offset)
	binary.GetKey32(b[offset:], &h.ProgramID, &offset)

	// Token-2022 encodes unset optional keys as all zeros.
	if isZeroKey(h.Authority) {
		h.Authority = nil
	}
	if isZeroKey(h.ProgramID) {
		h.ProgramID = nil
	}

	return nil
}

func isZeroKey(key ed25519.PublicKey) bool {
	return bytes.Equal(key, make([]byte, ed25519.PublicKeySize))
}
