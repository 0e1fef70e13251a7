package token

import (
	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana/binary"
)

// AccountType is the byte written after the base account layout by the token
// program with extensions.
type AccountType byte

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeMint
	AccountTypeAccount
)

const (
	accountTypeSize = 1
	tlvHeaderSize   = 4
)

// ExtensionType identifies a Token-2022 TLV extension.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/1a9c7a8ff2b7e4b2d6f6c1f3ea7c1ee5f0f4b0b8/token/program-2022/src/extension/mod.rs
type ExtensionType uint16

const (
	ExtensionTypeUninitialized ExtensionType = iota
	ExtensionTypeTransferFeeConfig
	ExtensionTypeTransferFeeAmount
	ExtensionTypeMintCloseAuthority
	ExtensionTypeConfidentialTransferMint
	ExtensionTypeConfidentialTransferAccount
	ExtensionTypeDefaultAccountState
	ExtensionTypeImmutableOwner
	ExtensionTypeMemoTransfer
	ExtensionTypeNonTransferable
	ExtensionTypeInterestBearingConfig
	ExtensionTypeCpiGuard
	ExtensionTypePermanentDelegate
	ExtensionTypeNonTransferableAccount
	ExtensionTypeTransferHook
	ExtensionTypeTransferHookAccount
)

type Extension struct {
	Type  ExtensionType
	Value []byte
}

// parseExtensions walks the TLV region that follows the account type byte.
// An uninitialized type marks the start of unused padding.
func parseExtensions(b []byte) ([]Extension, error) {
	var extensions []Extension

	var offset int
	for offset+tlvHeaderSize <= len(b) {
		var extensionType, length uint16
		binary.GetUint16(b[offset:], &extensionType, &offset)
		binary.GetUint16(b[offset:], &length, &offset)

		if ExtensionType(extensionType) == ExtensionTypeUninitialized {
			break
		}

		if offset+int(length) > len(b) {
			return nil, errors.Wrapf(ErrInvalidExtension, "extension %d overruns account data", extensionType)
		}

		value := make([]byte, length)
		copy(value, b[offset:offset+int(length)])
		offset += int(length)

		extensions = append(extensions, Extension{
			Type:  ExtensionType(extensionType),
			Value: value,
		})
	}

	return extensions, nil
}
