package transferhook

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

// KeyDataSource selects where a key-from-data extra account meta reads its
// address from.
type KeyDataSource uint8

const (
	KeyDataSourceInstructionData KeyDataSource = iota + 1
	KeyDataSourceAccountData
)

// KeyData is the address config of a key-from-data extra account meta.
//
// Layouts:
//   - InstructionData: 1 | offset
//   - AccountData:     2 | index | offset
type KeyData struct {
	Source KeyDataSource
	// Index of the account whose data holds the key. Only used by
	// KeyDataSourceAccountData.
	Index  uint8
	Offset uint8
}

func NewInstructionKeyData(offset uint8) KeyData {
	return KeyData{Source: KeyDataSourceInstructionData, Offset: offset}
}

func NewAccountKeyData(index, offset uint8) KeyData {
	return KeyData{Source: KeyDataSourceAccountData, Index: index, Offset: offset}
}

func (k KeyData) Marshal() AddressConfig {
	var config AddressConfig

	config[0] = byte(k.Source)
	switch k.Source {
	case KeyDataSourceInstructionData:
		config[1] = k.Offset
	case KeyDataSourceAccountData:
		config[1] = k.Index
		config[2] = k.Offset
	}

	return config
}

func DecodeKeyData(config AddressConfig) (KeyData, error) {
	switch KeyDataSource(config[0]) {
	case KeyDataSourceInstructionData:
		return NewInstructionKeyData(config[1]), nil
	case KeyDataSourceAccountData:
		return NewAccountKeyData(config[1], config[2]), nil
	default:
		return KeyData{}, errors.Wrapf(ErrMalformedEncoding, "unknown key data source: %d", config[0])
	}
}

// Extract reads the 32 byte key from the configured source.
func (k KeyData) Extract(ctx context.Context, fetcher AccountFetcher, accounts []solana.AccountMeta, data []byte) (ed25519.PublicKey, error) {
	var source []byte
	var name string

	switch k.Source {
	case KeyDataSourceInstructionData:
		source, name = data, "instruction data"
	case KeyDataSourceAccountData:
		accountData, err := fetchAccountData(ctx, fetcher, accounts, k.Index)
		if err != nil {
			return nil, err
		}
		source, name = accountData, "account data"
	default:
		return nil, errors.Wrapf(ErrMalformedEncoding, "unknown key data source: %d", k.Source)
	}

	return sliceData(source, k.Offset, ed25519.PublicKeySize, name)
}
