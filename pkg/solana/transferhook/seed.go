package transferhook

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
)

// AddressConfigSize is the size of the address configuration carried by
// every extra account meta.
const AddressConfigSize = 32

// AddressConfig is interpreted according to the discriminator of the
// ExtraAccountMeta that carries it: a literal address, a packed sequence of
// seeds, or a key-from-data configuration.
type AddressConfig [AddressConfigSize]byte

type SeedKind uint8

const (
	SeedKindUninitialized SeedKind = iota
	SeedKindLiteral
	SeedKindInstructionData
	SeedKindAccountKey
	SeedKindAccountData
)

func (k SeedKind) String() string {
	switch k {
	case SeedKindUninitialized:
		return "uninitialized"
	case SeedKindLiteral:
		return "literal"
	case SeedKindInstructionData:
		return "instruction_data"
	case SeedKindAccountKey:
		return "account_key"
	case SeedKindAccountData:
		return "account_data"
	default:
		return "unknown"
	}
}

// Seed is a single seed fragment of a program derived address.
//
// Layouts:
//   - Literal:         1 | length | bytes
//   - InstructionData: 2 | offset | length
//   - AccountKey:      3 | index
//   - AccountData:     4 | index | offset | length
type Seed struct {
	Kind SeedKind

	// Bytes is set for literal seeds.
	Bytes []byte

	// Index is the position of an account within the accounts resolved so
	// far, used by account key and account data seeds.
	Index uint8

	// Offset and Length select a slice of instruction or account data.
	Offset uint8
	Length uint8
}

func NewLiteralSeed(b []byte) Seed {
	return Seed{Kind: SeedKindLiteral, Bytes: b}
}

func NewInstructionDataSeed(offset, length uint8) Seed {
	return Seed{Kind: SeedKindInstructionData, Offset: offset, Length: length}
}

func NewAccountKeySeed(index uint8) Seed {
	return Seed{Kind: SeedKindAccountKey, Index: index}
}

func NewAccountDataSeed(index, offset, length uint8) Seed {
	return Seed{Kind: SeedKindAccountData, Index: index, Offset: offset, Length: length}
}

// Size returns the number of bytes the seed occupies in an address config.
func (s Seed) Size() int {
	switch s.Kind {
	case SeedKindLiteral:
		return 2 + len(s.Bytes)
	case SeedKindInstructionData:
		return 3
	case SeedKindAccountKey:
		return 2
	case SeedKindAccountData:
		return 4
	default:
		return 0
	}
}

func (s Seed) marshal() ([]byte, error) {
	switch s.Kind {
	case SeedKindLiteral:
		if len(s.Bytes) > math.MaxUint8 {
			return nil, errors.Wrapf(ErrMalformedEncoding, "literal seed too long: %d", len(s.Bytes))
		}
		return append([]byte{byte(s.Kind), byte(len(s.Bytes))}, s.Bytes...), nil
	case SeedKindInstructionData:
		return []byte{byte(s.Kind), s.Offset, s.Length}, nil
	case SeedKindAccountKey:
		return []byte{byte(s.Kind), s.Index}, nil
	case SeedKindAccountData:
		return []byte{byte(s.Kind), s.Index, s.Offset, s.Length}, nil
	default:
		return nil, errors.Wrapf(ErrMalformedEncoding, "unknown seed kind: %d", s.Kind)
	}
}

// EncodeSeeds packs seeds into an address config, zero padding the
// remainder.
func EncodeSeeds(seeds ...Seed) (AddressConfig, error) {
	var config AddressConfig

	var offset int
	for _, s := range seeds {
		b, err := s.marshal()
		if err != nil {
			return config, err
		}
		if offset+len(b) > AddressConfigSize {
			return config, errors.Wrap(ErrMalformedEncoding, "seeds exceed address config size")
		}
		offset += copy(config[offset:], b)
	}

	return config, nil
}

// DecodeSeeds unpacks the seeds of an address config, stopping at the first
// uninitialized tag or at the end of the config.
func DecodeSeeds(config AddressConfig) ([]Seed, error) {
	var seeds []Seed

	var offset int
	for offset < AddressConfigSize {
		seed, n, err := decodeSeed(config[offset:])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid seed at offset %d", offset)
		}
		if seed == nil {
			break
		}

		seeds = append(seeds, *seed)
		offset += n
	}

	return seeds, nil
}

// decodeSeed decodes the seed at the start of b, returning the number of
// bytes consumed. A nil seed marks the end of the packed seeds.
func decodeSeed(b []byte) (*Seed, int, error) {
	if len(b) == 0 || SeedKind(b[0]) == SeedKindUninitialized {
		return nil, 0, nil
	}

	kind := SeedKind(b[0])
	size, ok := fixedSeedSizes[kind]
	if !ok {
		return nil, 0, errors.Wrapf(ErrMalformedEncoding, "unknown seed kind: %d", b[0])
	}
	if len(b) < size {
		return nil, 0, errors.Wrapf(ErrMalformedEncoding, "truncated %s seed", kind)
	}

	switch kind {
	case SeedKindLiteral:
		length := int(b[1])
		if size+length > len(b) {
			return nil, 0, errors.Wrapf(ErrMalformedEncoding, "literal seed of length %d overruns address config", length)
		}

		literal := make([]byte, length)
		copy(literal, b[size:size+length])
		return &Seed{Kind: kind, Bytes: literal}, size + length, nil
	case SeedKindInstructionData:
		return &Seed{Kind: kind, Offset: b[1], Length: b[2]}, size, nil
	case SeedKindAccountKey:
		return &Seed{Kind: kind, Index: b[1]}, size, nil
	default:
		return &Seed{Kind: kind, Index: b[1], Offset: b[2], Length: b[3]}, size, nil
	}
}

// fixedSeedSizes excludes the literal payload.
var fixedSeedSizes = map[SeedKind]int{
	SeedKindLiteral:         2,
	SeedKindInstructionData: 3,
	SeedKindAccountKey:      2,
	SeedKindAccountData:     4,
}

// Extract produces the seed bytes given the instruction data and the accounts
// resolved so far. Account data seeds fetch the referenced account.
func (s Seed) Extract(ctx context.Context, fetcher AccountFetcher, accounts []solana.AccountMeta, data []byte) ([]byte, error) {
	switch s.Kind {
	case SeedKindLiteral:
		return s.Bytes, nil
	case SeedKindInstructionData:
		return sliceData(data, s.Offset, s.Length, "instruction data")
	case SeedKindAccountKey:
		account, err := accountAt(accounts, s.Index)
		if err != nil {
			return nil, err
		}
		return account.PublicKey, nil
	case SeedKindAccountData:
		accountData, err := fetchAccountData(ctx, fetcher, accounts, s.Index)
		if err != nil {
			return nil, err
		}
		return sliceData(accountData, s.Offset, s.Length, "account data")
	default:
		return nil, errors.Wrapf(ErrMalformedEncoding, "unknown seed kind: %d", s.Kind)
	}
}

func accountAt(accounts []solana.AccountMeta, index uint8) (solana.AccountMeta, error) {
	if int(index) >= len(accounts) {
		return solana.AccountMeta{}, errors.Wrapf(ErrIndexOutOfRange, "index %d with %d accounts", index, len(accounts))
	}
	return accounts[index], nil
}

func fetchAccountData(ctx context.Context, fetcher AccountFetcher, accounts []solana.AccountMeta, index uint8) ([]byte, error) {
	account, err := accountAt(accounts, index)
	if err != nil {
		return nil, err
	}

	info, err := fetcher.FetchAccount(ctx, account.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch account at index %d", index)
	}
	if info == nil {
		return nil, errors.Wrapf(ErrAccountNotFound, "account at index %d", index)
	}

	return info.Data, nil
}

func sliceData(data []byte, offset, length uint8, source string) ([]byte, error) {
	end := int(offset) + int(length)
	if end > len(data) {
		return nil, errors.Wrapf(ErrOutOfBounds, "%s[%d:%d] with length %d", source, offset, end, len(data))
	}

	b := make([]byte, length)
	copy(b, data[offset:end])
	return b, nil
}
