package transferhook

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// ExtraAccountMetaSize is the encoded size of an ExtraAccountMeta.
const ExtraAccountMetaSize = 1 + AddressConfigSize + 1 + 1

const (
	DiscriminatorFixed   uint8 = 0
	DiscriminatorPDA     uint8 = 1
	DiscriminatorKeyData uint8 = 2

	// Discriminators with the high bit set derive an address under the
	// program found at index (discriminator & externalProgramIndexMask).
	externalPDAFlag          uint8 = 1 << 7
	externalProgramIndexMask uint8 = externalPDAFlag - 1
)

type MetaKind uint8

const (
	MetaKindUnknown MetaKind = iota
	// Literal address.
	MetaKindFixed
	// Address derived under the hook program.
	MetaKindPDA
	// Address read from instruction or account data.
	MetaKindKeyData
	// Address derived under a program resolved at an earlier index.
	MetaKindExternalPDA
)

func (k MetaKind) String() string {
	switch k {
	case MetaKindFixed:
		return "fixed"
	case MetaKindPDA:
		return "pda"
	case MetaKindKeyData:
		return "key_data"
	case MetaKindExternalPDA:
		return "external_pda"
	default:
		return "unknown"
	}
}

// ExtraAccountMeta describes how to locate one additional account required
// by a transfer hook program.
//
// Layout: discriminator (1) | address config (32) | is signer (1) | is writable (1)
type ExtraAccountMeta struct {
	Discriminator uint8
	AddressConfig AddressConfig
	IsSigner      bool
	IsWritable    bool
}

func NewFixedExtraAccountMeta(address ed25519.PublicKey, isSigner, isWritable bool) ExtraAccountMeta {
	m := ExtraAccountMeta{
		Discriminator: DiscriminatorFixed,
		IsSigner:      isSigner,
		IsWritable:    isWritable,
	}
	copy(m.AddressConfig[:], address)
	return m
}

func NewPDAExtraAccountMeta(seeds []Seed, isSigner, isWritable bool) (ExtraAccountMeta, error) {
	config, err := EncodeSeeds(seeds...)
	if err != nil {
		return ExtraAccountMeta{}, err
	}

	return ExtraAccountMeta{
		Discriminator: DiscriminatorPDA,
		AddressConfig: config,
		IsSigner:      isSigner,
		IsWritable:    isWritable,
	}, nil
}

// NewExternalPDAExtraAccountMeta creates a meta for an address derived under
// the program at programIndex among the accounts resolved so far.
func NewExternalPDAExtraAccountMeta(programIndex uint8, seeds []Seed, isSigner, isWritable bool) (ExtraAccountMeta, error) {
	if programIndex > externalProgramIndexMask {
		return ExtraAccountMeta{}, errors.Wrapf(ErrMalformedEncoding, "program index too large: %d", programIndex)
	}

	config, err := EncodeSeeds(seeds...)
	if err != nil {
		return ExtraAccountMeta{}, err
	}

	return ExtraAccountMeta{
		Discriminator: externalPDAFlag | programIndex,
		AddressConfig: config,
		IsSigner:      isSigner,
		IsWritable:    isWritable,
	}, nil
}

func NewKeyDataExtraAccountMeta(keyData KeyData, isSigner, isWritable bool) ExtraAccountMeta {
	return ExtraAccountMeta{
		Discriminator: DiscriminatorKeyData,
		AddressConfig: keyData.Marshal(),
		IsSigner:      isSigner,
		IsWritable:    isWritable,
	}
}

// Kind classifies the meta by its discriminator.
func (m ExtraAccountMeta) Kind() MetaKind {
	switch {
	case m.Discriminator == DiscriminatorFixed:
		return MetaKindFixed
	case m.Discriminator == DiscriminatorPDA:
		return MetaKindPDA
	case m.Discriminator == DiscriminatorKeyData:
		return MetaKindKeyData
	case m.Discriminator&externalPDAFlag != 0:
		return MetaKindExternalPDA
	default:
		return MetaKindUnknown
	}
}

// ProgramIndex returns the index of the deriving program for external PDAs.
func (m ExtraAccountMeta) ProgramIndex() (uint8, bool) {
	if m.Kind() != MetaKindExternalPDA {
		return 0, false
	}
	return m.Discriminator & externalProgramIndexMask, true
}

func (m ExtraAccountMeta) Marshal() []byte {
	b := make([]byte, ExtraAccountMetaSize)

	b[0] = m.Discriminator
	copy(b[1:], m.AddressConfig[:])
	if m.IsSigner {
		b[1+AddressConfigSize] = 1
	}
	if m.IsWritable {
		b[2+AddressConfigSize] = 1
	}

	return b
}

func (m *ExtraAccountMeta) Unmarshal(b []byte) error {
	if len(b) != ExtraAccountMetaSize {
		return errors.Wrapf(ErrMalformedEncoding, "invalid extra account meta size: %d", len(b))
	}

	isSigner, err := decodeBool(b[1+AddressConfigSize])
	if err != nil {
		return errors.Wrap(err, "invalid is signer flag")
	}
	isWritable, err := decodeBool(b[2+AddressConfigSize])
	if err != nil {
		return errors.Wrap(err, "invalid is writable flag")
	}

	m.Discriminator = b[0]
	copy(m.AddressConfig[:], b[1:1+AddressConfigSize])
	m.IsSigner = isSigner
	m.IsWritable = isWritable

	return nil
}

func decodeBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Wrapf(ErrMalformedEncoding, "invalid bool: %d", b)
	}
}
