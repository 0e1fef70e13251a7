package transferhook

import (
	"github.com/pkg/errors"

	"github.com/code-payments/transfer-hook-client/pkg/solana/binary"
)

const (
	discriminatorSize  = 8
	listHeaderSize     = discriminatorSize + 4 + 4
	listCountFieldSize = 4
)

// ExtraAccountMetaList is the state held by a validation state account.
//
// Layout: discriminator (8) | length (4) | count (4) | count * ExtraAccountMeta
type ExtraAccountMetaList struct {
	// Discriminator of the instruction the list applies to.
	Discriminator [discriminatorSize]byte
	// Length of the payload following the length field.
	Length  uint32
	Entries []ExtraAccountMeta
}

// NewExtraAccountMetaList returns a list with a consistent length field.
func NewExtraAccountMetaList(discriminator [discriminatorSize]byte, entries ...ExtraAccountMeta) *ExtraAccountMetaList {
	return &ExtraAccountMetaList{
		Discriminator: discriminator,
		Length:        uint32(listCountFieldSize + len(entries)*ExtraAccountMetaSize),
		Entries:       entries,
	}
}

func (l *ExtraAccountMetaList) Marshal() []byte {
	b := make([]byte, listHeaderSize+len(l.Entries)*ExtraAccountMetaSize)

	var offset int
	offset += copy(b, l.Discriminator[:])
	binary.PutUint32(b[offset:], l.Length, &offset)
	binary.PutUint32(b[offset:], uint32(len(l.Entries)), &offset)
	for _, entry := range l.Entries {
		offset += copy(b[offset:], entry.Marshal())
	}

	return b
}

// Unmarshal decodes the header and exactly count entries. The length field
// is carried as is and not checked against count. Trailing bytes are ignored.
func (l *ExtraAccountMetaList) Unmarshal(b []byte) error {
	if len(b) < listHeaderSize {
		return errors.Wrapf(ErrMalformedEncoding, "invalid extra account meta list size: %d", len(b))
	}

	var offset int
	var discriminator [discriminatorSize]byte
	offset += copy(discriminator[:], b)

	var length, count uint32
	binary.GetUint32(b[offset:], &length, &offset)
	binary.GetUint32(b[offset:], &count, &offset)

	if uint64(len(b)-offset) < uint64(count)*ExtraAccountMetaSize {
		return errors.Wrapf(ErrMalformedEncoding, "%d entries do not fit in %d bytes", count, len(b)-offset)
	}

	entries := make([]ExtraAccountMeta, count)
	for i := range entries {
		if err := entries[i].Unmarshal(b[offset : offset+ExtraAccountMetaSize]); err != nil {
			return errors.Wrapf(err, "invalid entry %d", i)
		}
		offset += ExtraAccountMetaSize
	}

	l.Discriminator = discriminator
	l.Length = length
	l.Entries = entries
	return nil
}
