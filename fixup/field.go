package fixup

import (
	"encoding/binary"
	"fmt"
	"math"
)

// field a fixed-width little-endian field of the GPT header
type field struct {
	name   string
	offset int
	size   int
}

var (
	fieldSignature             = field{"signature", 0x00, 8}
	fieldHeaderCRC             = field{"header_crc32", 0x10, 4}
	fieldCurrentLBA            = field{"current_lba", 0x18, 8}
	fieldBackupLBA             = field{"backup_lba", 0x20, 8}
	fieldFirstUsableLBA        = field{"first_usable_lba", 0x28, 8}
	fieldLastUsableLBA         = field{"last_usable_lba", 0x30, 8}
	fieldPartitionEntriesLBA   = field{"partition_entries_lba", 0x48, 8}
	fieldNumPartitionEntries   = field{"num_partition_entries", 0x50, 4}
	fieldPartitionEntrySize    = field{"partition_entry_size", 0x54, 4}
	fieldPartitionEntriesCRC32 = field{"partition_entries_crc32", 0x58, 4}
)

// FieldBoundsError a field does not fit in the buffer it is read from or written to,
// or the value does not fit in the field
type FieldBoundsError struct {
	field  string
	offset int
	size   int
	length int
	value  uint64
}

func (e *FieldBoundsError) Error() string {
	if e.offset+e.size <= e.length {
		return fmt.Sprintf("value %d does not fit in %d byte field %s", e.value, e.size, e.field)
	}
	return fmt.Sprintf("field %s at offset %d of size %d exceeds buffer of %d bytes", e.field, e.offset, e.size, e.length)
}

func checkBounds(b []byte, f field) error {
	if f.offset < 0 || f.offset+f.size > len(b) {
		return &FieldBoundsError{field: f.name, offset: f.offset, size: f.size, length: len(b)}
	}
	return nil
}

// putField encode v little-endian into the bytes of f
func putField(b []byte, f field, v uint64) error {
	if err := checkBounds(b, f); err != nil {
		return err
	}
	dst := b[f.offset : f.offset+f.size]
	switch f.size {
	case 4:
		if v > math.MaxUint32 {
			return &FieldBoundsError{field: f.name, offset: f.offset, size: f.size, length: len(b), value: v}
		}
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	default:
		return fmt.Errorf("field %s has unsupported width %d", f.name, f.size)
	}
	return nil
}

// getField decode the little-endian value of f
func getField(b []byte, f field) (uint64, error) {
	if err := checkBounds(b, f); err != nil {
		return 0, err
	}
	src := b[f.offset : f.offset+f.size]
	switch f.size {
	case 4:
		return uint64(binary.LittleEndian.Uint32(src)), nil
	case 8:
		return binary.LittleEndian.Uint64(src), nil
	default:
		return 0, fmt.Errorf("field %s has unsupported width %d", f.name, f.size)
	}
}

// headerImage an in-memory GPT header being patched. The first failed get or set
// is remembered in err and turns every later call into a no-op.
type headerImage struct {
	b   []byte
	err error
}

func (h *headerImage) get(f field) uint64 {
	if h.err != nil {
		return 0
	}
	var v uint64
	v, h.err = getField(h.b, f)
	return v
}

func (h *headerImage) set(f field, v uint64) {
	if h.err != nil {
		return
	}
	h.err = putField(h.b, f, v)
}
