package fixup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetField(t *testing.T) {
	tests := []struct {
		name  string
		f     field
		value uint64
		bytes []byte
	}{
		{"uint32", fieldHeaderCRC, 0x11223344, []byte{0x44, 0x33, 0x22, 0x11}},
		{"uint64", fieldBackupLBA, 0x0102030405060708, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}},
		{"last field", fieldPartitionEntriesCRC32, 0xdeadbeef, []byte{0xef, 0xbe, 0xad, 0xde}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, HeaderSize)
			require.NoError(t, putField(b, tt.f, tt.value))
			assert.Equal(t, tt.bytes, b[tt.f.offset:tt.f.offset+tt.f.size])
			// nothing outside the field is touched
			assert.Equal(t, make([]byte, tt.f.offset), b[:tt.f.offset])
			assert.Equal(t, make([]byte, HeaderSize-tt.f.offset-tt.f.size), b[tt.f.offset+tt.f.size:])
			v, err := getField(b, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
		})
	}
}

func TestFieldBounds(t *testing.T) {
	t.Run("short buffer", func(t *testing.T) {
		b := make([]byte, fieldPartitionEntriesCRC32.offset+3)
		err := putField(b, fieldPartitionEntriesCRC32, 1)
		var fbe *FieldBoundsError
		require.True(t, errors.As(err, &fbe), "expected FieldBoundsError, got %v", err)
		assert.Contains(t, err.Error(), "exceeds buffer")
		assert.Equal(t, make([]byte, len(b)), b)

		_, err = getField(b, fieldPartitionEntriesCRC32)
		assert.True(t, errors.As(err, &fbe))
	})
	t.Run("value too large", func(t *testing.T) {
		b := make([]byte, HeaderSize)
		err := putField(b, fieldNumPartitionEntries, 1<<32)
		var fbe *FieldBoundsError
		require.True(t, errors.As(err, &fbe))
		assert.Contains(t, err.Error(), "does not fit")
	})
	t.Run("negative offset", func(t *testing.T) {
		err := putField(make([]byte, HeaderSize), field{"bogus", -1, 4}, 1)
		assert.Error(t, err)
	})
}

func TestHeaderImageStickyError(t *testing.T) {
	h := &headerImage{b: make([]byte, 0x20)}
	h.set(fieldHeaderCRC, 7)
	assert.NoError(t, h.err)
	h.set(fieldLastUsableLBA, 9)
	require.Error(t, h.err)
	first := h.err
	// later calls neither panic nor replace the first error
	h.set(fieldHeaderCRC, 8)
	assert.Equal(t, uint64(0), h.get(fieldHeaderCRC))
	assert.Equal(t, first, h.err)
	assert.Equal(t, byte(7), h.b[0x10])
}
