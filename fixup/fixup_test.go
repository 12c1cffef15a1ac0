package fixup_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diskfs/go-gptfixup/disk"
	"github.com/diskfs/go-gptfixup/fixup"
	"github.com/diskfs/go-gptfixup/partition/gpt"
	"github.com/diskfs/go-gptfixup/testhelper"
	"github.com/diskfs/go-gptfixup/util"
)

const (
	oneMB = 1024 * 1024
)

// tmpDisk a file of size bytes with image written at its start
func tmpDisk(t *testing.T, image []byte, size int64) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(size))
	_, err = f.WriteAt(image, 0)
	require.NoError(t, err)
	return p
}

func smallImage(size int64, sectorSize int) *testhelper.GPTImage {
	return testhelper.NewGPTImage(size, sectorSize).
		AddPartition("boot", 40, 99).
		AddPartition("rootfs", 100, 199)
}

func readAt(t *testing.T, p string, offset int64, size int) []byte {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	b := make([]byte, size)
	_, err = f.ReadAt(b, offset)
	require.NoError(t, err)
	return b
}

// headerCRCValid zeroing the stored checksum and recomputing gives the stored checksum
func headerCRCValid(hdr []byte) bool {
	b := append([]byte{}, hdr[:fixup.HeaderSize]...)
	stored := binary.LittleEndian.Uint32(b[16:20])
	copy(b[16:20], []byte{0, 0, 0, 0})
	return crc32.ChecksumIEEE(b) == stored
}

func checkFixedDisk(t *testing.T, p string, sectorSize int, size int64, array []byte) *gpt.Table {
	t.Helper()
	ss := int64(sectorSize)
	total := uint64(size / ss)

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()

	table, err := gpt.Read(f, sectorSize)
	require.NoError(t, err)
	require.NoError(t, table.VerifyBackup(f))
	assert.Equal(t, size, table.DiskSize())
	assert.Equal(t, total-1, table.BackupHeaderLBA())
	assert.True(t, table.ProtectiveMBR)

	primary := readAt(t, p, ss, fixup.HeaderSize)
	backup := readAt(t, p, int64(total-1)*ss, fixup.HeaderSize)
	assert.True(t, headerCRCValid(primary), "primary header CRC32 does not validate")
	assert.True(t, headerCRCValid(backup), "backup header CRC32 does not validate")

	// current and backup LBAs swapped
	assert.Equal(t, binary.LittleEndian.Uint64(primary[0x18:]), binary.LittleEndian.Uint64(backup[0x20:]))
	assert.Equal(t, binary.LittleEndian.Uint64(primary[0x20:]), binary.LittleEndian.Uint64(backup[0x18:]))
	backupArrayLBA := binary.LittleEndian.Uint64(backup[0x48:])
	assert.Equal(t, table.LastUsableLBA()+1, backupArrayLBA)

	assert.Equal(t, array, readAt(t, p, int64(table.PartitionArrayLBA())*ss, len(array)), "primary partition array changed")
	assert.Equal(t, array, readAt(t, p, int64(backupArrayLBA)*ss, len(array)), "backup partition array is not a copy")

	mbr := readAt(t, p, 0, 512)
	expected := []byte{0x00, 0x00, 0x02, 0x00, 0xee, 0xff, 0xff, 0xff, 0x01, 0x00, 0x00, 0x00}
	assert.Equal(t, expected, mbr[0x1be:0x1ca])
	assert.Equal(t, uint32(total-1), binary.LittleEndian.Uint32(mbr[0x1ca:0x1ce]))
	assert.Equal(t, []byte{0x55, 0xaa}, mbr[510:512])
	return table
}

func TestFixupSmallerImage(t *testing.T) {
	const (
		imageSize  = 64 * oneMB
		deviceSize = 128 * oneMB
	)
	img := testhelper.NewGPTImage(imageSize, 512).
		AddPartition("EFI System", 2048, 4095).
		AddPartition("rootfs", 4096, 131038)
	p := tmpDisk(t, img.Build(), deviceSize)
	oldCRC := binary.LittleEndian.Uint32(readAt(t, p, 512, fixup.HeaderSize)[16:20])

	res, err := fixup.Fixup(p)
	require.NoError(t, err)

	table := checkFixedDisk(t, p, 512, deviceSize, img.PartitionArray())
	total := uint64(deviceSize / 512)
	assert.Equal(t, total-1, res.BackupHeaderLBA)
	assert.Equal(t, uint64(imageSize/512-1), res.OldBackupHeaderLBA)
	assert.Equal(t, uint64(34), table.FirstUsableLBA())
	assert.Equal(t, total-34, table.LastUsableLBA())
	assert.Equal(t, total-34, res.LastUsableLBA)
	assert.Equal(t, int64(512), res.SectorSize)
	assert.Equal(t, oldCRC, res.OldHeaderCRC)
	assert.NotEqual(t, oldCRC, table.HeaderChecksum())
	assert.Equal(t, res.HeaderCRC, table.HeaderChecksum())
	require.Len(t, table.Partitions, 2)
	assert.Equal(t, "rootfs", table.Partitions[1].Name)
}

func TestFixupIdempotent(t *testing.T) {
	for _, sectorSize := range []int{512, 4096} {
		t.Run(fmt.Sprintf("sector size %d", sectorSize), func(t *testing.T) {
			img := smallImage(2*oneMB, sectorSize)
			p := tmpDisk(t, img.Build(), 8*oneMB)

			_, err := fixup.Fixup(p, fixup.WithSectorSize(int64(sectorSize)))
			require.NoError(t, err)
			checkFixedDisk(t, p, sectorSize, 8*oneMB, img.PartitionArray())
			first, err := os.ReadFile(p)
			require.NoError(t, err)

			_, err = fixup.Fixup(p, fixup.WithSectorSize(int64(sectorSize)))
			require.NoError(t, err)
			second, err := os.ReadFile(p)
			require.NoError(t, err)
			if !bytes.Equal(first, second) {
				_, dump := util.DumpByteSlicesWithDiffs(first, second, 16)
				t.Fatalf("second fixup changed the device:\n%s", dump)
			}
		})
	}
}

func TestFixupAlreadyCorrect(t *testing.T) {
	// an image written by a GPT tool for the full device size needs no change at all
	img := smallImage(4*oneMB, 512)
	original := img.Build()
	p := tmpDisk(t, original, 4*oneMB)

	res, err := fixup.Fixup(p)
	require.NoError(t, err)
	assert.Equal(t, res.OldHeaderCRC, res.HeaderCRC)
	assert.Equal(t, res.OldLastUsableLBA, res.LastUsableLBA)

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	if different, dump := util.DumpByteSlicesWithDiffs(original, after, 16); different {
		t.Fatalf("fixup of a correct GPT changed the device:\n%s", dump)
	}
}

func TestFixupKeepsBootstrapCode(t *testing.T) {
	b := smallImage(oneMB, 512).Build()
	for i := 0; i < 446; i++ {
		b[i] = byte(i * 7)
	}
	// a stray legacy record is dropped
	b[0x1ce+4] = 0x83
	p := tmpDisk(t, b, 2*oneMB)

	_, err := fixup.Fixup(p)
	require.NoError(t, err)
	mbr := readAt(t, p, 0, 512)
	assert.Equal(t, b[:446], mbr[:446])
	assert.Equal(t, make([]byte, 48), mbr[0x1ce:0x1fe])
}

func TestFixupNotGPT(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(b []byte)
	}{
		{"blank", func(b []byte) { copy(b, make([]byte, len(b))) }},
		{"bad signature", func(b []byte) { copy(b[512:520], "EFI TRAP") }},
		{"no entries", func(b []byte) { binary.LittleEndian.PutUint32(b[512+0x50:], 0) }},
		{"tiny entries", func(b []byte) { binary.LittleEndian.PutUint32(b[512+0x54:], 64) }},
		{"array over header", func(b []byte) { binary.LittleEndian.PutUint64(b[512+0x48:], 1) }},
		{"array past end", func(b []byte) { binary.LittleEndian.PutUint64(b[512+0x48:], 1<<40) }},
		{"huge array", func(b []byte) { binary.LittleEndian.PutUint32(b[512+0x50:], 1<<20) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := smallImage(oneMB, 512).Build()
			tt.corrupt(b)
			p := tmpDisk(t, b, 2*oneMB)
			before, err := os.ReadFile(p)
			require.NoError(t, err)

			_, err = fixup.Fixup(p)
			var nge *disk.NotGPTError
			require.True(t, errors.As(err, &nge), "expected NotGPTError, got %v", err)

			after, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(before, after), "device was modified")
		})
	}
	t.Run("device too small", func(t *testing.T) {
		b := smallImage(oneMB, 512).Build()
		// pretend the header sits on a 64 sector device
		_, err := fixup.Run(testhelper.NewMemFile(b[:64*512]))
		var nge *disk.NotGPTError
		assert.True(t, errors.As(err, &nge), "expected NotGPTError, got %v", err)
	})
}

func TestFixupInvalidPath(t *testing.T) {
	_, err := fixup.Fixup(filepath.Join(t.TempDir(), "missing.img"))
	var ipe *disk.InvalidPathError
	require.True(t, errors.As(err, &ipe), "expected InvalidPathError, got %v", err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = fixup.Fixup("")
	assert.True(t, errors.As(err, &ipe))
}

func TestFixupInvalidSectorSize(t *testing.T) {
	_, err := fixup.Run(testhelper.NewMemFile(smallImage(oneMB, 512).Build()), fixup.WithSectorSize(1000))
	assert.Error(t, err)
}

func TestFixupIOFailure(t *testing.T) {
	const size = 2 * oneMB
	total := int64(size / 512)
	lastUsable := total - 34
	tests := []struct {
		op     string
		offset int64
	}{
		{"write primary GPT header", 512},
		{"write backup GPT header", (total - 1) * 512},
		{"write backup partition array", (lastUsable + 1) * 512},
		{"write protective MBR", 446},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			b := make([]byte, size)
			copy(b, smallImage(oneMB, 512).Build())
			f := testhelper.NewMemFile(b)
			memWrite := f.Writer
			var writes []int64
			f.Writer = func(p []byte, offset int64) (int, error) {
				if offset == tt.offset {
					return 0, errors.New("device unplugged")
				}
				writes = append(writes, offset)
				return memWrite(p, offset)
			}

			_, err := fixup.Run(f)
			var ioe *disk.IOError
			require.True(t, errors.As(err, &ioe), "expected IOError, got %v", err)
			assert.Equal(t, tt.op, ioe.Op())
			assert.Contains(t, err.Error(), "device unplugged")
			// no write is attempted after the failed one
			for _, w := range writes {
				assert.NotEqual(t, tt.offset, w)
			}
		})
	}
	t.Run("short write", func(t *testing.T) {
		b := make([]byte, size)
		copy(b, smallImage(oneMB, 512).Build())
		f := testhelper.NewMemFile(b)
		f.Writer = func(p []byte, offset int64) (int, error) {
			return len(p) / 2, nil
		}
		_, err := fixup.Run(f)
		assert.True(t, errors.Is(err, io.ErrShortWrite), "expected short write, got %v", err)
	})
	t.Run("read", func(t *testing.T) {
		img := smallImage(oneMB, 512).Build()
		f := testhelper.NewMemFile(img)
		memRead := f.Reader
		f.Reader = func(p []byte, offset int64) (int, error) {
			if offset == 1024 {
				return 0, errors.New("bad sector")
			}
			return memRead(p, offset)
		}
		_, err := fixup.Run(f)
		var ioe *disk.IOError
		require.True(t, errors.As(err, &ioe), "expected IOError, got %v", err)
		assert.Equal(t, "read primary partition array", ioe.Op())
	})
}

func TestFixupLargeDisk(t *testing.T) {
	// a 3TiB device, sparse: reads past the image are zeroes and writes are recorded
	const size = 3 * 1024 * 1024 * oneMB
	img := smallImage(oneMB, 512).Build()
	writes := map[int64][]byte{}
	f := &testhelper.FileImpl{
		Length: size,
		Reader: func(p []byte, offset int64) (int, error) {
			for i := range p {
				p[i] = 0
			}
			if offset < int64(len(img)) {
				copy(p, img[offset:])
			}
			return len(p), nil
		},
		Writer: func(p []byte, offset int64) (int, error) {
			writes[offset] = append([]byte{}, p...)
			return len(p), nil
		},
	}

	res, err := fixup.Run(f)
	require.NoError(t, err)
	assert.Equal(t, uint64(size/512-1), res.BackupHeaderLBA)
	mbr, ok := writes[446]
	require.True(t, ok, "protective MBR not written")
	assert.Equal(t, uint32(0xffffffff), binary.LittleEndian.Uint32(mbr[0x1ca-446:]))
	backup, ok := writes[int64(res.BackupHeaderLBA)*512]
	require.True(t, ok, "backup header not written")
	assert.True(t, headerCRCValid(backup))
}
