package gpt_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/diskfs/go-gptfixup/disk"
	"github.com/diskfs/go-gptfixup/partition/gpt"
	"github.com/diskfs/go-gptfixup/testhelper"
)

const tenMB = 10 * 1024 * 1024

func validImage(sectorSize int) *testhelper.GPTImage {
	return testhelper.NewGPTImage(tenMB, sectorSize).
		AddPartition("EFI System", 256, 511).
		AddPartition("rootfs", 512, 2047)
}

func TestTableRead(t *testing.T) {
	t.Run("error reading file", func(t *testing.T) {
		expected := "error reading GPT from file"
		f := &testhelper.FileImpl{
			//nolint:revive // b is unused, but we keep it here for the consistent io.Reader signature
			Reader: func(b []byte, offset int64) (int, error) {
				return 0, errors.New(expected)
			},
		}
		_, err := gpt.Read(f, 512)
		if err == nil || !strings.HasPrefix(err.Error(), expected) {
			t.Errorf("mismatched error, actual %v expected prefix %s", err, expected)
		}
		var ioe *disk.IOError
		if !errors.As(err, &ioe) {
			t.Errorf("expected an IOError, got %T", err)
		}
	})
	for _, sectorSize := range []int{512, 4096} {
		img := validImage(sectorSize)
		t.Run(fmt.Sprintf("valid table %d", sectorSize), func(t *testing.T) {
			f := testhelper.NewMemFile(img.Build())
			table, err := gpt.Read(f, sectorSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if table.Type() != "gpt" {
				t.Errorf("Type() returned %s instead of gpt", table.Type())
			}
			if !table.ProtectiveMBR {
				t.Errorf("expected protective MBR to be detected")
			}
			if table.LogicalBlockSize() != sectorSize {
				t.Errorf("mismatched block size %d, expected %d", table.LogicalBlockSize(), sectorSize)
			}
			if table.BackupHeaderLBA() != img.TotalSectors()-1 {
				t.Errorf("mismatched backup header LBA %d, expected %d", table.BackupHeaderLBA(), img.TotalSectors()-1)
			}
			if table.FirstUsableLBA() != img.FirstUsableLBA() || table.LastUsableLBA() != img.LastUsableLBA() {
				t.Errorf("mismatched usable range [%d:%d], expected [%d:%d]", table.FirstUsableLBA(), table.LastUsableLBA(), img.FirstUsableLBA(), img.LastUsableLBA())
			}
			if table.DiskSize() != tenMB {
				t.Errorf("mismatched disk size %d, expected %d", table.DiskSize(), tenMB)
			}
			if len(table.Partitions) != 2 {
				t.Fatalf("found %d partitions instead of 2", len(table.Partitions))
			}
			p := table.Partitions[1]
			if p.Index != 2 || p.Name != "rootfs" || p.Start != 512 || p.End != 2047 || p.Type != gpt.LinuxFilesystem {
				t.Errorf("mismatched partition %+v", p)
			}
			if p.GetStart() != int64(512*sectorSize) || p.GetSize() != int64(1536*sectorSize) {
				t.Errorf("mismatched partition bytes start %d size %d", p.GetStart(), p.GetSize())
			}
			if err := table.VerifyBackup(f); err != nil {
				t.Errorf("unexpected error verifying backup: %v", err)
			}
		})
	}
	t.Run("bad signature", func(t *testing.T) {
		b := validImage(512).Build()
		copy(b[512:520], "NOT PART")
		_, err := gpt.Read(testhelper.NewMemFile(b), 512)
		var nge *disk.NotGPTError
		if !errors.As(err, &nge) {
			t.Errorf("expected NotGPTError, got %v", err)
		}
	})
	t.Run("bad header checksum", func(t *testing.T) {
		b := validImage(512).Build()
		b[512+16]++
		_, err := gpt.Read(testhelper.NewMemFile(b), 512)
		if err == nil || !strings.Contains(err.Error(), "invalid EFI Header Checksum") {
			t.Errorf("mismatched error %v", err)
		}
	})
	t.Run("bad partition array checksum", func(t *testing.T) {
		b := validImage(512).Build()
		b[1024+60] ^= 0xff
		_, err := gpt.Read(testhelper.NewMemFile(b), 512)
		if err == nil || !strings.Contains(err.Error(), "invalid EFI Partition Entry Checksum") {
			t.Errorf("mismatched error %v", err)
		}
	})
	t.Run("too short", func(t *testing.T) {
		_, err := gpt.Read(testhelper.NewMemFile(make([]byte, 700)), 512)
		var nge *disk.NotGPTError
		if !errors.As(err, &nge) {
			t.Errorf("expected NotGPTError, got %v", err)
		}
	})
}

func TestVerifyBackup(t *testing.T) {
	img := validImage(512)
	tests := []struct {
		name    string
		corrupt func(b []byte)
		err     string
	}{
		{"missing backup header", func(b []byte) {
			copy(b[tenMB-512:], make([]byte, 512))
		}, "invalid EFI Signature"},
		{"backup array differs", func(b []byte) {
			b[(img.LastUsableLBA()+1)*512+60] ^= 0xff
		}, "invalid EFI Partition Entry Checksum"},
		{"backup points elsewhere", func(b []byte) {
			hdr := b[tenMB-512 : tenMB-512+92]
			binary.LittleEndian.PutUint64(hdr[32:40], 7)
			binary.LittleEndian.PutUint32(hdr[16:20], 0)
			binary.LittleEndian.PutUint32(hdr[16:20], crc(hdr))
		}, "backup header points at LBA 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := img.Build()
			tt.corrupt(b)
			f := testhelper.NewMemFile(b)
			table, err := gpt.Read(f, 512)
			if err != nil {
				t.Fatalf("unexpected error reading primary: %v", err)
			}
			err = table.VerifyBackup(f)
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Errorf("mismatched error, actual %v expected %s", err, tt.err)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	img := testhelper.NewGPTImage(tenMB, 512).
		AddPartition("boot", 2048, 4095).
		AddPartition("3", 4096, 8191).
		AddPartition("data", 8192, 16383)
	table, err := gpt.Read(testhelper.NewMemFile(img.Build()), 512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		identifier string
		index      int
	}{
		{"boot", 1},
		{"BOOT", 1},
		{"Data", 3},
		// a name match wins over an index match
		{"3", 2},
		{"2", 2},
		{"1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			p, err := table.Lookup(tt.identifier)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Index != tt.index {
				t.Errorf("mismatched index %d, expected %d", p.Index, tt.index)
			}
		})
	}
	for _, missing := range []string{"swap", "0", "4", "-1", ""} {
		t.Run("missing "+missing, func(t *testing.T) {
			_, err := table.LookupPartition(missing)
			var pnf *disk.PartitionNotFoundError
			if !errors.As(err, &pnf) {
				t.Errorf("expected PartitionNotFoundError, got %v", err)
			}
		})
	}
}
