// Package fixup repairs the GPT of a device that had a smaller disk image written to it.
//
// A raw image carries a GPT describing the image's own size: the backup header and backup
// partition array sit at the end of the image, not the end of the device, and the usable
// range stops short of the real capacity. Fixup rewrites the primary header, the backup
// header, the backup partition array and the protective MBR so they describe the device as
// it is. Partition entries themselves are never changed.
//
// The sequence of writes is not atomic. If a write fails partway through, the device can be
// left with a GPT whose copies disagree; the error names the step that failed.
package fixup

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/diskfs/go-gptfixup/backend"
	"github.com/diskfs/go-gptfixup/backend/file"
	"github.com/diskfs/go-gptfixup/disk"
	"github.com/diskfs/go-gptfixup/util"
)

const (
	// HeaderSize bytes of the GPT header that are read, checksummed and written
	HeaderSize = 0x5c
	// first sector following the protective MBR
	primaryHeaderLBA = 1
	// largest partition array we are willing to copy, 128 entries of 128 bytes is the norm
	maxPartitionArraySize = 16 * 1024 * 1024
	minEntrySize          = 128
)

func efiSignature() []byte {
	return []byte("EFI PART")
}

// Result the values a fixup found and the values it wrote
type Result struct {
	SectorSize              int64
	DiskSize                int64
	PartitionArrayLBA       uint64
	PartitionArrayLength    uint64
	PartitionArrayCRC       uint32
	OldPartitionArrayCRC    uint32
	BackupHeaderLBA         uint64
	OldBackupHeaderLBA      uint64
	FirstUsableLBA          uint64
	OldFirstUsableLBA       uint64
	LastUsableLBA           uint64
	OldLastUsableLBA        uint64
	HeaderCRC               uint32
	OldHeaderCRC            uint32
	BackupHeaderCRC         uint32
	BackupPartitionArrayLBA uint64
}

// Fixup open the device or image at devicePath read-write and rewrite its GPT to match the
// size of the device. The logical sector size is asked of the device unless WithSectorSize is given.
//
// Errors are *disk.InvalidPathError if the device cannot be opened, *disk.NotGPTError if it does
// not carry a usable GPT (nothing has been written in that case), and *disk.IOError for any
// failed read, write or sync.
func Fixup(devicePath string, opts ...Option) (*Result, error) {
	c := newConfig(opts)
	storage, err := file.OpenFromPath(devicePath, file.ReadWriteExclusive)
	if err != nil {
		return nil, disk.NewInvalidPathError(devicePath, err)
	}
	defer storage.Close()

	f, err := storage.Writable()
	if err != nil {
		return nil, disk.NewInvalidPathError(devicePath, err)
	}
	if c.sectorSize == 0 {
		c.sectorSize = disk.LogicalSectorSize(storage)
	}
	c.log = c.log.WithField("device", devicePath)
	return c.run(f)
}

// Run rewrite the GPT on an already open device. The device size is where f seeks to as its end,
// the sector size is 512 unless WithSectorSize is given.
func Run(f backend.WritableFile, opts ...Option) (*Result, error) {
	c := newConfig(opts)
	if c.sectorSize == 0 {
		c.sectorSize = disk.DefaultSectorSize
	}
	return c.run(f)
}

func (c *config) run(f backend.WritableFile) (*Result, error) {
	log := c.log
	sectorSize := c.sectorSize
	if sectorSize < HeaderSize || sectorSize%512 != 0 {
		return nil, fmt.Errorf("invalid sector size %d", sectorSize)
	}
	log.WithField("sector_size", sectorSize).Trace("sector size")

	//---------------------------------------------------------
	//                check gpt header
	//---------------------------------------------------------
	raw, err := util.ReadUpToAt(f, primaryHeaderLBA*sectorSize, HeaderSize)
	if err != nil {
		return nil, disk.NewIOError("read primary GPT header", err)
	}
	if len(raw) != HeaderSize {
		return nil, disk.NewNotGPTError("read %d bytes of GPT header instead of %d", len(raw), HeaderSize)
	}
	if sig := raw[fieldSignature.offset : fieldSignature.offset+fieldSignature.size]; !bytes.Equal(sig, efiSignature()) {
		return nil, disk.NewNotGPTError("invalid GPT header signature %q", sig)
	}
	h := &headerImage{b: raw}

	//---------------------------------------------------------
	//                get base info
	//---------------------------------------------------------
	entryCount := h.get(fieldNumPartitionEntries)
	entrySize := h.get(fieldPartitionEntrySize)
	tableLBA := h.get(fieldPartitionEntriesLBA)
	res := &Result{
		SectorSize:           sectorSize,
		PartitionArrayLBA:    tableLBA,
		OldPartitionArrayCRC: uint32(h.get(fieldPartitionEntriesCRC32)),
		OldBackupHeaderLBA:   h.get(fieldBackupLBA),
		OldFirstUsableLBA:    h.get(fieldFirstUsableLBA),
		OldLastUsableLBA:     h.get(fieldLastUsableLBA),
		OldHeaderCRC:         uint32(h.get(fieldHeaderCRC)),
	}
	if h.err != nil {
		return nil, h.err
	}
	tableLength := entryCount * entrySize
	switch {
	case entryCount == 0:
		return nil, disk.NewNotGPTError("GPT header declares no partition entries")
	case entrySize < minEntrySize:
		return nil, disk.NewNotGPTError("partition entry size %d is smaller than %d", entrySize, minEntrySize)
	case tableLength > maxPartitionArraySize:
		return nil, disk.NewNotGPTError("partition array of %d entries of %d bytes is too large", entryCount, entrySize)
	case tableLBA <= primaryHeaderLBA:
		return nil, disk.NewNotGPTError("partition array at LBA %d overlaps the GPT header", tableLBA)
	}
	res.PartitionArrayLength = tableLength

	size, err := backend.Size(f)
	if err != nil {
		return nil, disk.NewIOError("determine device size", err)
	}
	res.DiskSize = size
	totalSectors := uint64(size / sectorSize)
	if tableLBA >= totalSectors {
		return nil, disk.NewNotGPTError("partition array at LBA %d is past the end of the device at LBA %d", tableLBA, totalSectors)
	}
	tableStart := int64(tableLBA) * sectorSize
	tableEnd := uint64(tableStart) + tableLength
	// 34 on a 512 byte sector disk with 128 entries of 128 bytes
	firstUsable := (tableEnd + uint64(sectorSize) - 1) / uint64(sectorSize)
	if totalSectors < 2*firstUsable {
		return nil, disk.NewNotGPTError("device of %d sectors cannot hold two copies of a GPT ending at LBA %d", totalSectors, firstUsable)
	}
	finalLBA := totalSectors - 1
	// the leading reserve is mirrored at the end of the disk for the backup array and header
	lastUsable := totalSectors - firstUsable

	log.WithFields(logrus.Fields{
		"partition_entries":     entryCount,
		"partition_entry_size":  entrySize,
		"partition_array_start": tableStart,
		"partition_array_size":  tableLength,
		"partition_array_end":   tableEnd,
	}).Trace("partition array")

	//---------------------------------------------------------
	//                fix part table crc32
	//---------------------------------------------------------
	table, err := util.ReadUpToAt(f, tableStart, int(tableLength))
	if err != nil {
		return nil, disk.NewIOError("read primary partition array", err)
	}
	if uint64(len(table)) != tableLength {
		return nil, disk.NewNotGPTError("read %d bytes of partition array instead of %d", len(table), tableLength)
	}
	res.PartitionArrayCRC = crc32.ChecksumIEEE(table)
	log.WithFields(logrus.Fields{"old": res.OldPartitionArrayCRC, "new": res.PartitionArrayCRC}).Trace("partition array CRC32")
	h.set(fieldPartitionEntriesCRC32, uint64(res.PartitionArrayCRC))

	//---------------------------------------------------------
	//                fix gpt size
	//---------------------------------------------------------
	res.BackupHeaderLBA = finalLBA
	res.FirstUsableLBA = firstUsable
	res.LastUsableLBA = lastUsable
	res.BackupPartitionArrayLBA = lastUsable + 1
	log.WithFields(logrus.Fields{"old": res.OldBackupHeaderLBA, "new": finalLBA}).Trace("backup GPT header LBA")
	log.WithFields(logrus.Fields{
		"old": fmt.Sprintf("[%d:%d]", res.OldFirstUsableLBA, res.OldLastUsableLBA),
		"new": fmt.Sprintf("[%d:%d]", firstUsable, lastUsable),
	}).Trace("usable LBAs")
	h.set(fieldBackupLBA, finalLBA)
	h.set(fieldFirstUsableLBA, firstUsable)
	h.set(fieldLastUsableLBA, lastUsable)

	//---------------------------------------------------------
	//                fix gpt header crc32 and write
	//---------------------------------------------------------
	h.set(fieldHeaderCRC, 0)
	h.set(fieldCurrentLBA, primaryHeaderLBA)
	res.HeaderCRC = crc32.ChecksumIEEE(h.b)
	h.set(fieldHeaderCRC, uint64(res.HeaderCRC))
	if h.err != nil {
		return nil, h.err
	}
	log.WithFields(logrus.Fields{"old": res.OldHeaderCRC, "new": res.HeaderCRC}).Trace("header CRC32")
	if err := writeAt(f, h.b, primaryHeaderLBA*sectorSize, "write primary GPT header"); err != nil {
		return nil, err
	}

	//---------------------------------------------------------
	//                fix backup gpt header and write
	//---------------------------------------------------------
	h.set(fieldHeaderCRC, 0)
	h.set(fieldCurrentLBA, finalLBA)
	h.set(fieldBackupLBA, primaryHeaderLBA)
	h.set(fieldPartitionEntriesLBA, res.BackupPartitionArrayLBA)
	res.BackupHeaderCRC = crc32.ChecksumIEEE(h.b)
	h.set(fieldHeaderCRC, uint64(res.BackupHeaderCRC))
	if h.err != nil {
		return nil, h.err
	}
	log.WithField("crc", res.BackupHeaderCRC).Trace("backup header CRC32")
	if err := writeAt(f, h.b, int64(finalLBA)*sectorSize, "write backup GPT header"); err != nil {
		return nil, err
	}

	//---------------------------------------------------------
	//                build backup part table
	//---------------------------------------------------------
	table, err = util.ReadUpToAt(f, tableStart, int(tableLength))
	if err != nil {
		return nil, disk.NewIOError("re-read primary partition array", err)
	}
	if uint64(len(table)) != tableLength {
		return nil, disk.NewIOError("re-read primary partition array", fmt.Errorf("read %d bytes instead of %d: %w", len(table), tableLength, io.ErrUnexpectedEOF))
	}
	if err := writeAt(f, table, int64(res.BackupPartitionArrayLBA)*sectorSize, "write backup partition array"); err != nil {
		return nil, err
	}

	//---------------------------------------------------------
	//                build pmbr
	//---------------------------------------------------------
	existing, err := util.ReadUpToAt(f, 0, mbrSize)
	if err != nil {
		return nil, disk.NewIOError("read MBR", err)
	}
	pmbr := protectiveMBR(existing, finalLBA)
	if err := writeAt(f, pmbr[mbrPartitionEntryStart:], mbrPartitionEntryStart, "write protective MBR"); err != nil {
		return nil, err
	}

	if err := backend.Sync(f); err != nil {
		return nil, disk.NewIOError("sync device", err)
	}
	log.WithFields(logrus.Fields{
		"disk_size":   size,
		"backup_lba":  finalLBA,
		"last_usable": lastUsable,
	}).Debug("GPT fixed up")
	return res, nil
}

func writeAt(f io.WriterAt, b []byte, offset int64, op string) error {
	n, err := f.WriteAt(b, offset)
	if err != nil {
		return disk.NewIOError(op, err)
	}
	if n != len(b) {
		return disk.NewIOError(op, io.ErrShortWrite)
	}
	return nil
}
