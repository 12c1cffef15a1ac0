package gpt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"
	"strings"

	"github.com/diskfs/go-gptfixup/disk"
	"github.com/diskfs/go-gptfixup/partition/part"
	"github.com/diskfs/go-gptfixup/util"
	uuid "github.com/google/uuid"
)

const (
	mbrPartitionEntriesStart = 446
	mbrPartitionEntriesCount = 4
	mbrpartitionEntrySize    = 16
	// HeaderSize the only header size we understand
	HeaderSize = 0x5c
	// largest partition array we are willing to read, 128 entries of 128 bytes is the norm
	maxPartitionArraySize = 16 * 1024 * 1024
)

// Table represents a partition table read from a disk
type Table struct {
	Partitions             []*Partition // slice of used partitions, in array order
	LogicalSectorSize      int          // logical size of a sector
	GUID                   string       // disk GUID
	ProtectiveMBR          bool         // whether or not a protective MBR is in place
	partitionArraySize     int          // how many entries are in the partition array size
	partitionEntrySize     uint32       // size of the partition entry in the table, usually 128 bytes
	partitionFirstLBA      uint64       // first LBA of the partition array
	partitionEntryChecksum uint32       // checksum of the partition array
	headerChecksum         uint32       // checksum of the primary header
	primaryHeader          uint64       // LBA of primary header, always 1
	secondaryHeader        uint64       // LBA of secondary header, always last sectors on disk
	firstDataSector        uint64       // LBA of first data sector
	lastDataSector         uint64       // LBA of last data sector
}

// header the fields of one GPT header copy
type header struct {
	checksum               uint32
	currentLBA             uint64
	backupLBA              uint64
	firstUsableLBA         uint64
	lastUsableLBA          uint64
	guid                   string
	partitionFirstLBA      uint64
	partitionEntryCount    uint32
	partitionEntrySize     uint32
	partitionEntryChecksum uint32
}

func getEfiSignature() []byte {
	return []byte{0x45, 0x46, 0x49, 0x20, 0x50, 0x41, 0x52, 0x54}
}
func getEfiRevision() []byte {
	return []byte{0x00, 0x00, 0x01, 0x00}
}
func getEfiHeaderSize() []byte {
	return []byte{0x5c, 0x00, 0x00, 0x00}
}
func getMbrSignature() []byte {
	return []byte{0x55, 0xaa}
}

// headerFromBytes parse and validate a header; b must hold at least the 92 header bytes
func headerFromBytes(b []byte) (*header, error) {
	if len(b) < HeaderSize {
		return nil, disk.NewNotGPTError("header was %d bytes instead of %d", len(b), HeaderSize)
	}
	gpt := make([]byte, HeaderSize)
	copy(gpt, b[:HeaderSize])

	if !bytes.Equal(gpt[0:8], getEfiSignature()) {
		return nil, disk.NewNotGPTError("invalid EFI Signature %v", gpt[0:8])
	}
	if !bytes.Equal(gpt[8:12], getEfiRevision()) {
		return nil, disk.NewNotGPTError("invalid EFI Revision %v", gpt[8:12])
	}
	if !bytes.Equal(gpt[12:16], getEfiHeaderSize()) {
		return nil, disk.NewNotGPTError("invalid EFI Header size %v", gpt[12:16])
	}
	if !zeroMatch(gpt[20:24]) {
		return nil, disk.NewNotGPTError("invalid EFI Header, expected zeroes, got %v", gpt[20:24])
	}
	efiHeaderCrc := binary.LittleEndian.Uint32(gpt[16:20])
	// the checksum covers the header with its own field zeroed out
	copy(gpt[16:20], []byte{0x00, 0x00, 0x00, 0x00})
	checksum := crc32.ChecksumIEEE(gpt)
	if efiHeaderCrc != checksum {
		return nil, disk.NewNotGPTError("invalid EFI Header Checksum, expected %v, got %v", checksum, efiHeaderCrc)
	}
	diskGUID, err := uuid.FromBytes(bytesToUUIDBytes(gpt[56:72]))
	if err != nil {
		return nil, disk.NewNotGPTError("unable to read guid from disk: %v", err)
	}
	h := &header{
		checksum:               efiHeaderCrc,
		currentLBA:             binary.LittleEndian.Uint64(gpt[24:32]),
		backupLBA:              binary.LittleEndian.Uint64(gpt[32:40]),
		firstUsableLBA:         binary.LittleEndian.Uint64(gpt[40:48]),
		lastUsableLBA:          binary.LittleEndian.Uint64(gpt[48:56]),
		guid:                   strings.ToUpper(diskGUID.String()),
		partitionFirstLBA:      binary.LittleEndian.Uint64(gpt[72:80]),
		partitionEntryCount:    binary.LittleEndian.Uint32(gpt[80:84]),
		partitionEntrySize:     binary.LittleEndian.Uint32(gpt[84:88]),
		partitionEntryChecksum: binary.LittleEndian.Uint32(gpt[88:92]),
	}
	if h.partitionEntrySize < PartitionEntrySize {
		return nil, disk.NewNotGPTError("partition entry size %d is smaller than %d", h.partitionEntrySize, PartitionEntrySize)
	}
	if uint64(h.partitionEntryCount)*uint64(h.partitionEntrySize) > maxPartitionArraySize {
		return nil, disk.NewNotGPTError("partition array of %d entries of %d bytes is too large", h.partitionEntryCount, h.partitionEntrySize)
	}
	return h, nil
}

// readProtectiveMBR reads whether or not a protectiveMBR exists in a byte slice
func readProtectiveMBR(b []byte, lastLBA uint64) bool {
	if len(b) < 512 {
		return false
	}
	b = b[:512]
	// check for MBR signature
	if !bytes.Equal(b[510:], getMbrSignature()) {
		return false
	}
	parts := b[mbrPartitionEntriesStart : mbrPartitionEntriesStart+mbrpartitionEntrySize*mbrPartitionEntriesCount]
	// should have all except the first partition by zeroes
	for i := 1; i < mbrPartitionEntriesCount; i++ {
		if !zeroMatch(parts[i*mbrpartitionEntrySize : (i+1)*mbrpartitionEntrySize]) {
			return false
		}
	}
	// non-bootable, partition type 0xee, we ignore head/cylinder/sector
	if parts[0] != 0x00 || parts[4] != 0xee {
		return false
	}
	if binary.LittleEndian.Uint32(parts[8:12]) != 1 {
		return false
	}
	sectors := uint32(0xffffffff)
	if lastLBA < 0xffffffff {
		sectors = uint32(lastLBA)
	}
	return binary.LittleEndian.Uint32(parts[12:16]) == sectors
}

// readPartitionArray read the partition array described by h and check it against the header checksum
func readPartitionArray(f io.ReaderAt, h *header, logicalBlockSize int) ([]byte, error) {
	start := int64(h.partitionFirstLBA) * int64(logicalBlockSize)
	size := int(h.partitionEntryCount) * int(h.partitionEntrySize)
	b, err := util.ReadUpToAt(f, start, size)
	if err != nil {
		return nil, disk.NewIOError("error reading partitions from file", err)
	}
	if len(b) != size {
		return nil, disk.NewNotGPTError("read only %d bytes of partition array from file instead of expected %d", len(b), size)
	}
	checksum := crc32.ChecksumIEEE(b)
	if h.partitionEntryChecksum != checksum {
		return nil, disk.NewNotGPTError("invalid EFI Partition Entry Checksum, expected %v, got %v", checksum, h.partitionEntryChecksum)
	}
	return b, nil
}

// readPartitionArrayBytes parse the used entries of a partition array
func readPartitionArrayBytes(b []byte, entrySize, logicalSectorSize int) ([]*Partition, error) {
	parts := make([]*Partition, 0)
	for i, c := 0, b; len(c) >= entrySize; c, i = c[entrySize:], i+1 {
		p, err := partitionFromBytes(c[:entrySize], logicalSectorSize)
		if err != nil {
			return nil, fmt.Errorf("error reading partition entry %d: %v", i, err)
		}
		if p == nil {
			continue
		}
		p.Index = i + 1
		parts = append(parts, p)
	}
	return parts, nil
}

// Read read a partition table from a disk
// must be passed the io.ReaderAt from which to read, and the logical block size
//
// if successful, returns a gpt.Table struct
// returns errors if fails at any stage reading the disk or processing the bytes on disk as a GPT
func Read(f io.ReaderAt, logicalBlockSize int) (*Table, error) {
	// read the data off of the disk - first block is the compatibility MBR, second is the GPT header
	b, err := util.ReadUpToAt(f, 0, logicalBlockSize*2)
	if err != nil {
		return nil, disk.NewIOError("error reading GPT from file", err)
	}
	if len(b) != logicalBlockSize*2 {
		return nil, disk.NewNotGPTError("read only %d bytes of GPT from file instead of expected %d", len(b), logicalBlockSize*2)
	}
	h, err := headerFromBytes(b[logicalBlockSize:])
	if err != nil {
		return nil, fmt.Errorf("error reading GPT table: %w", err)
	}
	array, err := readPartitionArray(f, h, logicalBlockSize)
	if err != nil {
		return nil, err
	}
	parts, err := readPartitionArrayBytes(array, int(h.partitionEntrySize), logicalBlockSize)
	if err != nil {
		return nil, disk.NewNotGPTError("error parsing partition data: %v", err)
	}

	return &Table{
		Partitions:             parts,
		LogicalSectorSize:      logicalBlockSize,
		GUID:                   h.guid,
		ProtectiveMBR:          readProtectiveMBR(b[:logicalBlockSize], h.backupLBA),
		partitionArraySize:     int(h.partitionEntryCount),
		partitionEntrySize:     h.partitionEntrySize,
		partitionFirstLBA:      h.partitionFirstLBA,
		partitionEntryChecksum: h.partitionEntryChecksum,
		headerChecksum:         h.checksum,
		primaryHeader:          h.currentLBA,
		secondaryHeader:        h.backupLBA,
		firstDataSector:        h.firstUsableLBA,
		lastDataSector:         h.lastUsableLBA,
	}, nil
}

// VerifyBackup checks the backup header the primary header points at: its checksum, that it points
// back at the primary, that it describes the same partition array, and that its own copy of the array
// carries the same checksum
func (t *Table) VerifyBackup(f io.ReaderAt) error {
	b, err := util.ReadUpToAt(f, int64(t.secondaryHeader)*int64(t.LogicalSectorSize), HeaderSize)
	if err != nil {
		return disk.NewIOError("error reading backup GPT header", err)
	}
	h, err := headerFromBytes(b)
	if err != nil {
		return fmt.Errorf("error reading backup GPT header: %w", err)
	}
	switch {
	case h.currentLBA != t.secondaryHeader:
		return disk.NewNotGPTError("backup header claims to be at LBA %d but was read from LBA %d", h.currentLBA, t.secondaryHeader)
	case h.backupLBA != t.primaryHeader:
		return disk.NewNotGPTError("backup header points at LBA %d instead of the primary at %d", h.backupLBA, t.primaryHeader)
	case h.partitionEntryCount != uint32(t.partitionArraySize) || h.partitionEntrySize != t.partitionEntrySize:
		return disk.NewNotGPTError("backup header describes %d entries of %d bytes, primary %d entries of %d bytes",
			h.partitionEntryCount, h.partitionEntrySize, t.partitionArraySize, t.partitionEntrySize)
	case h.partitionEntryChecksum != t.partitionEntryChecksum:
		return disk.NewNotGPTError("backup partition array checksum %v differs from primary %v", h.partitionEntryChecksum, t.partitionEntryChecksum)
	case h.firstUsableLBA != t.firstDataSector || h.lastUsableLBA != t.lastDataSector:
		return disk.NewNotGPTError("backup usable range [%d:%d] differs from primary [%d:%d]",
			h.firstUsableLBA, h.lastUsableLBA, t.firstDataSector, t.lastDataSector)
	case h.partitionFirstLBA <= t.lastDataSector || h.partitionFirstLBA >= t.secondaryHeader:
		return disk.NewNotGPTError("backup partition array at LBA %d is not between the usable range and the backup header", h.partitionFirstLBA)
	}
	if _, err := readPartitionArray(f, h, t.LogicalSectorSize); err != nil {
		return fmt.Errorf("error reading backup partition array: %w", err)
	}
	return nil
}

// Lookup find a partition by name, compared case-insensitively, or failing that by its index in the array
func (t *Table) Lookup(identifier string) (*Partition, error) {
	for _, p := range t.Partitions {
		if strings.EqualFold(p.Name, identifier) {
			return p, nil
		}
	}
	if i, err := strconv.ParseUint(identifier, 10, 32); err == nil {
		for _, p := range t.Partitions {
			if uint64(p.Index) == i {
				return p, nil
			}
		}
	}
	return nil, disk.NewPartitionNotFoundError(identifier)
}

// LookupPartition Lookup for the partition.Table interface
func (t *Table) LookupPartition(identifier string) (part.Partition, error) {
	p, err := t.Lookup(identifier)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Type report the type of table, always "gpt"
func (t *Table) Type() string {
	return "gpt"
}

func (t *Table) LogicalBlockSize() int {
	return t.LogicalSectorSize
}

// GetPartitions get the partitions
func (t *Table) GetPartitions() []part.Partition {
	// each Partition matches the part.Partition interface, but golang does not accept passing them in a slice
	parts := make([]part.Partition, len(t.Partitions))
	for i, p := range t.Partitions {
		parts[i] = p
	}
	return parts
}

// PrimaryHeaderLBA LBA of the header the table was read from
func (t *Table) PrimaryHeaderLBA() uint64 { return t.primaryHeader }

// BackupHeaderLBA LBA of the backup header
func (t *Table) BackupHeaderLBA() uint64 { return t.secondaryHeader }

// FirstUsableLBA first sector available to partitions
func (t *Table) FirstUsableLBA() uint64 { return t.firstDataSector }

// LastUsableLBA last sector available to partitions
func (t *Table) LastUsableLBA() uint64 { return t.lastDataSector }

// PartitionArrayLBA first sector of the primary partition array
func (t *Table) PartitionArrayLBA() uint64 { return t.partitionFirstLBA }

// PartitionArrayChecksum CRC32 of the partition array
func (t *Table) PartitionArrayChecksum() uint32 { return t.partitionEntryChecksum }

// HeaderChecksum CRC32 of the primary header
func (t *Table) HeaderChecksum() uint32 { return t.headerChecksum }

// DiskSize the disk size in bytes implied by the position of the backup header
func (t *Table) DiskSize() int64 {
	return int64(t.secondaryHeader+1) * int64(t.LogicalSectorSize)
}
