package gpt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/diskfs/go-gptfixup/partition/part"
	uuid "github.com/google/uuid"
)

// PartitionEntrySize minimum size of a GPT partition entry, and the number of bytes of each entry we parse
const PartitionEntrySize = 128

var zeroUUIDBytes = make([]byte, 16)

// Partition represents the structure of a single partition on the disk
type Partition struct {
	Index             int    // position in the partition array, starting at 1
	Start             uint64 // start sector for the partition
	End               uint64 // end sector for the partition
	Size              uint64 // size of the partition in bytes
	Type              Type   // parttype for the partition
	Name              string // name for the partition
	GUID              string // partition GUID
	Attributes        uint64 // Attributes flags
	logicalSectorSize int
}

// partition.Partition interface guard
var _ part.Partition = (*Partition)(nil)

// partitionFromBytes create a partition entry from bytes, nil if the slot is unused
func partitionFromBytes(b []byte, logicalSectorSize int) (*Partition, error) {
	if len(b) < PartitionEntrySize {
		return nil, fmt.Errorf("data for partition was %d bytes instead of expected minimum %d", len(b), PartitionEntrySize)
	}
	// is it all zeroes?
	if bytes.Equal(b[0:16], zeroUUIDBytes) {
		return nil, nil
	}
	typeGUID, err := uuid.FromBytes(bytesToUUIDBytes(b[0:16]))
	if err != nil {
		return nil, fmt.Errorf("unable to read partition type GUID: %v", err)
	}
	uid, err := uuid.FromBytes(bytesToUUIDBytes(b[16:32]))
	if err != nil {
		return nil, fmt.Errorf("unable to read partition identifier GUID: %v", err)
	}
	firstLBA := binary.LittleEndian.Uint64(b[32:40])
	lastLBA := binary.LittleEndian.Uint64(b[40:48])
	attribs := binary.LittleEndian.Uint64(b[48:56])
	if lastLBA < firstLBA {
		return nil, fmt.Errorf("partition ends at sector %d before it starts at %d", lastLBA, firstLBA)
	}

	// the name is UTF16LE, up to 36 code units, zero padded
	nameb := b[56:PartitionEntrySize]
	u := make([]uint16, 0, len(nameb)/2)
	for i := 0; i < len(nameb); i += 2 {
		entry := binary.LittleEndian.Uint16(nameb[i : i+2])
		if entry == 0 {
			break
		}
		u = append(u, entry)
	}

	return &Partition{
		Start:             firstLBA,
		End:               lastLBA,
		Size:              (lastLBA - firstLBA + 1) * uint64(logicalSectorSize),
		Name:              string(utf16.Decode(u)),
		GUID:              strings.ToUpper(uid.String()),
		Attributes:        attribs,
		Type:              Type(strings.ToUpper(typeGUID.String())),
		logicalSectorSize: logicalSectorSize,
	}, nil
}

// GetSize size of the partition in bytes
func (p *Partition) GetSize() int64 {
	return int64(p.Size)
}

// GetStart byte offset of the partition on the disk
func (p *Partition) GetStart() int64 {
	return int64(p.Start) * int64(p.logicalSectorSize)
}

func (p *Partition) GetIndex() int {
	return p.Index
}

func (p *Partition) GetName() string {
	return p.Name
}

// UUID the partition's unique GUID
func (p *Partition) UUID() string {
	return p.GUID
}
