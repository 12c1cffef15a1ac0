package fixup

import "encoding/binary"

const (
	mbrSize                = 512
	mbrPartitionEntryStart = 0x1be
	mbrPartitionEntrySize  = 16
	mbrSizeFieldOffset     = mbrPartitionEntryStart + 12
	mbrSignatureOffset     = 510
)

// the single record of a protective MBR, see https://wiki.osdev.org/GPT
//
// 0x1be: 00 | 00 02 00 | ee | ff ff ff | 01 00 00 00 | ff ff ff ff
func protectiveRecord() []byte {
	return []byte{0x00, 0x00, 0x02, 0x00, 0xee, 0xff, 0xff, 0xff, 0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff}
}

// protectiveMBR build a protective MBR for a disk whose last sector is lastLBA.
// The bootstrap code in the first 446 bytes of existing is kept; the partition
// records and boot signature are replaced.
func protectiveMBR(existing []byte, lastLBA uint64) []byte {
	b := make([]byte, mbrSize)
	copy(b[:mbrPartitionEntryStart], existing)
	copy(b[mbrPartitionEntryStart:], protectiveRecord())
	// disks past 2TiB keep the 0xffffffff from the template
	if lastLBA < 0xffffffff {
		binary.LittleEndian.PutUint32(b[mbrSizeFieldOffset:mbrSizeFieldOffset+4], uint32(lastLBA))
	}
	b[mbrSignatureOffset], b[mbrSignatureOffset+1] = 0x55, 0xaa
	return b
}
