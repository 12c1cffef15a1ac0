package testhelper

import (
	"encoding/binary"
	"hash/crc32"
	"unicode/utf16"

	uuid "github.com/google/uuid"
)

const (
	linuxFilesystemType = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
	defaultDiskGUID     = "43E51892-3273-42F7-BCDA-B43B80CDFC48"
)

// GPTPartition one entry for GPTImage
type GPTPartition struct {
	Name  string
	Type  string // defaults to Linux filesystem
	GUID  string // defaults to one derived from the name
	Start uint64
	End   uint64
}

// GPTImage builds the bytes of a disk image carrying a complete, valid GPT laid out the way
// sgdisk lays one out: protective MBR, primary header at LBA 1, partition array from LBA 2,
// backup array and backup header in the last sectors.
type GPTImage struct {
	Size       int64
	SectorSize int
	EntryCount uint32
	EntrySize  uint32
	DiskGUID   string
	Partitions []GPTPartition
}

// NewGPTImage an image of size bytes with 128 entries of 128 bytes and no partitions
func NewGPTImage(size int64, sectorSize int) *GPTImage {
	return &GPTImage{
		Size:       size,
		SectorSize: sectorSize,
		EntryCount: 128,
		EntrySize:  128,
		DiskGUID:   defaultDiskGUID,
	}
}

// AddPartition add a partition spanning sectors start to end inclusive
func (g *GPTImage) AddPartition(name string, start, end uint64) *GPTImage {
	g.Partitions = append(g.Partitions, GPTPartition{Name: name, Start: start, End: end})
	return g
}

func (g *GPTImage) ss() uint64 {
	return uint64(g.SectorSize)
}

// TotalSectors sectors in the image
func (g *GPTImage) TotalSectors() uint64 {
	return uint64(g.Size) / g.ss()
}

// ArraySectors sectors occupied by one copy of the partition array
func (g *GPTImage) ArraySectors() uint64 {
	length := uint64(g.EntryCount) * uint64(g.EntrySize)
	return (length + g.ss() - 1) / g.ss()
}

// FirstUsableLBA first sector after the primary array
func (g *GPTImage) FirstUsableLBA() uint64 {
	return 2 + g.ArraySectors()
}

// LastUsableLBA last sector before the backup array
func (g *GPTImage) LastUsableLBA() uint64 {
	return g.TotalSectors() - 2 - g.ArraySectors()
}

// PartitionArray the bytes of the partition array
func (g *GPTImage) PartitionArray() []byte {
	b := make([]byte, int(g.EntryCount)*int(g.EntrySize))
	for i, p := range g.Partitions {
		entry := b[i*int(g.EntrySize):]
		typeGUID := p.Type
		if typeGUID == "" {
			typeGUID = linuxFilesystemType
		}
		copy(entry[0:16], guidBytes(uuid.MustParse(typeGUID)))
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Name))
		if p.GUID != "" {
			id = uuid.MustParse(p.GUID)
		}
		copy(entry[16:32], guidBytes(id))
		binary.LittleEndian.PutUint64(entry[32:40], p.Start)
		binary.LittleEndian.PutUint64(entry[40:48], p.End)
		for j, u := range utf16.Encode([]rune(p.Name)) {
			if j >= 36 {
				break
			}
			binary.LittleEndian.PutUint16(entry[56+j*2:58+j*2], u)
		}
	}
	return b
}

// Header the 92 header bytes for the primary or backup copy
func (g *GPTImage) Header(primary bool) []byte {
	total := g.TotalSectors()
	b := make([]byte, 92)
	copy(b[0:8], "EFI PART")
	copy(b[8:12], []byte{0x00, 0x00, 0x01, 0x00})
	binary.LittleEndian.PutUint32(b[12:16], 92)
	current, other, arrayLBA := uint64(1), total-1, uint64(2)
	if !primary {
		current, other, arrayLBA = total-1, 1, g.LastUsableLBA()+1
	}
	binary.LittleEndian.PutUint64(b[24:32], current)
	binary.LittleEndian.PutUint64(b[32:40], other)
	binary.LittleEndian.PutUint64(b[40:48], g.FirstUsableLBA())
	binary.LittleEndian.PutUint64(b[48:56], g.LastUsableLBA())
	copy(b[56:72], guidBytes(uuid.MustParse(g.DiskGUID)))
	binary.LittleEndian.PutUint64(b[72:80], arrayLBA)
	binary.LittleEndian.PutUint32(b[80:84], g.EntryCount)
	binary.LittleEndian.PutUint32(b[84:88], g.EntrySize)
	binary.LittleEndian.PutUint32(b[88:92], crc32.ChecksumIEEE(g.PartitionArray()))
	binary.LittleEndian.PutUint32(b[16:20], crc32.ChecksumIEEE(b))
	return b
}

// ProtectiveMBR the 512 byte protective MBR
func (g *GPTImage) ProtectiveMBR() []byte {
	b := make([]byte, 512)
	copy(b[446:462], []byte{0x00, 0x00, 0x02, 0x00, 0xee, 0xff, 0xff, 0xff, 0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff})
	if last := g.TotalSectors() - 1; last < 0xffffffff {
		binary.LittleEndian.PutUint32(b[458:462], uint32(last))
	}
	b[510], b[511] = 0x55, 0xaa
	return b
}

// Build the complete image
func (g *GPTImage) Build() []byte {
	b := make([]byte, g.Size)
	ss := int64(g.SectorSize)
	total := int64(g.TotalSectors())
	array := g.PartitionArray()
	copy(b, g.ProtectiveMBR())
	copy(b[ss:], g.Header(true))
	copy(b[2*ss:], array)
	copy(b[(int64(g.LastUsableLBA())+1)*ss:], array)
	copy(b[(total-1)*ss:], g.Header(false))
	return b
}

// guidBytes GPT stores the first three fields little-endian
func guidBytes(u uuid.UUID) []byte {
	return []byte{u[3], u[2], u[1], u[0], u[5], u[4], u[7], u[6], u[8], u[9], u[10], u[11], u[12], u[13], u[14], u[15]}
}
