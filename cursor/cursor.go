// Package cursor reads and writes the contents of a single GPT partition on a live device.
//
// A Cursor is a window of the device, from the first byte of the partition to its last.
// Positions are relative to the start of the partition and can never leave [0, size]:
// reads stop at the end of the partition and writes are cut short there instead of
// spilling into whatever follows.
//
// The underlying handle is seeked before every read and write, so it may be shared with
// other code that moves its offset. Nothing is cached.
package cursor

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/diskfs/go-gptfixup/backend"
	"github.com/diskfs/go-gptfixup/backend/file"
	"github.com/diskfs/go-gptfixup/disk"
	"github.com/diskfs/go-gptfixup/partition"
	"github.com/diskfs/go-gptfixup/partition/part"
)

// Cursor an io.ReadWriteSeeker over one partition of a device
type Cursor struct {
	f      backend.WritableFile
	offset int64
	size   int64
	pos    int64
	index  int
	name   string
}

var (
	_ io.ReadWriteSeeker = (*Cursor)(nil)
	_ io.Closer          = (*Cursor)(nil)
)

// Open find the partition named by identifier on the device at devicePath and open a cursor onto it.
//
// identifier is first compared case-insensitively with the partition names; if none matches and it is
// a number, it is the 1-based index of the partition in the GPT. Returns *disk.PartitionNotFoundError
// when neither works. The GPT is read through a read-only handle, which is closed again before the
// cursor opens its own read-write handle.
func Open(devicePath, identifier string, opts ...Option) (*Cursor, error) {
	c := newConfig(opts)
	log := c.log.WithFields(logrus.Fields{
		"device":    devicePath,
		"partition": identifier,
	})

	p, err := lookup(devicePath, identifier, c.sectorSize, log)
	if err != nil {
		return nil, err
	}

	storage, err := file.OpenFromPath(devicePath, file.ReadWrite)
	if err != nil {
		return nil, disk.NewInvalidPathError(devicePath, err)
	}
	f, err := storage.Writable()
	if err != nil {
		storage.Close()
		return nil, disk.NewInvalidPathError(devicePath, err)
	}

	cur := New(f, p.GetStart(), p.GetSize(), p.GetIndex())
	cur.name = p.GetName()
	log.WithFields(logrus.Fields{
		"index":  cur.index,
		"name":   cur.name,
		"offset": cur.offset,
		"size":   cur.size,
	}).Debug("opened partition")
	return cur, nil
}

func lookup(devicePath, identifier string, sectorSize int64, log logrus.FieldLogger) (part.Partition, error) {
	storage, err := file.OpenFromPath(devicePath, file.ReadOnly)
	if err != nil {
		return nil, disk.NewInvalidPathError(devicePath, err)
	}
	defer storage.Close()

	devType, err := disk.DetermineDeviceType(storage)
	if err != nil || devType != disk.DeviceTypeBlockDevice {
		log.Warnf("%s is not a block device", devicePath)
	}
	if sectorSize == 0 {
		sectorSize = disk.LogicalSectorSize(storage)
	}

	table, err := partition.Read(storage, int(sectorSize))
	if err != nil {
		return nil, err
	}
	return table.LookupPartition(identifier)
}

// New a cursor over the size bytes of f starting at offset, reporting index as its partition index.
// Closing the cursor closes f.
func New(f backend.WritableFile, offset, size int64, index int) *Cursor {
	return &Cursor{
		f:      f,
		offset: offset,
		size:   size,
		index:  index,
	}
}

// Index 1-based index of the partition in the GPT
func (c *Cursor) Index() int {
	return c.index
}

// Name the partition name, empty for cursors built with New
func (c *Cursor) Name() string {
	return c.name
}

// Offset byte offset of the partition on the device
func (c *Cursor) Offset() int64 {
	return c.offset
}

// Size of the partition in bytes
func (c *Cursor) Size() int64 {
	return c.size
}

// Read read from the current position, never past the end of the partition.
// At the end of the partition it returns 0, io.EOF.
func (c *Cursor) Read(b []byte) (int, error) {
	remaining := c.size - c.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > remaining {
		b = b[:remaining]
	}
	if _, err := c.f.Seek(c.offset+c.pos, io.SeekStart); err != nil {
		return 0, disk.NewIOError("seek partition", err)
	}
	n, err := c.f.Read(b)
	c.pos += int64(n)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return n, err
	default:
		return n, disk.NewIOError("read partition", err)
	}
}

// Write write at the current position. Bytes that would land past the end of the partition are
// dropped, in which case the count of bytes written is returned along with a
// *part.IncompletePartitionWriteError.
func (c *Cursor) Write(b []byte) (int, error) {
	total := len(b)
	remaining := c.size - c.pos
	if int64(total) > remaining {
		b = b[:remaining]
	}
	if len(b) == 0 {
		if total == 0 {
			return 0, nil
		}
		return 0, part.NewIncompletePartitionWriteError(0, uint64(total))
	}
	if _, err := c.f.Seek(c.offset+c.pos, io.SeekStart); err != nil {
		return 0, disk.NewIOError("seek partition", err)
	}
	n, err := c.f.Write(b)
	c.pos += int64(n)
	if err != nil {
		return n, disk.NewIOError("write partition", err)
	}
	if n < len(b) {
		return n, disk.NewIOError("write partition", io.ErrShortWrite)
	}
	if n < total {
		return n, part.NewIncompletePartitionWriteError(uint64(n), uint64(total))
	}
	return n, nil
}

// Seek move to a position relative to the start of the partition, the current position or the end
// of the partition. Positions outside [0, size] fail with *disk.OutOfRangeSeekError and leave
// the position where it was.
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = c.pos
	case io.SeekEnd:
		base = c.size
	default:
		return c.pos, fmt.Errorf("invalid whence %d", whence)
	}
	if offset < -base || offset > c.size-base {
		return c.pos, disk.NewOutOfRangeSeekError(base+offset, c.size)
	}
	c.pos = base + offset
	return c.pos, nil
}

// Sync flush written data to the device
func (c *Cursor) Sync() error {
	if err := backend.Sync(c.f); err != nil {
		return disk.NewIOError("sync partition", err)
	}
	return nil
}

// Close close the device handle
func (c *Cursor) Close() error {
	return c.f.Close()
}
