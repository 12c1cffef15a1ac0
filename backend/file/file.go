package file

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/diskfs/go-gptfixup/backend"
)

// OpenMode how a device or image is opened
type OpenMode int

const (
	// ReadOnly open for reading only
	ReadOnly OpenMode = iota
	// ReadWrite open for reading and writing, shared with other openers
	ReadWrite
	// ReadWriteExclusive open for reading and writing; on Linux a block device
	// with mounted partitions refuses this mode
	ReadWriteExclusive
	// WriteOnly open for writing only, never truncates
	WriteOnly
)

func (m OpenMode) flags() int {
	switch m {
	case ReadWrite:
		return os.O_RDWR
	case ReadWriteExclusive:
		return os.O_RDWR | os.O_EXCL
	case WriteOnly:
		return os.O_WRONLY
	default:
		return os.O_RDONLY
	}
}

func (m OpenMode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case ReadWriteExclusive:
		return "read-write-exclusive"
	case WriteOnly:
		return "write-only"
	}
	return fmt.Sprintf("OpenMode(%d)", int(m))
}

type rawBackend struct {
	storage  fs.File
	readOnly bool
}

// Create a backend.Storage from provided fs.File
func New(f fs.File, readOnly bool) backend.Storage {
	return rawBackend{
		storage:  f,
		readOnly: readOnly,
	}
}

// Create a backend.Storage from a path to a device
// Should pass a path to a block device e.g. /dev/sda or a path to a file /tmp/foo.img
// The provided device/file must exist at the time you call OpenFromPath()
func OpenFromPath(pathName string, mode OpenMode) (backend.Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass device or file name")
	}

	if _, err := os.Stat(pathName); err != nil {
		return nil, fmt.Errorf("provided device/file %s is not accessible: %w", pathName, err)
	}

	f, err := os.OpenFile(pathName, mode.flags(), 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open device %s %s: %w", pathName, mode, err)
	}

	return rawBackend{
		storage:  f,
		readOnly: mode == ReadOnly,
	}, nil
}

// backend.Storage interface guard
var _ backend.Storage = (*rawBackend)(nil)

// OS-specific file for ioctl calls via fd
func (f rawBackend) Sys() (*os.File, error) {
	if osFile, ok := f.storage.(*os.File); ok {
		return osFile, nil
	}
	return nil, backend.ErrNotSuitable
}

// file for read-write operations
func (f rawBackend) Writable() (backend.WritableFile, error) {
	if rwFile, ok := f.storage.(backend.WritableFile); ok {
		if !f.readOnly {
			return rwFile, nil
		}

		return nil, backend.ErrIncorrectOpenMode
	}
	return nil, backend.ErrNotSuitable
}

func (f rawBackend) Stat() (fs.FileInfo, error) {
	return f.storage.Stat()
}

func (f rawBackend) Read(b []byte) (int, error) {
	return f.storage.Read(b)
}

func (f rawBackend) Close() error {
	return f.storage.Close()
}

func (f rawBackend) ReadAt(p []byte, off int64) (n int, err error) {
	if readerAt, ok := f.storage.(io.ReaderAt); ok {
		return readerAt.ReadAt(p, off)
	}
	return -1, backend.ErrNotSuitable
}

func (f rawBackend) Seek(offset int64, whence int) (int64, error) {
	if seeker, ok := f.storage.(io.Seeker); ok {
		return seeker.Seek(offset, whence)
	}
	return -1, backend.ErrNotSuitable
}
