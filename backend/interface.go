package backend

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

var (
	ErrIncorrectOpenMode = errors.New("disk file or device not open for write")
	ErrNotSuitable       = errors.New("backing file is not suitable")
)

type File interface {
	fs.File
	io.ReaderAt
	io.Seeker
	io.Closer
}

type WritableFile interface {
	File
	io.Writer
	io.WriterAt
}

type Storage interface {
	File
	// OS-specific file for ioctl calls via fd
	Sys() (*os.File, error)
	// file for read-write operations
	Writable() (WritableFile, error)
}

// Sync flushes f to stable storage if it knows how to; files without a
// Sync method are treated as already durable.
func Sync(f interface{}) error {
	if s, ok := f.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Size reports the byte length of f by seeking to its end. Block devices
// report a zero Stat size, so seeking is the only portable way to learn it.
// The file offset is left at the end.
func Size(f io.Seeker) (int64, error) {
	return f.Seek(0, io.SeekEnd)
}
