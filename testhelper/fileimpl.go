package testhelper

import (
	"errors"
	"fmt"
	"io"
	"os"
)

type reader func(b []byte, offset int64) (int, error)
type writer func(b []byte, offset int64) (int, error)

// FileImpl implement github.com/diskfs/go-gptfixup/backend.WritableFile
// used for testing to enable stubbing out files
type FileImpl struct {
	Reader reader
	Writer writer
	// Length reported as the end of the file when seeking
	Length int64
	pos    int64
}

// NewMemFile a FileImpl over b; writes land in b and cannot grow it
func NewMemFile(b []byte) *FileImpl {
	return &FileImpl{
		Length: int64(len(b)),
		Reader: func(p []byte, offset int64) (int, error) {
			if offset >= int64(len(b)) {
				return 0, io.EOF
			}
			n := copy(p, b[offset:])
			if n < len(p) {
				return n, io.EOF
			}
			return n, nil
		},
		Writer: func(p []byte, offset int64) (int, error) {
			if offset+int64(len(p)) > int64(len(b)) {
				return 0, fmt.Errorf("write of %d bytes at %d past end of %d byte file", len(p), offset, len(b))
			}
			return copy(b[offset:], p), nil
		},
	}
}

func (f *FileImpl) Stat() (os.FileInfo, error) {
	return nil, nil
}

func (f *FileImpl) Read(b []byte) (int, error) {
	n, err := f.Reader(b, f.pos)
	f.pos += int64(n)
	return n, err
}

// Write write at the current position
func (f *FileImpl) Write(b []byte) (int, error) {
	n, err := f.Writer(b, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *FileImpl) Close() error {
	return nil
}

// ReadAt read at a particular offset
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// WriteAt write at a particular offset
func (f *FileImpl) WriteAt(b []byte, offset int64) (int, error) {
	return f.Writer(b, offset)
}

// Seek move the position used by Read and Write
func (f *FileImpl) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = f.Length + offset
	default:
		return 0, errors.New("FileImpl.Seek: invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("FileImpl.Seek: negative position")
	}
	f.pos = pos
	return pos, nil
}
