package util

import (
	"io"
)

// ReadUpTo reads from r until n bytes have been read or r is exhausted.
//
// Unlike io.ReadFull, reaching the end of r early is not an error: the bytes
// that were available are returned and the caller decides whether a short
// result is acceptable. A negative n reads everything.
func ReadUpTo(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return io.ReadAll(r)
	}
	b := make([]byte, n)
	read, err := io.ReadFull(r, b)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		return b[:read], nil
	default:
		return b[:read], err
	}
}

// ReadUpToAt is ReadUpTo starting at offset off of r
func ReadUpToAt(r io.ReaderAt, off int64, n int) ([]byte, error) {
	if n < 0 {
		return ReadUpTo(io.NewSectionReader(r, off, 1<<62), n)
	}
	return ReadUpTo(io.NewSectionReader(r, off, int64(n)), n)
}
