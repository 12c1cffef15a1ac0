// Package sync writes disk images onto devices and verifies what was written.
//
// Images may be raw, or compressed with xz or lz4; the compression is recognised from the
// first bytes of the stream, so callers never need to say which.
package sync

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/diskfs/go-gptfixup/backend"
	"github.com/diskfs/go-gptfixup/backend/file"
	"github.com/diskfs/go-gptfixup/disk"
	"github.com/diskfs/go-gptfixup/util"
)

// Compression of an image stream
type Compression int

const (
	CompressionNone Compression = iota
	CompressionXZ
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionXZ:
		return "xz"
	case CompressionLZ4:
		return "lz4"
	}
	return "none"
}

func xzMagic() []byte {
	return []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
}

func lz4Magic() []byte {
	return []byte{0x04, 0x22, 0x4d, 0x18}
}

// Decompress wrap r in a decompressor if it starts with an xz or lz4 frame, otherwise return
// a reader of r as it is.
func Decompress(r io.Reader) (io.Reader, Compression, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic()))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, CompressionNone, fmt.Errorf("could not read image header: %w", err)
	}
	switch {
	case bytes.HasPrefix(head, xzMagic()):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, CompressionXZ, fmt.Errorf("error creating xz reader: %w", err)
		}
		return xr, CompressionXZ, nil
	case bytes.HasPrefix(head, lz4Magic()):
		return lz4.NewReader(br), CompressionLZ4, nil
	default:
		return br, CompressionNone, nil
	}
}

// WriteImage write the image read from r to the start of the device at devicePath, decompressing it
// when needed, and sync the device. The device is opened write-only and never truncated, so whatever
// lies past the end of the image is left alone. Returns the number of image bytes written.
func WriteImage(r io.Reader, devicePath string, opts ...Option) (int64, error) {
	storage, err := file.OpenFromPath(devicePath, file.WriteOnly)
	if err != nil {
		return 0, disk.NewInvalidPathError(devicePath, err)
	}
	defer storage.Close()
	f, err := storage.Writable()
	if err != nil {
		return 0, disk.NewInvalidPathError(devicePath, err)
	}

	c := newConfig(opts)
	c.log = c.log.WithField("device", devicePath)
	return c.copyImage(r, f)
}

// Copy write the image read from r to w as WriteImage does. w is synced if it can be.
func Copy(r io.Reader, w io.Writer, opts ...Option) (int64, error) {
	return newConfig(opts).copyImage(r, w)
}

func (c *config) copyImage(r io.Reader, w io.Writer) (int64, error) {
	src, compression, err := Decompress(r)
	if err != nil {
		return 0, err
	}
	c.log.WithFields(logrus.Fields{
		"compression": compression,
		"chunk_size":  c.chunkSize,
	}).Debug("writing image")

	var written int64
	for {
		chunk, err := util.ReadUpTo(src, c.chunkSize)
		if err != nil {
			return written, fmt.Errorf("error reading %s image after %d bytes: %w", compression, written, err)
		}
		if len(chunk) == 0 {
			break
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, disk.NewIOError("write image", err)
		}
		if n != len(chunk) {
			return written, disk.NewIOError("write image", io.ErrShortWrite)
		}
		c.log.WithField("written", written).Trace("wrote chunk")
	}

	if err := backend.Sync(w); err != nil {
		return written, disk.NewIOError("sync device", err)
	}
	c.log.WithField("written", written).Debug("image written")
	return written, nil
}
