package sync

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/diskfs/go-gptfixup/backend/file"
	"github.com/diskfs/go-gptfixup/disk"
)

// MismatchError the device does not start with the image
type MismatchError struct {
	Size        int64
	ImageSum    []byte
	DeviceSum   []byte
	Compression Compression
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("data mismatch between image and device over %d bytes: image sha256 %x, device sha256 %x", e.Size, e.ImageSum, e.DeviceSum)
}

// VerifyImage check that the device at devicePath starts with the image read from r, decompressing
// the image when needed. Only as many bytes of the device as the image holds are compared.
//
// Note that a GPT fixup after writing the image changes the device, so verify before fixing up.
func VerifyImage(r io.Reader, devicePath string, opts ...Option) error {
	storage, err := file.OpenFromPath(devicePath, file.ReadOnly)
	if err != nil {
		return disk.NewInvalidPathError(devicePath, err)
	}
	defer storage.Close()

	c := newConfig(opts)
	c.log = c.log.WithField("device", devicePath)
	return c.verify(r, storage)
}

// Verify check that device starts with the image read from r, as VerifyImage does
func Verify(r io.Reader, device io.Reader, opts ...Option) error {
	return newConfig(opts).verify(r, device)
}

func (c *config) verify(r, device io.Reader) error {
	src, compression, err := Decompress(r)
	if err != nil {
		return err
	}
	buf := make([]byte, c.chunkSize)

	imageHasher := sha256.New()
	size, err := io.CopyBuffer(imageHasher, src, buf)
	if err != nil {
		return fmt.Errorf("error reading %s image: %w", compression, err)
	}
	imageSum := imageHasher.Sum(nil)

	// create a sha256sum of the device, limited to the size of the image
	deviceHasher := sha256.New()
	n, err := io.CopyBuffer(deviceHasher, io.LimitReader(device, size), buf)
	if err != nil {
		return disk.NewIOError("read device", err)
	}
	if n != size {
		return disk.NewIOError("read device", fmt.Errorf("device holds %d bytes, image is %d bytes: %w", n, size, io.ErrUnexpectedEOF))
	}
	deviceSum := deviceHasher.Sum(nil)

	c.log.WithFields(logrus.Fields{
		"size":   size,
		"image":  fmt.Sprintf("%x", imageSum),
		"device": fmt.Sprintf("%x", deviceSum),
	}).Debug("sha256 of image and device")
	if !bytes.Equal(imageSum, deviceSum) {
		return &MismatchError{
			Size:        size,
			ImageSum:    imageSum,
			DeviceSum:   deviceSum,
			Compression: compression,
		}
	}
	return nil
}

// IsMismatch whether err reports a device that does not match its image
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}
