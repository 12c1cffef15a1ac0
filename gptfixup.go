// Package gptfixup writes disk images to devices larger than the image and repairs the GPT
// afterwards, so that it describes the device instead of the image.
//
// A GPT carries its own idea of the disk size: the backup header lives in the last sector and
// the usable range ends just before the backup partition array. Writing a 4GB image to a 32GB
// card leaves a GPT that claims a 4GB disk, with its backup copy somewhere in the middle of the
// card. This package moves the backup copy to the real end of the device, widens the usable
// range, and rewrites the checksums and the protective MBR to match. Partition entries are left
// exactly as they were.
//
// Some examples:
//
// 1. Write a compressed image to a card and fix up its GPT.
//
//	import gptfixup "github.com/diskfs/go-gptfixup"
//
//	img, err := os.Open("/tmp/raspios.img.xz")
//	result, err := gptfixup.Flash(img, "/dev/sdb", gptfixup.WithVerify(true))
//
// 2. Fix up a device that was already written some other way, e.g. with dd.
//
//	result, err := gptfixup.Fixup("/dev/sdb")
//
// 3. Replace the contents of the partition named "rootfs".
//
//	p, err := gptfixup.OpenPartition("/dev/sdb", "rootfs")
//	defer p.Close()
//	_, err = io.Copy(p, rootfsImage)
//
// None of this is safe against a device that is in use elsewhere, and the GPT update is not
// atomic: a failure partway through can leave a device whose primary and backup GPT disagree.
package gptfixup

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/diskfs/go-gptfixup/backend"
	"github.com/diskfs/go-gptfixup/backend/file"
	"github.com/diskfs/go-gptfixup/cursor"
	"github.com/diskfs/go-gptfixup/disk"
	"github.com/diskfs/go-gptfixup/fixup"
	"github.com/diskfs/go-gptfixup/partition/gpt"
	"github.com/diskfs/go-gptfixup/sync"
)

// Flash write the image read from image to the device at devicePath, decompressing xz or lz4 images,
// then fix up the GPT to fit the device and ask the kernel to re-read the partition table.
//
// With WithVerify the device is compared with the image before the fixup, which needs image to be
// rewound, hence the io.ReadSeeker.
func Flash(image io.ReadSeeker, devicePath string, opts ...Option) (*fixup.Result, error) {
	c := newConfig(opts)
	log := c.log.WithField("device", devicePath)

	written, err := sync.WriteImage(image, devicePath, c.syncOptions()...)
	if err != nil {
		return nil, fmt.Errorf("error writing image to %s: %w", devicePath, err)
	}
	log.WithField("written", written).Info("image written")

	if c.verify {
		if _, err := image.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("could not rewind image for verification: %w", err)
		}
		if err := sync.VerifyImage(image, devicePath, c.syncOptions()...); err != nil {
			return nil, fmt.Errorf("error verifying image on %s: %w", devicePath, err)
		}
		log.Info("image verified")
	}

	res, err := c.fixup(devicePath)
	if err != nil {
		return nil, err
	}
	c.reReadPartitionTable(devicePath, log)
	return res, nil
}

// Fixup rewrite the GPT on the device or image at devicePath to fit its size, see fixup.Fixup
func Fixup(devicePath string, opts ...Option) (*fixup.Result, error) {
	c := newConfig(opts)
	res, err := c.fixup(devicePath)
	if err != nil {
		return nil, err
	}
	c.reReadPartitionTable(devicePath, c.log.WithField("device", devicePath))
	return res, nil
}

// OpenPartition open a cursor onto the partition of the device at devicePath named by identifier,
// a partition name or failing that a 1-based partition index.
func OpenPartition(devicePath, identifier string, opts ...Option) (*cursor.Cursor, error) {
	c := newConfig(opts)
	copts := []cursor.Option{cursor.WithLogger(c.log)}
	if c.sectorSize != 0 {
		copts = append(copts, cursor.WithSectorSize(c.sectorSize))
	}
	return cursor.Open(devicePath, identifier, copts...)
}

// SizeMismatchError the GPT describes a disk of a different size than the device it is on
type SizeMismatchError struct {
	GPTSize    int64
	DeviceSize int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("GPT describes a disk of %d bytes, device is %d bytes", e.GPTSize, e.DeviceSize)
}

// ReadTable read the GPT of the device at devicePath. The primary header and partition array must be
// valid. Problems a fixup would repair are reported separately as fixable, so that a device in need
// of a fixup can still be listed: a backup GPT that does not match the primary, or a
// *SizeMismatchError when the GPT was made for a disk of another size.
func ReadTable(devicePath string, opts ...Option) (table *gpt.Table, fixable error, err error) {
	c := newConfig(opts)
	storage, err := file.OpenFromPath(devicePath, file.ReadOnly)
	if err != nil {
		return nil, nil, disk.NewInvalidPathError(devicePath, err)
	}
	defer storage.Close()

	sectorSize := c.sectorSize
	if sectorSize == 0 {
		sectorSize = disk.LogicalSectorSize(storage)
	}
	table, err = gpt.Read(storage, int(sectorSize))
	if err != nil {
		return nil, nil, err
	}
	if err := table.VerifyBackup(storage); err != nil {
		return table, err, nil
	}
	size, err := backend.Size(storage)
	if err != nil {
		return nil, nil, disk.NewIOError("determine device size", err)
	}
	if size/sectorSize != table.DiskSize()/sectorSize {
		return table, &SizeMismatchError{GPTSize: table.DiskSize(), DeviceSize: size}, nil
	}
	return table, nil, nil
}

func (c *config) fixup(devicePath string) (*fixup.Result, error) {
	fopts := []fixup.Option{fixup.WithLogger(c.log)}
	if c.sectorSize != 0 {
		fopts = append(fopts, fixup.WithSectorSize(c.sectorSize))
	}
	res, err := fixup.Fixup(devicePath, fopts...)
	if err != nil {
		return nil, fmt.Errorf("error fixing up GPT on %s: %w", devicePath, err)
	}
	return res, nil
}

func (c *config) syncOptions() []sync.Option {
	opts := []sync.Option{sync.WithLogger(c.log)}
	if c.chunkSize != 0 {
		opts = append(opts, sync.WithChunkSize(c.chunkSize))
	}
	return opts
}

// reReadPartitionTable the GPT is already on the device at this point, so failing to get the kernel
// to notice only warrants a warning
func (c *config) reReadPartitionTable(devicePath string, log logrus.FieldLogger) {
	storage, err := file.OpenFromPath(devicePath, file.ReadOnly)
	if err != nil {
		log.Warnf("could not open device to re-read partition table: %v", err)
		return
	}
	defer storage.Close()
	if err := disk.ReReadPartitionTable(storage); err != nil {
		log.Warnf("%v", err)
	}
}
