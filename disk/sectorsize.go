// Package disk provides utilities for working directly with a block device or
// disk image: sector size probing, device type detection, asking the kernel to
// re-read a partition table, and the error types shared by the packages that
// modify a device.
package disk

import (
	"github.com/diskfs/go-gptfixup/backend"
)

// when we use a disk image with a GPT, we cannot get the logical sector size from the disk via the kernel
// so we use the default sector size of 512, per Rod Smith
const (
	DefaultSectorSize  int64 = 512
	AdvancedSectorSize int64 = 4096
)

// LogicalSectorSize the logical sector size of the device behind s.
//
// Never fails: images, unsupported platforms, failed ioctls and any answer
// other than 512 or 4096 all yield DefaultSectorSize.
func LogicalSectorSize(s backend.Storage) int64 {
	osFile, err := s.Sys()
	if err != nil {
		return DefaultSectorSize
	}
	size, err := getLogicalSectorSize(osFile)
	if err != nil {
		return DefaultSectorSize
	}
	switch size {
	case DefaultSectorSize, AdvancedSectorSize:
		return size
	default:
		return DefaultSectorSize
	}
}
