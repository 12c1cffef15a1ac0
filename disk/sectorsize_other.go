//go:build !linux && !darwin

package disk

import (
	"errors"
	"os"
)

func getLogicalSectorSize(f *os.File) (int64, error) {
	return 0, errors.New("block devices not supported on this platform")
}
