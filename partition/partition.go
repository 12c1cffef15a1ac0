// Package partition provides ability to work with individual partitions.
// All useful implementations are subpackages of this package, e.g. github.com/diskfs/go-gptfixup/partition/gpt
package partition

import (
	"fmt"
	"io"

	"github.com/diskfs/go-gptfixup/partition/gpt"
)

// Read read a partition table from a disk
func Read(f io.ReaderAt, logicalBlocksize int) (Table, error) {
	gptTable, err := gpt.Read(f, logicalBlocksize)
	if err != nil {
		return nil, fmt.Errorf("unknown disk partition type: %w", err)
	}
	return gptTable, nil
}
