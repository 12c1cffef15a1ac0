//go:build !(aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)

package disk

import "github.com/diskfs/go-gptfixup/backend"

// ReReadPartitionTable is a no-op where the kernel offers no BLKRRPART
func ReReadPartitionTable(s backend.Storage) error {
	return nil
}
