package disk

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// this constant should be part of "golang.org/x/sys/unix", but isn't, yet
const DKIOCGETBLOCKSIZE = 0x40046418

func getLogicalSectorSize(f *os.File) (int64, error) {
	fd := f.Fd()
	logicalSectorSize, err := unix.IoctlGetInt(int(fd), DKIOCGETBLOCKSIZE)
	if err != nil {
		return 0, fmt.Errorf("unable to get device logical sector size: %v", err)
	}
	return int64(logicalSectorSize), nil
}
