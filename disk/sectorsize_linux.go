package disk

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const blksszGet = 0x1268

func getLogicalSectorSize(f *os.File) (int64, error) {
	fd := f.Fd()
	logicalSectorSize, err := unix.IoctlGetInt(int(fd), blksszGet)
	if err != nil {
		return 0, fmt.Errorf("unable to get device logical sector size: %v", err)
	}
	return int64(logicalSectorSize), nil
}
