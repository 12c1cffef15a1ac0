// Package util holds small helpers shared by the device-level packages.
package util

import (
	"fmt"
	"strings"
)

// DumpByteSlice dump a byte slice in hex, like xxd, with the position in hex at the start of each row
// and the printable ASCII at the end. Bytes whose position is in highlight are shown in bold red.
// When onlyHighlighted is set, rows without any highlighted byte are left out.
func DumpByteSlice(b []byte, bytesPerRow int, highlight map[int]bool, onlyHighlighted bool) string {
	if bytesPerRow <= 0 {
		bytesPerRow = 16
	}
	var out strings.Builder
	for first := 0; first < len(b); first += bytesPerRow {
		last := first + bytesPerRow
		var (
			row      strings.Builder
			ascii    = make([]byte, 0, bytesPerRow)
			included = !onlyHighlighted
		)
		fmt.Fprintf(&row, "%08x : ", first)
		for j := first; j < last; j++ {
			// every 8 bytes add extra spacing to make it easier to read
			if j%8 == 0 {
				row.WriteByte(' ')
			}
			if j >= len(b) {
				row.WriteString("   ")
				ascii = append(ascii, ' ')
				continue
			}
			hex := fmt.Sprintf(" %02x", b[j])
			if highlight[j] {
				hex = "\033[1m\033[31m" + hex + "\033[0m"
				included = true
			}
			row.WriteString(hex)
			if b[j] < 32 || b[j] > 126 {
				ascii = append(ascii, '.')
			} else {
				ascii = append(ascii, b[j])
			}
		}
		if included {
			fmt.Fprintf(&out, "%s  %s\n", row.String(), ascii)
		}
	}
	return out.String()
}

// DumpByteSlicesWithDiffs show two byte slices in hex with differences highlighted, limited to the rows
// that differ. Reports false and an empty string if they are identical.
func DumpByteSlicesWithDiffs(a, b []byte, bytesPerRow int) (different bool, out string) {
	diffs := make(map[int]bool)
	size := len(a)
	if len(b) > size {
		size = len(b)
	}
	for i := 0; i < size; i++ {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			diffs[i] = true
		}
	}
	if len(diffs) == 0 {
		return false, ""
	}
	return true, DumpByteSlice(a, bytesPerRow, diffs, true) + "\n" + DumpByteSlice(b, bytesPerRow, diffs, true)
}
