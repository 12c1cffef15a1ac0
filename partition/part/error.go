package part

import "fmt"

// IncompletePartitionWriteError a write reached the end of the partition and
// was cut short. The bytes that fit were written.
type IncompletePartitionWriteError struct {
	writtenBytes uint64
	totalBytes   uint64
}

func (e *IncompletePartitionWriteError) Error() string {
	return fmt.Sprintf("wrote %d of %d bytes, reached end of partition", e.writtenBytes, e.totalBytes)
}

// Written how many bytes made it into the partition
func (e *IncompletePartitionWriteError) Written() uint64 {
	return e.writtenBytes
}

func NewIncompletePartitionWriteError(written, total uint64) error {
	return &IncompletePartitionWriteError{
		writtenBytes: written,
		totalBytes:   total,
	}
}
