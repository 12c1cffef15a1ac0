package disk

import "fmt"

// InvalidPathError the device path could not be opened
type InvalidPathError struct {
	path string
	err  error
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid device path %s: %v", e.path, e.err)
}

func (e *InvalidPathError) Unwrap() error {
	return e.err
}

func NewInvalidPathError(path string, err error) *InvalidPathError {
	return &InvalidPathError{
		path: path,
		err:  err,
	}
}

// NotGPTError the device does not carry a GPT header the tools can work with.
// It is always returned before anything is written to the device.
type NotGPTError struct {
	reason string
}

func (e *NotGPTError) Error() string {
	return fmt.Sprintf("device is not GPT formatted: %s", e.reason)
}

func NewNotGPTError(format string, args ...interface{}) *NotGPTError {
	return &NotGPTError{
		reason: fmt.Sprintf(format, args...),
	}
}

// PartitionNotFoundError neither a partition name nor a partition index matched
type PartitionNotFoundError struct {
	identifier string
}

func (e *PartitionNotFoundError) Error() string {
	return fmt.Sprintf("failed to find partition %q in GPT", e.identifier)
}

func (e *PartitionNotFoundError) Identifier() string {
	return e.identifier
}

func NewPartitionNotFoundError(identifier string) *PartitionNotFoundError {
	return &PartitionNotFoundError{
		identifier: identifier,
	}
}

// IOError a seek, read, write or sync on the device failed
type IOError struct {
	op  string
	err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *IOError) Unwrap() error {
	return e.err
}

// Op the operation that failed
func (e *IOError) Op() string {
	return e.op
}

func NewIOError(op string, err error) *IOError {
	return &IOError{
		op:  op,
		err: err,
	}
}

// OutOfRangeSeekError a seek target fell outside [0, size]
type OutOfRangeSeekError struct {
	requested int64
	size      int64
}

func (e *OutOfRangeSeekError) Error() string {
	return fmt.Sprintf("cannot seek to %d, outside of partition of size %d", e.requested, e.size)
}

func NewOutOfRangeSeekError(requested, size int64) *OutOfRangeSeekError {
	return &OutOfRangeSeekError{
		requested: requested,
		size:      size,
	}
}
