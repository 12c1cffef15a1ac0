package part

// Partition reference to an individual partition on disk
type Partition interface {
	// GetSize size of the partition in bytes
	GetSize() int64
	// GetStart byte offset of the partition from the start of the disk
	GetStart() int64
	// GetIndex position of the partition in its table, starting at 1
	GetIndex() int
	GetName() string
	UUID() string
}
