package partition

import (
	"github.com/diskfs/go-gptfixup/partition/part"
)

// Table reference to a partitioning table on disk
type Table interface {
	Type() string
	LogicalBlockSize() int
	GetPartitions() []part.Partition
	LookupPartition(identifier string) (part.Partition, error)
}
