package sync

import (
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultChunkSize how much of an image is read before it is written out
const DefaultChunkSize = 9 * 1024 * 1024

type config struct {
	log       logrus.FieldLogger
	chunkSize int
}

// Option configures image copying and verification
type Option func(*config)

// WithLogger log progress to l
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithChunkSize copy in chunks of size bytes instead of DefaultChunkSize
func WithChunkSize(size int) Option {
	return func(c *config) {
		c.chunkSize = size
	}
}

func newConfig(opts []Option) *config {
	c := &config{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	return c
}
