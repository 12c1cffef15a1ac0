package cursor

import (
	"io"

	"github.com/sirupsen/logrus"
)

type config struct {
	log        logrus.FieldLogger
	sectorSize int64
}

// Option configures how Open resolves a partition
type Option func(*config)

// WithLogger where to log warnings and lookups; nothing is logged without it
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithSectorSize read the GPT with this logical sector size instead of asking the device
func WithSectorSize(size int64) Option {
	return func(c *config) {
		c.sectorSize = size
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	return c
}
