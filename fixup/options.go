package fixup

import (
	"io"

	"github.com/sirupsen/logrus"
)

type config struct {
	log        logrus.FieldLogger
	sectorSize int64
}

// Option configures a fixup run
type Option func(*config)

// WithLogger log the steps of the fixup to l. Without it nothing is logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithSectorSize use size as the logical sector size instead of asking the device
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
