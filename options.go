package gptfixup

import (
	"io"

	"github.com/sirupsen/logrus"
)

type config struct {
	log        logrus.FieldLogger
	sectorSize int64
	chunkSize  int
	verify     bool
}

// Option configures the device operations of this package
type Option func(*config)

// WithLogger log to l; nothing is logged without it
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithSectorSize use size as the logical sector size of the device instead of asking the kernel
func WithSectorSize(size int64) Option {
	return func(c *config) {
		c.sectorSize = size
	}
}

// WithChunkSize write images in chunks of size bytes
func WithChunkSize(size int) Option {
	return func(c *config) {
		c.chunkSize = size
	}
}

// WithVerify compare the device with the image after writing it, before the GPT is fixed up
func WithVerify(verify bool) Option {
	return func(c *config) {
		c.verify = verify
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
