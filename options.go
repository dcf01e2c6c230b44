package qzip

import (
	"fmt"
)

// config holds session and stream configuration
type config struct {
	Algorithm     Algorithm
	Level         int
	Mode          Mode
	Format        DataFormat
	RetryCount    int
	BlockSize     int // largest input run compressed as one unit
	BufferSize    int // stream accumulation buffer
	MaxBufferSize int // Reader output growth cap
}

// Option configures a Session, Reader, or Writer
type Option interface {
	apply(*config)
}

// funcOpt wraps a function as an Option
type funcOpt func(*config)

func (f funcOpt) apply(c *config) {
	f(c)
}

// WithAlgorithm selects the compression algorithm (default: Deflate)
func WithAlgorithm(a Algorithm) Option {
	return funcOpt(func(c *config) {
		c.Algorithm = a
	})
}

// WithLevel sets the compression level (default: 6)
// Valid ranges: deflate 1-9, lz4 0-9 (0 is the fast path), zstd 1-22
func WithLevel(level int) Option {
	return funcOpt(func(c *config) {
		c.Level = level
	})
}

// WithMode selects hardware-only execution or software failover
// (default: ModeAuto)
func WithMode(m Mode) Option {
	return funcOpt(func(c *config) {
		c.Mode = m
	})
}

// WithDataFormat sets the deflate framing (default: FormatGzipExt)
// lz4 and zstd sessions accept but ignore it, matching the accelerator.
func WithDataFormat(f DataFormat) Option {
	return funcOpt(func(c *config) {
		c.Format = f
	})
}

// WithRetryCount sets how many extra attempts transient engine failures
// get before surfacing (default: 0)
func WithRetryCount(n int) Option {
	return funcOpt(func(c *config) {
		c.RetryCount = n
	})
}

// WithBlockSize sets the largest input run compressed as a single unit
// (default: 64 KiB). Mirrors the accelerator's hardware buffer size;
// larger blocks improve ratio, smaller blocks bound decompression memory.
func WithBlockSize(n int) Option {
	return funcOpt(func(c *config) {
		c.BlockSize = n
	})
}

// WithBufferSize sets the stream accumulation buffer size for Reader and
// Writer (default: 64 KiB)
func WithBufferSize(n int) Option {
	return funcOpt(func(c *config) {
		c.BufferSize = n
	})
}

// WithMaxBufferSize caps Reader output buffer growth (default: 512 KiB).
// A Reader fails with ErrBufferLimit when a compressed unit needs more
// than this to decompress.
func WithMaxBufferSize(n int) Option {
	return funcOpt(func(c *config) {
		c.MaxBufferSize = n
	})
}

// levelBounds returns the valid level range for an algorithm.
func levelBounds(a Algorithm) (lo, hi int) {
	switch a {
	case LZ4:
		return 0, 9
	case Zstd:
		return 1, 22
	default:
		return 1, 9
	}
}

func (c *config) validate() error {
	switch c.Algorithm {
	case Deflate, LZ4, Zstd:
	default:
		return fmt.Errorf("unknown algorithm %d", c.Algorithm)
	}
	if lo, hi := levelBounds(c.Algorithm); c.Level < lo || c.Level > hi {
		return fmt.Errorf("invalid %s level %d (valid range %d..%d)", c.Algorithm, c.Level, lo, hi)
	}
	switch c.Mode {
	case ModeHardware, ModeAuto:
	default:
		return fmt.Errorf("unknown mode %d", c.Mode)
	}
	switch c.Format {
	case FormatDeflate4B, FormatGzip, FormatGzipExt, FormatDeflateRaw:
	default:
		return fmt.Errorf("unknown data format %d", c.Format)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("negative retry count %d", c.RetryCount)
	}
	if c.BlockSize <= 0 || c.BlockSize > MaxBlockSize {
		return fmt.Errorf("block size %d out of range (1..%d)", c.BlockSize, MaxBlockSize)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size %d must be positive", c.BufferSize)
	}
	if c.MaxBufferSize <= 0 {
		return fmt.Errorf("max buffer size %d must be positive", c.MaxBufferSize)
	}
	return nil
}

// defaultConfig returns sensible defaults
func defaultConfig() config {
	return config{
		Algorithm:     Deflate,
		Level:         DefaultLevel,
		Mode:          ModeAuto,
		Format:        FormatGzipExt,
		RetryCount:    0,
		BlockSize:     DefaultBlockSize,
		BufferSize:    DefaultBufferSize,
		MaxBufferSize: DefaultMaxBufferSize,
	}
}
