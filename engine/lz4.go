package engine

import (
	"slices"

	"github.com/pierrec/lz4/v4"
)

// lz4Level maps numeric levels to block compressor levels. Level 0 is the
// fast path; 1-9 select high compression depth.
func lz4Level(l int) lz4.CompressionLevel {
	levels := [...]lz4.CompressionLevel{
		lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
		lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
	}
	if l < 1 {
		return lz4.Fast
	}
	if l > len(levels) {
		l = len(levels)
	}
	return levels[l-1]
}

// lz4Codec compresses units as raw lz4 blocks. Compressor state carries
// the dictionary tables between units, so one instance is reused.
type lz4Codec struct {
	fast *lz4.Compressor
	hc   *lz4.CompressorHC
}

func newLZ4Codec(level int) (payloadCodec, error) {
	c := &lz4Codec{}
	if level < 1 {
		c.fast = &lz4.Compressor{}
	} else {
		c.hc = &lz4.CompressorHC{Level: lz4Level(level)}
	}
	return c, nil
}

func (c *lz4Codec) encodeAppend(dst, block []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(block))
	dst = slices.Grow(dst, bound)
	view := dst[len(dst) : len(dst)+bound]

	var (
		n   int
		err error
	)
	if c.fast != nil {
		n, err = c.fast.CompressBlock(block, view)
	} else {
		n, err = c.hc.CompressBlock(block, view)
	}
	if err != nil {
		return nil, &Error{Op: "compress", Status: StatusFail, Err: err}
	}
	if n == 0 {
		// Incompressible block; hand back something the stored-unit rule
		// will discard in favor of the raw bytes.
		return append(dst, block...), nil
	}
	return dst[:len(dst)+n], nil
}

func (c *lz4Codec) decode(dst, payload []byte) error {
	n, err := lz4.UncompressBlock(payload, dst)
	if err != nil {
		return &Error{Op: "decompress", Status: StatusDataError, Err: err}
	}
	if n != len(dst) {
		return &Error{Op: "decompress", Status: StatusDataError}
	}
	return nil
}

func (c *lz4Codec) close() error {
	c.fast, c.hc = nil, nil
	return nil
}
