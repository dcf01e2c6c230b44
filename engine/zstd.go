package engine

import (
	"github.com/klauspost/compress/zstd"
)

// zstdCodec compresses units as single zstd frames. The encoder and
// decoder are stateless between EncodeAll/DecodeAll calls and pinned to
// one goroutine worth of concurrency.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec(level int) (payloadCodec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
		// Unit headers carry an xxhash of the payload; no frame crc.
		zstd.WithEncoderCRC(false),
	)
	if err != nil {
		return nil, &Error{Op: "setup", Status: StatusParams, Err: err}
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, &Error{Op: "setup", Status: StatusParams, Err: err}
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) encodeAppend(dst, block []byte) ([]byte, error) {
	return c.enc.EncodeAll(block, dst), nil
}

func (c *zstdCodec) decode(dst, payload []byte) error {
	out, err := c.dec.DecodeAll(payload, dst[:0])
	if err != nil {
		return &Error{Op: "decompress", Status: StatusDataError, Err: err}
	}
	if len(out) != len(dst) {
		return &Error{Op: "decompress", Status: StatusDataError}
	}
	// DecodeAll reallocates if dst capacity is short; the result must end
	// up in dst either way.
	if &out[0] != &dst[0] {
		copy(dst, out)
	}
	return nil
}

func (c *zstdCodec) close() error {
	c.enc.Close()
	c.dec.Close()
	return nil
}
