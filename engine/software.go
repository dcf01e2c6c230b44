package engine

import (
	"github.com/cespare/xxhash/v2"
)

// payloadCodec encodes and decodes one unit's payload. Implementations
// keep reusable scratch state and are single-threaded, like the engine
// that owns them.
type payloadCodec interface {
	// encodeAppend appends the encoded form of block to dst. The result
	// may be larger than block; the caller applies the stored-unit rule.
	encodeAppend(dst, block []byte) ([]byte, error)

	// decode decodes payload into dst, which is sized to the exact
	// uncompressed length.
	decode(dst, payload []byte) error

	close() error
}

// software is the failover engine: pure Go codecs producing the same
// framed units the hardware path produces.
type software struct {
	codec     payloadCodec
	blockSize int
	scratch   []byte // payload staging between units
	closed    bool
}

func newSoftware(p Params) (Engine, error) {
	var (
		codec payloadCodec
		err   error
	)
	switch p.Algorithm {
	case Deflate:
		codec, err = newDeflateCodec(p.Level, p.Format)
	case LZ4:
		codec, err = newLZ4Codec(p.Level)
	case Zstd:
		codec, err = newZstdCodec(p.Level)
	default:
		return nil, &Error{Op: "setup", Status: StatusUnsupportedFormat}
	}
	if err != nil {
		return nil, err
	}
	return &software{codec: codec, blockSize: p.BlockSize}, nil
}

func (e *software) MaxCompressedLength(n int) int {
	if n < 0 {
		return 0
	}
	units := (n + e.blockSize - 1) / e.blockSize
	if units == 0 {
		units = 1
	}
	// Stored units cap every payload at the raw block size, so the bound
	// is exact: worst case is all-stored plus one header per unit.
	return n + units*UnitHeaderSize
}

func (e *software) Compress(dst, src []byte) (int, error) {
	if e.closed {
		return 0, &Error{Op: "compress", Status: StatusFail}
	}

	written := 0
	for off := 0; off < len(src); off += e.blockSize {
		end := off + e.blockSize
		if end > len(src) {
			end = len(src)
		}
		block := src[off:end]

		encoded, err := e.codec.encodeAppend(e.scratch[:0], block)
		if err != nil {
			return 0, err
		}
		e.scratch = encoded[:0]

		payload := encoded
		if len(encoded) >= len(block) {
			payload = block // stored unit
		}

		if len(dst)-written < UnitHeaderSize+len(payload) {
			return 0, &Error{Op: "compress", Status: StatusBufferError}
		}
		putUnitHeader(dst[written:], unitHeader{
			UncompressedLen: len(block),
			PayloadLen:      len(payload),
			Checksum:        xxhash.Sum64(payload),
		})
		written += UnitHeaderSize
		written += copy(dst[written:], payload)
	}
	return written, nil
}

func (e *software) Decompress(dst, src []byte) (int, int, error) {
	if e.closed {
		return 0, 0, &Error{Op: "decompress", Status: StatusFail}
	}

	read, written := 0, 0
	for {
		rem := src[read:]
		if len(rem) < UnitHeaderSize {
			break // incomplete header, wait for more input
		}
		h, err := decodeUnitHeader(rem)
		if err != nil {
			return read, written, err
		}
		if len(rem) < UnitHeaderSize+h.PayloadLen {
			break // incomplete payload
		}
		if h.UncompressedLen > len(dst)-written {
			if read == 0 && written == 0 {
				return 0, 0, &Error{Op: "decompress", Status: StatusBufferError}
			}
			break // this unit goes to the caller's next call
		}

		payload := rem[UnitHeaderSize : UnitHeaderSize+h.PayloadLen]
		if err := verifyUnitPayload(h, payload); err != nil {
			return read, written, err
		}

		out := dst[written : written+h.UncompressedLen]
		if h.stored() {
			copy(out, payload)
		} else if err := e.codec.decode(out, payload); err != nil {
			return read, written, err
		}

		read += UnitHeaderSize + h.PayloadLen
		written += h.UncompressedLen
	}
	return read, written, nil
}

func (e *software) Close() error {
	if e.closed {
		return &Error{Op: "teardown", Status: StatusFail}
	}
	e.closed = true
	e.scratch = nil
	return e.codec.close()
}
