package qzip

import (
	"errors"
	"fmt"
	"io"

	"github.com/miretskiy/qzip/engine"
)

// Reader decompresses a stream of compressed units, such as one produced
// by Writer. It owns a private Session. Compressed bytes accumulate in a
// fixed input buffer; decoded bytes land in an output window that starts
// at the configured buffer size and doubles on demand up to the
// configured maximum.
type Reader struct {
	r      io.Reader
	sess   *Session
	maxOut int

	in    []byte // compressed accumulation
	inLen int    // valid bytes at the front of in

	out    []byte // decoded window
	outPos int
	outLen int

	srcEOF bool // upstream returned io.EOF
	eof    bool // upstream drained and every unit decoded
	closed bool
	err    error // sticky: once a read fails, every later read fails
}

// NewReader creates a decompressing reader over r. Options configure the
// owned session plus the stream buffer sizes.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	if r == nil {
		return nil, errors.New("nil source reader")
	}
	sess, err := NewSession(opts...)
	if err != nil {
		return nil, err
	}

	maxOut := sess.MaxBufferSize
	if maxOut < sess.BufferSize {
		maxOut = sess.BufferSize
	}
	// The input buffer must hold at least one worst-case unit for the
	// configured block size, or a full buffer could still decode nothing.
	inSize := sess.BufferSize
	if bound := sess.eng.MaxCompressedLength(sess.BlockSize); bound > inSize {
		inSize = bound
	}
	return &Reader{
		r:      r,
		sess:   sess,
		maxOut: maxOut,
		in:     sess.bufferPool.Get(inSize),
		out:    sess.bufferPool.Get(sess.BufferSize),
	}, nil
}

// Read fills p from the decoded window, refilling it as needed. It
// returns io.EOF once the compressed stream is fully drained.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	for r.outPos == r.outLen {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			r.err = err
			return 0, err
		}
	}
	n := copy(p, r.out[r.outPos:r.outLen])
	r.outPos += n
	return n, nil
}

// ReadByte returns the next decoded byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	for r.outPos == r.outLen {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			r.err = err
			return 0, err
		}
	}
	b := r.out[r.outPos]
	r.outPos++
	return b, nil
}

// Buffered reports decoded bytes not yet delivered by Read.
func (r *Reader) Buffered() int {
	return r.outLen - r.outPos
}

// fill decodes the next window of output. One pass tops the input buffer
// up from upstream, decodes every complete unit that fits, grows the
// output buffer when the next unit cannot fit, and slides the undecoded
// remainder to the front for the next pass.
func (r *Reader) fill() error {
	for !r.srcEOF && r.inLen < len(r.in) {
		n, err := r.r.Read(r.in[r.inLen:])
		r.inLen += n
		if err == io.EOF {
			r.srcEOF = true
			break
		}
		if err != nil {
			return fmt.Errorf("decompress stream: %w", err)
		}
	}
	if r.inLen == 0 {
		// Only reachable at upstream EOF: an empty stream decodes to
		// nothing.
		r.eof = true
		return nil
	}

	r.outPos, r.outLen = 0, 0
	consumed := 0
	for {
		read, written, err := r.sess.decompressStream(r.out, r.in[consumed:r.inLen])
		if err != nil {
			if StatusOf(err) == engine.StatusBufferError {
				// The next unit outgrows the current window.
				if err := r.growOutput(); err != nil {
					return err
				}
				continue
			}
			if written == 0 {
				return fmt.Errorf("decompress stream: %w", err)
			}
			// Units decoded before the corruption still get delivered; the
			// bad bytes stay at the front of the input and fail the next
			// fill.
		}
		consumed += read
		r.outLen = written
		break
	}

	if consumed > 0 {
		copy(r.in, r.in[consumed:r.inLen])
		r.inLen -= consumed
	}

	if r.outLen > 0 {
		return nil
	}
	if consumed > 0 {
		// Only empty units decoded so far; go around on the remainder.
		return r.fill()
	}
	if r.srcEOF {
		return fmt.Errorf("decompress stream: %w",
			&engine.Error{Op: "decompress", Status: engine.StatusDataError, Err: ErrIncompleteSource})
	}
	// Upstream has more, but the input buffer is already full without
	// holding one complete unit.
	return fmt.Errorf("decompress stream: %w: no complete unit fits the %d byte input buffer",
		ErrBufferLimit, len(r.in))
}

// growOutput doubles the decoded window up to the configured maximum.
func (r *Reader) growOutput() error {
	if len(r.out) >= r.maxOut {
		return fmt.Errorf("decompress stream: %w (cap %d bytes)", ErrBufferLimit, r.maxOut)
	}
	size := len(r.out) * 2
	if size > r.maxOut {
		size = r.maxOut
	}
	r.sess.bufferPool.Put(r.out)
	r.out = r.sess.bufferPool.Get(size)
	r.outPos, r.outLen = 0, 0
	return nil
}

// Close ends the owned session and closes upstream when it is an
// io.Closer. Further reads fail with ErrStreamClosed; a second Close is a
// no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.err = ErrStreamClosed

	r.sess.bufferPool.Put(r.in)
	r.sess.bufferPool.Put(r.out)
	r.in, r.out = nil, nil
	r.inLen, r.outPos, r.outLen = 0, 0, 0

	err := r.sess.End()
	if c, ok := r.r.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
