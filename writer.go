package qzip

import (
	"errors"
	"fmt"
	"io"
)

// Writer compresses a stream in fixed blocks. Bytes accumulate in a
// block-sized buffer; each full block, and any remainder on Flush or
// Close, becomes one session compress call whose output goes downstream
// in a single write.
type Writer struct {
	w    io.Writer
	sess *Session

	block []byte // accumulation buffer
	n     int    // pending bytes in block

	out []byte // compressed scratch, sized once to the worst case

	closed bool
	err    error // sticky: a failed write poisons the stream
}

// NewWriter creates a compressing writer over w. Options configure the
// owned session plus the accumulation block size.
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	if w == nil {
		return nil, errors.New("nil sink writer")
	}
	sess, err := NewSession(opts...)
	if err != nil {
		return nil, err
	}
	bound, err := sess.MaxCompressedLength(sess.BufferSize)
	if err != nil {
		_ = sess.End()
		return nil, err
	}
	return &Writer{
		w:     w,
		sess:  sess,
		block: sess.bufferPool.Get(sess.BufferSize),
		out:   sess.bufferPool.Get(bound),
	}, nil
}

// Write fills the accumulation block, compressing and emitting every time
// it fills. A partial block stays pending until the next write, Flush, or
// Close.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	total := 0
	for len(p) > len(w.block)-w.n {
		n := copy(w.block[w.n:], p)
		w.n += n
		p = p[n:]
		total += n
		if err := w.emit(); err != nil {
			w.err = err
			return total, err
		}
	}
	n := copy(w.block[w.n:], p)
	w.n += n
	return total + n, nil
}

// Flush compresses and emits pending bytes; the accumulation block always
// returns to empty. Flushing mid-stream costs ratio: the flushed
// remainder becomes its own unit.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.emit(); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *Writer) emit() error {
	if w.n == 0 {
		return nil
	}
	written, err := w.sess.Compress(w.out, w.block[:w.n])
	if err != nil {
		return err
	}
	w.n = 0
	if _, err := w.w.Write(w.out[:written]); err != nil {
		return fmt.Errorf("compress stream: %w", err)
	}
	return nil
}

// Close flushes pending bytes, ends the owned session, and closes the
// downstream sink when it is an io.Closer. Further writes fail with
// ErrStreamClosed; a second Close is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.Flush()
	w.err = ErrStreamClosed

	w.sess.bufferPool.Put(w.block)
	w.sess.bufferPool.Put(w.out)
	w.block, w.out = nil, nil

	if eerr := w.sess.End(); err == nil {
		err = eerr
	}
	if c, ok := w.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
