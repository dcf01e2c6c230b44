package qzip

import (
	"errors"
	"fmt"
	"runtime"

	pool "github.com/libp2p/go-buffer-pool"

	"github.com/miretskiy/qzip/engine"
)

// Session is one compression context: an engine handle plus the retry and
// accounting state around it. A session serves one call at a time; wrap
// one per goroutine.
type Session struct {
	config
	eng        engine.Engine
	cleanup    runtime.Cleanup
	bufferPool *pool.BufferPool // staging for opaque views and stream scratch

	bytesRead    int
	bytesWritten int
	ended        bool
}

// NewSession creates a session for the configured algorithm, level, and
// mode. ModeHardware fails when no accelerator is available; ModeAuto
// falls back to the software engine.
func NewSession(opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Params{
		Algorithm: cfg.Algorithm,
		Level:     cfg.Level,
		Mode:      cfg.Mode,
		Format:    cfg.Format,
		BlockSize: cfg.BlockSize,
	})
	if err != nil {
		return nil, fmt.Errorf("engine setup: %w", err)
	}
	if cfg.Mode == ModeAuto && !engine.HardwareAvailable() {
		log.Debug("no accelerator available, using software engine",
			"algorithm", cfg.Algorithm.String())
	}

	s := &Session{config: cfg, eng: eng, bufferPool: new(pool.BufferPool)}
	// The cleanup argument is the engine, not the session, so the session
	// itself stays collectable.
	s.cleanup = runtime.AddCleanup(s, func(e engine.Engine) {
		log.Warn("session reclaimed by GC without End; closing engine")
		_ = e.Close()
	}, eng)
	return s, nil
}

func (s *Session) guard() error {
	if s.ended {
		return ErrSessionClosed
	}
	return nil
}

// MaxCompressedLength bounds the compressed size of n source bytes,
// including all framing overhead. Destinations sized by it never fail
// with a buffer error.
func (s *Session) MaxCompressedLength(n int) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative source length %d", n)
	}
	return s.eng.MaxCompressedLength(n), nil
}

// Compress compresses all of src into dst and returns the number of
// bytes written.
func (s *Session) Compress(dst, src []byte) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if len(src) == 0 || len(dst) == 0 {
		return 0, ErrEmptyRange
	}
	return s.compressRange(dst, src)
}

// Decompress decompresses src into dst and returns the number of bytes
// written. A trailing incomplete unit in src is left unconsumed;
// BytesRead reports how much actually was.
func (s *Session) Decompress(dst, src []byte) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if len(src) == 0 || len(dst) == 0 {
		return 0, ErrEmptyRange
	}
	_, written, err := s.decompressRange(dst, src)
	return written, err
}

// BytesRead reports the source bytes consumed by the last successful
// compress or decompress call on this session.
func (s *Session) BytesRead() int {
	return s.bytesRead
}

// BytesWritten reports the bytes produced by the last successful
// compress or decompress call on this session.
func (s *Session) BytesWritten() int {
	return s.bytesWritten
}

// End tears down the engine. The session is unusable afterwards; a second
// End fails with ErrSessionClosed.
func (s *Session) End() error {
	if err := s.guard(); err != nil {
		return err
	}
	s.ended = true
	s.cleanup.Stop()
	if err := s.eng.Close(); err != nil {
		return fmt.Errorf("engine teardown: %w", err)
	}
	return nil
}

// --- Internal call paths shared by slice, Buffer, and stream entry points ---

func (s *Session) compressRange(dst, src []byte) (int, error) {
	var written int
	err := s.withRetry(func() error {
		var err error
		written, err = s.eng.Compress(dst, src)
		return err
	})
	if err != nil {
		s.bytesRead, s.bytesWritten = 0, 0
		return 0, fmt.Errorf("compress: %w", err)
	}
	s.bytesRead, s.bytesWritten = len(src), written
	return written, nil
}

func (s *Session) decompressRange(dst, src []byte) (int, int, error) {
	read, written, err := s.decompressStream(dst, src)
	if err != nil {
		s.bytesRead, s.bytesWritten = 0, 0
		return 0, 0, fmt.Errorf("decompress: %w", err)
	}
	if read == 0 && written == 0 {
		// src holds no complete unit: truncated or foreign bytes.
		s.bytesRead, s.bytesWritten = 0, 0
		return 0, 0, fmt.Errorf("decompress: %w",
			&engine.Error{Op: "decompress", Status: engine.StatusDataError, Err: ErrIncompleteSource})
	}
	s.bytesRead, s.bytesWritten = read, written
	return read, written, nil
}

// decompressStream is the raw engine call: no progress translation, so
// the stream reader can distinguish "need more input" from "grow the
// output buffer".
func (s *Session) decompressStream(dst, src []byte) (int, int, error) {
	var read, written int
	err := s.withRetry(func() error {
		var err error
		read, written, err = s.eng.Decompress(dst, src)
		return err
	})
	return read, written, err
}

// withRetry re-issues calls that failed with the transient
// instance-attach status, up to RetryCount extra attempts. Slice inputs
// are re-derived on every attempt, so a failed attempt cannot skew the
// lengths the next one sees.
func (s *Session) withRetry(fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var ee *engine.Error
		if !errors.As(err, &ee) || !ee.Status.Transient() || attempt >= s.RetryCount {
			return err
		}
	}
}
