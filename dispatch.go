package qzip

// engineCall runs one resolved operation over destination and source
// windows and reports (consumed, produced).
type engineCall func(dstw, srcw []byte) (read, written int, err error)

// CompressBuffer compresses the source window into the destination
// window and returns the bytes produced. Cursor advancement follows the
// dispatch rules below.
func (s *Session) CompressBuffer(dst, src *Buffer) (int, error) {
	return s.dispatchBuffers(dst, src, func(dstw, srcw []byte) (int, int, error) {
		written, err := s.compressRange(dstw, srcw)
		if err != nil {
			return 0, 0, err
		}
		return len(srcw), written, nil
	})
}

// DecompressBuffer decompresses the source window into the destination
// window and returns the bytes produced. A trailing incomplete unit in
// the source window is left unconsumed.
func (s *Session) DecompressBuffer(dst, src *Buffer) (int, error) {
	return s.dispatchBuffers(dst, src, s.decompressRange)
}

// dispatchBuffers picks the cheapest marshaling path for a buffer pair.
// Cursor rules: direct views advance by exactly what the engine consumed
// or produced; a heap destination advances by bytes produced; a heap
// source stays in place (callers reposition explicitly for partial
// reads). Read-only views always advance by bytes consumed since they
// are private cursors over shared backing.
func (s *Session) dispatchBuffers(dst, src *Buffer, call engineCall) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if dst == nil || src == nil {
		return 0, ErrNilBuffer
	}
	if dst.ro {
		return 0, ErrReadOnlyBuffer
	}
	if src.Remaining() == 0 || dst.Remaining() == 0 {
		return 0, ErrEmptyRange
	}

	switch {
	case src.ro:
		// Opaque source: the engine gets a pooled copy of the window.
		return s.dispatchStaged(dst, src, call)

	case src.direct && dst.direct:
		// Both windows live in stable off-heap memory; the engine works
		// in place and both cursors track it.
		read, written, err := call(dst.window(), src.window())
		if err != nil {
			return 0, err
		}
		src.pos += read
		dst.pos += written
		return written, nil

	default:
		// At least one side on the Go heap. The runtime pins call
		// arguments for the duration of an engine call, so windows are
		// still handed over untouched.
		read, written, err := call(dst.window(), src.window())
		if err != nil {
			return 0, err
		}
		if src.direct {
			src.pos += read
		}
		dst.pos += written
		return written, nil
	}
}

func (s *Session) dispatchStaged(dst, src *Buffer, call engineCall) (int, error) {
	srcw := src.window()
	staged := s.bufferPool.Get(len(srcw))
	defer s.bufferPool.Put(staged)
	copy(staged, srcw)

	read, written, err := call(dst.window(), staged)
	if err != nil {
		return 0, err
	}
	src.pos += read
	dst.pos += written
	return written, nil
}
