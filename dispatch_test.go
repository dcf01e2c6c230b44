package qzip

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// mkBuffer allocates one buffer of the named kind, closing direct
// storage when the test ends.
func mkBuffer(t *testing.T, kind string, capacity int) *Buffer {
	t.Helper()
	switch kind {
	case "direct":
		b, err := NewDirectBuffer(capacity)
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	case "wrapped":
		return WrapBuffer(make([]byte, capacity))
	default:
		return NewBuffer(capacity)
	}
}

func TestSession_BufferRoundTripKinds(t *testing.T) {
	inputs := map[string][]byte{
		"single": {0x42}, // smallest non-empty input
		"bulk":   repetitiveBytes(5000),
	}
	kinds := []string{"heap", "direct", "wrapped"}

	for _, srcKind := range kinds {
		for _, dstKind := range kinds {
			for inName, data := range inputs {
				t.Run(srcKind+"_to_"+dstKind+"/"+inName, func(t *testing.T) {
					s := newTestSession(t)
					bound, err := s.MaxCompressedLength(len(data))
					require.NoError(t, err)

					src := mkBuffer(t, srcKind, len(data))
					_, err = src.Write(data)
					require.NoError(t, err)
					src.Flip()

					dst := mkBuffer(t, dstKind, bound)
					n, err := s.CompressBuffer(dst, src)
					require.NoError(t, err)
					require.Equal(t, n, dst.Position())

					// Decompress through buffers of the swapped kinds.
					dst.Flip()
					plain := mkBuffer(t, srcKind, len(data))
					written, err := s.DecompressBuffer(plain, dst)
					require.NoError(t, err)
					require.Equal(t, len(data), written)

					plain.Flip()
					got := make([]byte, written)
					_, err = plain.Read(got)
					require.NoError(t, err)
					require.Equal(t, data, got)
				})
			}
		}
	}
}

func TestSession_BufferCursorRules(t *testing.T) {
	data := repetitiveBytes(2000)
	s := newTestSession(t)
	bound, err := s.MaxCompressedLength(len(data))
	require.NoError(t, err)

	t.Run("heap source stays put", func(t *testing.T) {
		src := mkBuffer(t, "heap", len(data))
		_, err := src.Write(data)
		require.NoError(t, err)
		src.Flip()

		dst := mkBuffer(t, "heap", bound)
		n, err := s.CompressBuffer(dst, src)
		require.NoError(t, err)

		// Callers reposition heap sources themselves via BytesRead.
		require.Equal(t, 0, src.Position())
		require.Equal(t, len(data), s.BytesRead())
		require.Equal(t, n, dst.Position())
	})

	t.Run("direct source advances", func(t *testing.T) {
		src := mkBuffer(t, "direct", len(data))
		_, err := src.Write(data)
		require.NoError(t, err)
		src.Flip()

		dst := mkBuffer(t, "direct", bound)
		n, err := s.CompressBuffer(dst, src)
		require.NoError(t, err)

		require.Equal(t, len(data), src.Position())
		require.Equal(t, 0, src.Remaining())
		require.Equal(t, n, dst.Position())
	})

	t.Run("mixed direct source heap destination", func(t *testing.T) {
		src := mkBuffer(t, "direct", len(data))
		_, err := src.Write(data)
		require.NoError(t, err)
		src.Flip()

		dst := mkBuffer(t, "heap", bound)
		n, err := s.CompressBuffer(dst, src)
		require.NoError(t, err)

		require.Equal(t, len(data), src.Position())
		require.Equal(t, n, dst.Position())
	})
}

func TestSession_DecompressBufferPartialConsume(t *testing.T) {
	data := repetitiveBytes(300)
	s := newTestSession(t, WithBlockSize(100))

	compressed := make([]byte, 1024)
	n, err := s.Compress(compressed, data)
	require.NoError(t, err)

	// A direct source window cut inside the last unit: the cursor lands
	// exactly after the final complete unit.
	src := mkBuffer(t, "direct", n)
	_, err = src.Write(compressed[:n])
	require.NoError(t, err)
	src.Flip()
	require.NoError(t, src.SetLimit(n - 5))

	dst := mkBuffer(t, "heap", len(data))
	written, err := s.DecompressBuffer(dst, src)
	require.NoError(t, err)
	require.Equal(t, 200, written)
	require.Equal(t, s.BytesRead(), src.Position())
	require.Less(t, src.Position(), n-5)
}

func TestSession_ReadOnlySourceBuffer(t *testing.T) {
	data := repetitiveBytes(1000)
	s := newTestSession(t)
	bound, err := s.MaxCompressedLength(len(data))
	require.NoError(t, err)

	owner := NewBuffer(len(data))
	_, err = owner.Write(data)
	require.NoError(t, err)
	owner.Flip()

	// The engine sees a staged copy; the view's cursor still advances,
	// the owner's does not.
	view := owner.AsReadOnly()
	dst := NewBuffer(bound)
	n, err := s.CompressBuffer(dst, view)
	require.NoError(t, err)
	require.Equal(t, len(data), view.Position())
	require.Equal(t, 0, owner.Position())

	dst.Flip()
	require.Equal(t, n, dst.Limit())
	out := make([]byte, len(data))
	written, err := s.Decompress(out, dst.window())
	require.NoError(t, err)
	require.Equal(t, len(data), written)
	require.Equal(t, data, out)
}

func TestSession_ReadOnlyDestinationRejected(t *testing.T) {
	s := newTestSession(t)

	src := NewBuffer(10)
	_, err := src.Write([]byte("abc"))
	require.NoError(t, err)
	src.Flip()

	_, err = s.CompressBuffer(NewBuffer(10).AsReadOnly(), src)
	require.ErrorIs(t, err, ErrReadOnlyBuffer)
}

func TestSession_BufferArgErrors(t *testing.T) {
	s := newTestSession(t)

	filled := NewBuffer(10)
	_, err := filled.Write([]byte("abc"))
	require.NoError(t, err)
	filled.Flip()

	_, err = s.CompressBuffer(nil, filled)
	require.ErrorIs(t, err, ErrNilBuffer)
	_, err = s.CompressBuffer(NewBuffer(10), nil)
	require.ErrorIs(t, err, ErrNilBuffer)

	// Empty windows on either side.
	empty := NewBuffer(10)
	empty.Flip()
	_, err = s.CompressBuffer(NewBuffer(10), empty)
	require.ErrorIs(t, err, ErrEmptyRange)
	_, err = s.DecompressBuffer(empty, filled)
	require.ErrorIs(t, err, ErrEmptyRange)
}

func TestSession_BufferWindowOffsets(t *testing.T) {
	data := []byte("window slice under test")
	s := newTestSession(t)
	bound, err := s.MaxCompressedLength(len(data))
	require.NoError(t, err)

	// Sentinel-filled backing; only the window may change.
	backing := bytes.Repeat([]byte{0xEE}, bound+64)
	dst := WrapBuffer(backing)
	require.NoError(t, dst.SetPosition(32))

	src := WrapBuffer(data)
	n, err := s.CompressBuffer(dst, src)
	require.NoError(t, err)
	require.Equal(t, 32+n, dst.Position())

	for i, b := range backing[:32] {
		require.Equal(t, byte(0xEE), b, "prefix byte %d", i)
	}
	for i, b := range backing[32+n:] {
		require.Equal(t, byte(0xEE), b, "suffix byte %d", i)
	}

	// Decompress into an offset window of another sentinel backing.
	outBacking := bytes.Repeat([]byte{0xAA}, len(data)+16)
	out := WrapBuffer(outBacking)
	require.NoError(t, out.SetPosition(8))
	require.NoError(t, out.SetLimit(8+len(data)))

	compressed := WrapBuffer(backing[32 : 32+n])
	written, err := s.DecompressBuffer(out, compressed)
	require.NoError(t, err)
	require.Equal(t, len(data), written)
	require.Equal(t, data, outBacking[8:8+len(data)])
	for i, b := range outBacking[:8] {
		require.Equal(t, byte(0xAA), b, "prefix byte %d", i)
	}
	for i, b := range outBacking[8+len(data):] {
		require.Equal(t, byte(0xAA), b, "suffix byte %d", i)
	}
}
