package engine

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, p Params) Engine {
	t.Helper()
	if p.BlockSize == 0 {
		p.BlockSize = 64 * 1024
	}
	e, err := newSoftware(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func repetitiveBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte("abcabcab"[i%8])
	}
	return b
}

func TestSoftware_RoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"text":       []byte("The quick brown fox jumps over the lazy dog."),
		"repetitive": repetitiveBytes(10_000),
		"random":     randomBytes(10_000, 1),
		"single":     {0x42},
	}
	params := map[string]Params{
		"deflate": {Algorithm: Deflate, Level: 6, Format: FormatGzipExt},
		"lz4":     {Algorithm: LZ4, Level: 0},
		"lz4_hc":  {Algorithm: LZ4, Level: 9},
		"zstd":    {Algorithm: Zstd, Level: 3},
	}

	for algName, p := range params {
		for inName, data := range inputs {
			t.Run(algName+"/"+inName, func(t *testing.T) {
				e := newTestEngine(t, p)

				compressed := make([]byte, e.MaxCompressedLength(len(data)))
				n, err := e.Compress(compressed, data)
				require.NoError(t, err)
				require.LessOrEqual(t, n, len(compressed))

				out := make([]byte, len(data))
				read, written, err := e.Decompress(out, compressed[:n])
				require.NoError(t, err)
				require.Equal(t, n, read)
				require.Equal(t, len(data), written)
				require.Equal(t, data, out)
			})
		}
	}
}

func TestSoftware_MultiUnit(t *testing.T) {
	data := repetitiveBytes(1000)
	e := newTestEngine(t, Params{Algorithm: Deflate, Level: 6, BlockSize: 64})

	compressed := make([]byte, e.MaxCompressedLength(len(data)))
	n, err := e.Compress(compressed, data)
	require.NoError(t, err)

	// ceil(1000/64) units, each with its own header.
	wantUnits := 16
	units := 0
	for off := 0; off < n; {
		require.Equal(t, uint32(unitMagic), binary.LittleEndian.Uint32(compressed[off:off+4]))
		payloadLen := int(binary.LittleEndian.Uint32(compressed[off+8 : off+12]))
		off += UnitHeaderSize + payloadLen
		units++
	}
	require.Equal(t, wantUnits, units)

	out := make([]byte, len(data))
	read, written, err := e.Decompress(out, compressed[:n])
	require.NoError(t, err)
	require.Equal(t, n, read)
	require.Equal(t, len(data), written)
	require.Equal(t, data, out)
}

func TestSoftware_StoredUnits(t *testing.T) {
	// Incompressible input stores every block verbatim, which makes the
	// worst-case bound exact.
	data := randomBytes(10_000, 2)
	e := newTestEngine(t, Params{Algorithm: Deflate, Level: 6, BlockSize: 1024})

	bound := e.MaxCompressedLength(len(data))
	compressed := make([]byte, bound)
	n, err := e.Compress(compressed, data)
	require.NoError(t, err)
	require.Equal(t, bound, n)

	out := make([]byte, len(data))
	_, written, err := e.Decompress(out, compressed[:n])
	require.NoError(t, err)
	require.Equal(t, len(data), written)
	require.Equal(t, data, out)
}

func TestSoftware_MaxCompressedLength(t *testing.T) {
	e := newTestEngine(t, Params{Algorithm: LZ4, Level: 1, BlockSize: 100})

	require.Equal(t, 0, e.MaxCompressedLength(-1))
	require.Equal(t, UnitHeaderSize, e.MaxCompressedLength(0))
	require.Equal(t, 100+UnitHeaderSize, e.MaxCompressedLength(100))
	require.Equal(t, 101+2*UnitHeaderSize, e.MaxCompressedLength(101))
	require.Equal(t, 1000+10*UnitHeaderSize, e.MaxCompressedLength(1000))
}

func TestSoftware_CompressDestTooSmall(t *testing.T) {
	data := randomBytes(1000, 3)
	e := newTestEngine(t, Params{Algorithm: Zstd, Level: 3})

	_, err := e.Compress(make([]byte, 10), data)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, StatusBufferError, ee.Status)
}

func TestSoftware_DecompressDestTooSmall(t *testing.T) {
	data := repetitiveBytes(500)
	e := newTestEngine(t, Params{Algorithm: Deflate, Level: 6, BlockSize: 100})

	compressed := make([]byte, e.MaxCompressedLength(len(data)))
	n, err := e.Compress(compressed, data)
	require.NoError(t, err)

	// Nothing fits: not even the first 100-byte unit.
	_, _, err = e.Decompress(make([]byte, 50), compressed[:n])
	var ee *Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, StatusBufferError, ee.Status)

	// Two units fit; the engine stops cleanly before the third.
	out := make([]byte, 250)
	read, written, err := e.Decompress(out, compressed[:n])
	require.NoError(t, err)
	require.Equal(t, 200, written)
	require.Less(t, read, n)
	require.Equal(t, data[:200], out[:200])

	// The remainder picks up where the first call stopped.
	rest := make([]byte, 300)
	restRead, restWritten, err := e.Decompress(rest, compressed[read:n])
	require.NoError(t, err)
	require.Equal(t, n-read, restRead)
	require.Equal(t, 300, restWritten)
	require.Equal(t, data[200:], rest)
}

func TestSoftware_PartialTail(t *testing.T) {
	data := repetitiveBytes(200)
	e := newTestEngine(t, Params{Algorithm: LZ4, Level: 1, BlockSize: 100})

	compressed := make([]byte, e.MaxCompressedLength(len(data)))
	n, err := e.Compress(compressed, data)
	require.NoError(t, err)

	// A bare header prefix holds no complete unit.
	read, written, err := e.Decompress(make([]byte, 500), compressed[:UnitHeaderSize-1])
	require.NoError(t, err)
	require.Zero(t, read)
	require.Zero(t, written)

	// Truncating the second unit leaves exactly the first one decodable.
	read, written, err = e.Decompress(make([]byte, 500), compressed[:n-3])
	require.NoError(t, err)
	require.Equal(t, 100, written)
	require.Less(t, read, n-3)
}

func TestSoftware_CorruptMagic(t *testing.T) {
	e := newTestEngine(t, Params{Algorithm: Deflate, Level: 6})

	compressed := make([]byte, e.MaxCompressedLength(10))
	n, err := e.Compress(compressed, []byte("0123456789"))
	require.NoError(t, err)

	compressed[0] ^= 0xFF
	_, _, err = e.Decompress(make([]byte, 10), compressed[:n])
	var ee *Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, StatusDataError, ee.Status)
}

func TestSoftware_CorruptChecksum(t *testing.T) {
	e := newTestEngine(t, Params{Algorithm: Zstd, Level: 3})

	data := repetitiveBytes(300)
	compressed := make([]byte, e.MaxCompressedLength(len(data)))
	n, err := e.Compress(compressed, data)
	require.NoError(t, err)

	compressed[UnitHeaderSize] ^= 0xFF // first payload byte
	_, _, err = e.Decompress(make([]byte, len(data)), compressed[:n])
	var ee *Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, StatusDataError, ee.Status)
}

func TestSoftware_CorruptLengths(t *testing.T) {
	e := newTestEngine(t, Params{Algorithm: LZ4, Level: 1})

	// PayloadLen larger than UncompressedLen never leaves a compressor.
	unit := make([]byte, UnitHeaderSize+8)
	binary.LittleEndian.PutUint32(unit[0:4], unitMagic)
	binary.LittleEndian.PutUint32(unit[4:8], 4)
	binary.LittleEndian.PutUint32(unit[8:12], 8)
	binary.LittleEndian.PutUint64(unit[12:20], xxhash.Sum64(unit[20:]))

	_, _, err := e.Decompress(make([]byte, 100), unit)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, StatusDataError, ee.Status)
}

func TestSoftware_EmptyUnitAdvances(t *testing.T) {
	e := newTestEngine(t, Params{Algorithm: Deflate, Level: 6})

	unit := make([]byte, UnitHeaderSize)
	binary.LittleEndian.PutUint32(unit[0:4], unitMagic)
	binary.LittleEndian.PutUint64(unit[12:20], xxhash.Sum64(nil))

	read, written, err := e.Decompress(make([]byte, 10), unit)
	require.NoError(t, err)
	require.Equal(t, UnitHeaderSize, read)
	require.Zero(t, written)
}

func TestSoftware_DeflateFormats(t *testing.T) {
	data := repetitiveBytes(5000)
	for _, format := range []DataFormat{FormatDeflate4B, FormatGzip, FormatGzipExt, FormatDeflateRaw} {
		t.Run(format.String(), func(t *testing.T) {
			e := newTestEngine(t, Params{Algorithm: Deflate, Level: 6, Format: format})

			compressed := make([]byte, e.MaxCompressedLength(len(data)))
			n, err := e.Compress(compressed, data)
			require.NoError(t, err)

			out := make([]byte, len(data))
			read, written, err := e.Decompress(out, compressed[:n])
			require.NoError(t, err)
			require.Equal(t, n, read)
			require.Equal(t, len(data), written)
			require.Equal(t, data, out)
		})
	}
}

func TestSoftware_FormatsDiffer(t *testing.T) {
	data := repetitiveBytes(5000)
	sizes := map[DataFormat]int{}
	for _, format := range []DataFormat{FormatDeflateRaw, FormatGzip} {
		e := newTestEngine(t, Params{Algorithm: Deflate, Level: 6, Format: format})
		compressed := make([]byte, e.MaxCompressedLength(len(data)))
		n, err := e.Compress(compressed, data)
		require.NoError(t, err)
		sizes[format] = n
	}
	// A gzip member wraps the same deflate stream in header and trailer.
	require.Greater(t, sizes[FormatGzip], sizes[FormatDeflateRaw])
}

func TestSoftware_CloseTwice(t *testing.T) {
	e, err := newSoftware(Params{Algorithm: LZ4, Level: 1, BlockSize: 1024})
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.Error(t, e.Close())

	_, err = e.Compress(make([]byte, 10), []byte("x"))
	require.Error(t, err)
}

func TestNew_HardwareUnavailable(t *testing.T) {
	if HardwareAvailable() {
		t.Skip("accelerator present")
	}
	_, err := New(Params{Algorithm: Deflate, Level: 6, Mode: ModeHardware, BlockSize: 1024})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	require.Equal(t, StatusNoSWNoHardware, ee.Status)

	e, err := New(Params{Algorithm: Deflate, Level: 6, Mode: ModeAuto, BlockSize: 1024})
	require.NoError(t, err)
	require.NoError(t, e.Close())
}

func TestStatus_Strings(t *testing.T) {
	require.Equal(t, "QZ_OK", StatusOK.String())
	require.Equal(t, "QZ_BUF_ERROR", StatusBufferError.String())
	require.Equal(t, "QZ_DATA_ERROR", StatusDataError.String())
	require.Equal(t, "QZ_NOSW_NO_INST_ATTACH", StatusNoSWNoInstAttach.String())
	require.Equal(t, "QZ_STATUS(-42)", Status(-42).String())

	require.True(t, StatusNoSWNoInstAttach.Transient())
	require.False(t, StatusDataError.Transient())
	require.False(t, StatusOK.Transient())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("short read")
	err := &Error{Op: "decompress", Status: StatusDataError, Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "QZ_DATA_ERROR")
	require.Contains(t, err.Error(), "short read")
}
