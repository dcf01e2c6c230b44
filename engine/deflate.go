package engine

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// gzipExtLen is the extension subfield carried in gzip_ext members:
// 'Q'(1) + 'Z'(1) + Len(2) + CompressedLen(4) + UncompressedLen(4)
const gzipExtLen = 12

// deflateCodec handles the deflate family in all four framings. Writers
// and readers are reused across units via Reset.
type deflateCodec struct {
	level  int
	format DataFormat

	fw *flate.Writer
	gw *gzip.Writer
	fr io.ReadCloser // flate.Resetter underneath
	gr *gzip.Reader
}

func newDeflateCodec(level int, format DataFormat) (payloadCodec, error) {
	fw, err := flate.NewWriter(nil, level)
	if err != nil {
		return nil, &Error{Op: "setup", Status: StatusParams, Err: err}
	}
	c := &deflateCodec{level: level, format: format, fw: fw}
	if format == FormatGzip || format == FormatGzipExt {
		gw, err := gzip.NewWriterLevel(io.Discard, level)
		if err != nil {
			return nil, &Error{Op: "setup", Status: StatusParams, Err: err}
		}
		c.gw = gw
	}
	return c, nil
}

func (c *deflateCodec) encodeAppend(dst, block []byte) ([]byte, error) {
	switch c.format {
	case FormatGzip, FormatGzipExt:
		return c.encodeGzip(dst, block)
	case FormatDeflate4B:
		return c.encodeDeflate4B(dst, block)
	default:
		return c.encodeRaw(dst, block)
	}
}

func (c *deflateCodec) encodeRaw(dst, block []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	c.fw.Reset(buf)
	if _, err := c.fw.Write(block); err != nil {
		return nil, &Error{Op: "compress", Status: StatusFail, Err: err}
	}
	if err := c.fw.Close(); err != nil {
		return nil, &Error{Op: "compress", Status: StatusFail, Err: err}
	}
	return buf.Bytes(), nil
}

// encodeDeflate4B prefixes each deflate chunk with its 4-byte length.
func (c *deflateCodec) encodeDeflate4B(dst, block []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	out, err := c.encodeRaw(dst, block)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(out[start:start+4], uint32(len(out)-start-4))
	return out, nil
}

func (c *deflateCodec) encodeGzip(dst, block []byte) ([]byte, error) {
	start := len(dst)
	buf := bytes.NewBuffer(dst)
	c.gw.Reset(buf)
	if c.format == FormatGzipExt {
		// Sizes land at fixed offsets inside the member header; the
		// compressed length is patched in after Close.
		ext := make([]byte, gzipExtLen)
		ext[0], ext[1] = 'Q', 'Z'
		binary.LittleEndian.PutUint16(ext[2:4], 8)
		binary.LittleEndian.PutUint32(ext[8:12], uint32(len(block)))
		c.gw.Extra = ext
	}
	if _, err := c.gw.Write(block); err != nil {
		return nil, &Error{Op: "compress", Status: StatusFail, Err: err}
	}
	if err := c.gw.Close(); err != nil {
		return nil, &Error{Op: "compress", Status: StatusFail, Err: err}
	}
	out := buf.Bytes()
	if c.format == FormatGzipExt {
		// Member layout: header(10) + xlen(2) + subfield id+len(4), then
		// the two size words, deflate data, crc+isize trailer(8).
		deflateLen := len(out) - start - 10 - 2 - gzipExtLen - 8
		binary.LittleEndian.PutUint32(out[start+16:start+20], uint32(deflateLen))
	}
	return out, nil
}

func (c *deflateCodec) decode(dst, payload []byte) error {
	switch c.format {
	case FormatGzip, FormatGzipExt:
		return c.decodeGzip(dst, payload)
	case FormatDeflate4B:
		if len(payload) < 4 {
			return &Error{Op: "decompress", Status: StatusDataError}
		}
		if int(binary.LittleEndian.Uint32(payload[0:4])) != len(payload)-4 {
			return &Error{Op: "decompress", Status: StatusDataError}
		}
		return c.inflate(dst, payload[4:])
	default:
		return c.inflate(dst, payload)
	}
}

func (c *deflateCodec) inflate(dst, payload []byte) error {
	br := bytes.NewReader(payload)
	if c.fr == nil {
		c.fr = flate.NewReader(br)
	} else if err := c.fr.(flate.Resetter).Reset(br, nil); err != nil {
		return &Error{Op: "decompress", Status: StatusDataError, Err: err}
	}
	if _, err := io.ReadFull(c.fr, dst); err != nil {
		return &Error{Op: "decompress", Status: StatusDataError, Err: err}
	}
	return expectEOF(c.fr)
}

func (c *deflateCodec) decodeGzip(dst, payload []byte) error {
	br := bytes.NewReader(payload)
	if c.gr == nil {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return &Error{Op: "decompress", Status: StatusDataError, Err: err}
		}
		c.gr = gr
	} else if err := c.gr.Reset(br); err != nil {
		return &Error{Op: "decompress", Status: StatusDataError, Err: err}
	}
	c.gr.Multistream(false)

	if c.format == FormatGzipExt {
		if ext := c.gr.Extra; len(ext) == gzipExtLen && ext[0] == 'Q' && ext[1] == 'Z' {
			if int(binary.LittleEndian.Uint32(ext[8:12])) != len(dst) {
				return &Error{Op: "decompress", Status: StatusDataError}
			}
		}
	}

	if _, err := io.ReadFull(c.gr, dst); err != nil {
		return &Error{Op: "decompress", Status: StatusDataError, Err: err}
	}
	// Reading through EOF forces the crc and length trailer checks.
	return expectEOF(c.gr)
}

// expectEOF verifies the decoder consumed the payload exactly.
func expectEOF(r io.Reader) error {
	var one [1]byte
	if n, err := r.Read(one[:]); n != 0 || err != io.EOF {
		return &Error{Op: "decompress", Status: StatusDataError, Err: err}
	}
	return nil
}

func (c *deflateCodec) close() error {
	c.fw, c.gw, c.fr, c.gr = nil, nil, nil, nil
	return nil
}
