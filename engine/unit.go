package engine

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	// unitMagic marks the start of every compressed unit
	unitMagic = 0x515A4955 // "QZIU"

	// UnitHeaderSize is Magic(4) + UncompressedLen(4) + PayloadLen(4) + Checksum(8)
	UnitHeaderSize = 20
)

// unitHeader describes one framed unit. A payload the same length as the
// uncompressed data is stored verbatim rather than encoded; PayloadLen ==
// UncompressedLen is the marker for that.
type unitHeader struct {
	UncompressedLen int
	PayloadLen      int
	Checksum        uint64 // xxhash64 of the payload
}

func (h unitHeader) stored() bool {
	return h.PayloadLen == h.UncompressedLen
}

// putUnitHeader writes the fixed header into buf, which must have at least
// UnitHeaderSize bytes. Layout: Magic(4) + UncompressedLen(4) +
// PayloadLen(4) + Checksum(8), little-endian.
func putUnitHeader(buf []byte, h unitHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], unitMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.UncompressedLen))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.PayloadLen))
	binary.LittleEndian.PutUint64(buf[12:20], h.Checksum)
}

// decodeUnitHeader decodes and validates a unit header. The caller checks
// that buf holds at least UnitHeaderSize bytes.
func decodeUnitHeader(buf []byte) (unitHeader, error) {
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != unitMagic {
		return unitHeader{}, &Error{Op: "decompress", Status: StatusDataError}
	}

	h := unitHeader{
		UncompressedLen: int(binary.LittleEndian.Uint32(buf[4:8])),
		PayloadLen:      int(binary.LittleEndian.Uint32(buf[8:12])),
		Checksum:        binary.LittleEndian.Uint64(buf[12:20]),
	}

	// A compressed payload is never larger than the data it encodes:
	// oversized payloads are stored verbatim instead. Anything else is
	// corruption.
	if h.PayloadLen > h.UncompressedLen {
		return unitHeader{}, &Error{Op: "decompress", Status: StatusDataError}
	}
	if h.PayloadLen == 0 && h.UncompressedLen != 0 {
		return unitHeader{}, &Error{Op: "decompress", Status: StatusDataError}
	}
	return h, nil
}

// verifyUnitPayload checks the payload against the header checksum.
func verifyUnitPayload(h unitHeader, payload []byte) error {
	if xxhash.Sum64(payload) != h.Checksum {
		return &Error{Op: "decompress", Status: StatusDataError}
	}
	return nil
}
