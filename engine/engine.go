// Package engine provides the compression engine behind qzip sessions: a
// software implementation built on klauspost/compress and pierrec/lz4, and
// an optional QAT hardware binding selected with the `qat` build tag.
package engine

import (
	"fmt"
)

type Algorithm uint8

const (
	Deflate Algorithm = iota
	LZ4
	Zstd
)

func (a Algorithm) String() string {
	switch a {
	case Deflate:
		return "deflate"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// Mode selects hardware-only execution or software failover.
type Mode uint8

const (
	ModeHardware Mode = iota
	ModeAuto
)

func (m Mode) String() string {
	switch m {
	case ModeHardware:
		return "hardware"
	case ModeAuto:
		return "auto"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// DataFormat selects the framing of deflate output. LZ4 and Zstd carry
// their own framing and ignore it.
type DataFormat uint8

const (
	FormatDeflate4B DataFormat = iota // length-prefixed deflate blocks
	FormatGzip                        // standard gzip members
	FormatGzipExt                     // gzip members with size extension field
	FormatDeflateRaw                  // bare deflate bit-stream
)

func (f DataFormat) String() string {
	switch f {
	case FormatDeflate4B:
		return "deflate_4b"
	case FormatGzip:
		return "gzip"
	case FormatGzipExt:
		return "gzip_ext"
	case FormatDeflateRaw:
		return "deflate_raw"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Params describes the session an engine is created for.
type Params struct {
	Algorithm Algorithm
	Level     int
	Mode      Mode
	Format    DataFormat
	BlockSize int // largest run of input handled as one unit
}

// Engine is one compression/decompression context. Engines hold scratch
// state and are not safe for concurrent use; qzip serializes access
// through the owning session.
type Engine interface {
	// MaxCompressedLength bounds the compressed size of n input bytes,
	// including all framing overhead.
	MaxCompressedLength(n int) int

	// Compress compresses all of src into dst and returns the number of
	// bytes written. Fails with StatusBufferError if dst cannot hold the
	// complete output.
	Compress(dst, src []byte) (int, error)

	// Decompress decompresses complete units from src into dst. It stops
	// early when the next unit's output does not fit in dst, or when src
	// ends with a partial unit, and reports bytes consumed and produced.
	// (0, 0, nil) means src holds no complete unit; StatusBufferError
	// means dst cannot hold even the first unit's output.
	Decompress(dst, src []byte) (read, written int, err error)

	// Close releases engine resources. The engine is unusable afterwards.
	Close() error
}

// Status is an engine status code. Values match the accelerator library's
// numeric space so hardware and software engines report identically.
type Status int

const (
	StatusOK          Status = 0
	StatusDuplicate   Status = 1
	StatusForceSW     Status = 2
	StatusParams      Status = -1
	StatusFail        Status = -2
	StatusBufferError Status = -3
	StatusDataError   Status = -4
	StatusTimeout     Status = -5

	// Initialization diagnostics: positive codes mean software failover
	// happened, negative codes mean no failover was possible.
	StatusNoHardware        Status = 11
	StatusNoMemDriver       Status = 12
	StatusNoInstAttach      Status = 13
	StatusLowMemory         Status = 14
	StatusLowDestMemory     Status = 15
	StatusUnsupportedFormat Status = 16

	StatusNoSWNoHardware    Status = -101
	StatusNoSWNoMemDriver   Status = -102
	StatusNoSWNoInstAttach  Status = -103
	StatusNoSWLowMemory     Status = -104
	StatusNoSWAvailable     Status = -105
	StatusPostProcessError  Status = -106
	StatusMetadataOverflow  Status = -107
	StatusOutOfRange        Status = -108
	StatusNotSupported      Status = -200
)

var statusNames = map[Status]string{
	StatusOK:                "QZ_OK",
	StatusDuplicate:         "QZ_DUPLICATE",
	StatusForceSW:           "QZ_FORCE_SW",
	StatusParams:            "QZ_PARAMS",
	StatusFail:              "QZ_FAIL",
	StatusBufferError:       "QZ_BUF_ERROR",
	StatusDataError:         "QZ_DATA_ERROR",
	StatusTimeout:           "QZ_TIMEOUT",
	StatusNoHardware:        "QZ_NO_HW",
	StatusNoMemDriver:       "QZ_NO_MDRV",
	StatusNoInstAttach:      "QZ_NO_INST_ATTACH",
	StatusLowMemory:         "QZ_LOW_MEM",
	StatusLowDestMemory:     "QZ_LOW_DEST_MEM",
	StatusUnsupportedFormat: "QZ_UNSUPPORTED_FMT",
	StatusNoSWNoHardware:    "QZ_NOSW_NO_HW",
	StatusNoSWNoMemDriver:   "QZ_NOSW_NO_MDRV",
	StatusNoSWNoInstAttach:  "QZ_NOSW_NO_INST_ATTACH",
	StatusNoSWLowMemory:     "QZ_NOSW_LOW_MEM",
	StatusNoSWAvailable:     "QZ_NO_SW_AVAIL",
	StatusPostProcessError:  "QZ_POST_PROCESS_ERROR",
	StatusMetadataOverflow:  "QZ_METADATA_OVERFLOW",
	StatusOutOfRange:        "QZ_OUT_OF_RANGE",
	StatusNotSupported:      "QZ_NOT_SUPPORTED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("QZ_STATUS(%d)", int(s))
}

// Transient reports whether a failed call may succeed if simply retried.
// Only the instance-attach failure qualifies: accelerator instances are a
// shared finite resource and one can free up between attempts.
func (s Status) Transient() bool {
	return s == StatusNoSWNoInstAttach
}

// Error is a failed engine call. Err carries the underlying codec error
// when there is one.
type Error struct {
	Op     string
	Status Status
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine %s failed: %s: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("engine %s failed: %s", e.Op, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an engine for the given params. ModeHardware requires the
// accelerator and fails with an engine Error when it is unavailable;
// ModeAuto falls back to the software engine.
func New(p Params) (Engine, error) {
	switch p.Mode {
	case ModeHardware:
		return newHardware(p)
	case ModeAuto:
		if HardwareAvailable() {
			if e, err := newHardware(p); err == nil {
				return e, nil
			}
		}
		return newSoftware(p)
	default:
		return nil, &Error{Op: "setup", Status: StatusParams}
	}
}
