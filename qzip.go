// Package qzip provides accelerator-style compression sessions with
// transparent software failover. A Session owns one engine context for
// deflate, lz4, or zstd data; Buffer views feed it off-heap or wrapped
// memory, and Reader/Writer adapt sessions to io streams.
package qzip

import (
	"github.com/miretskiy/qzip/engine"
)

// Engine-level types surfaced as part of the public API.
type (
	Algorithm  = engine.Algorithm
	Mode       = engine.Mode
	DataFormat = engine.DataFormat
	Status     = engine.Status
)

const (
	Deflate = engine.Deflate
	LZ4     = engine.LZ4
	Zstd    = engine.Zstd

	ModeHardware = engine.ModeHardware
	ModeAuto     = engine.ModeAuto

	FormatDeflate4B  = engine.FormatDeflate4B
	FormatGzip       = engine.FormatGzip
	FormatGzipExt    = engine.FormatGzipExt
	FormatDeflateRaw = engine.FormatDeflateRaw
)

const (
	// DefaultLevel applies to every algorithm.
	DefaultLevel = 6

	// DefaultBlockSize mirrors the accelerator's hardware buffer size:
	// the largest run of input compressed as a single unit.
	DefaultBlockSize = 64 * 1024

	// MaxBlockSize bounds WithBlockSize.
	MaxBlockSize = 2 * 1024 * 1024

	// DefaultBufferSize is the stream accumulation buffer size.
	DefaultBufferSize = 64 * 1024

	// DefaultMaxBufferSize caps Reader output buffer growth.
	DefaultMaxBufferSize = 512 * 1024
)
