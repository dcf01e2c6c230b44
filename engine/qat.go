//go:build qat

package engine

/*
#cgo LDFLAGS: -lqatzip
#include <stdlib.h>
#include <qatzip.h>

// Session setup is kept in C so the param structs never cross the cgo
// boundary. sw_backup enables the accelerator library's own failover.
static int qzip_setup_deflate(QzSession_T *sess, int level, int data_fmt,
                              int block_size, int sw_backup) {
	QzSessionParamsDeflate_T params;
	int rc = qzGetDefaultsDeflate(&params);
	if (rc != QZ_OK) {
		return rc;
	}
	params.common_params.comp_lvl = level;
	params.common_params.sw_backup = sw_backup;
	params.common_params.hw_buff_sz = block_size;
	params.data_fmt = data_fmt;
	return qzSetupSessionDeflate(sess, &params);
}

static int qzip_setup_lz4(QzSession_T *sess, int level, int block_size,
                          int sw_backup) {
	QzSessionParamsLZ4_T params;
	int rc = qzGetDefaultsLZ4(&params);
	if (rc != QZ_OK) {
		return rc;
	}
	params.common_params.comp_lvl = level;
	params.common_params.sw_backup = sw_backup;
	params.common_params.hw_buff_sz = block_size;
	return qzSetupSessionLZ4(sess, &params);
}
*/
import "C"

import (
	"unsafe"
)

// hardware drives an accelerator session through qatzip. The session
// struct lives in C memory so its address stays stable across calls.
type hardware struct {
	sess   *C.QzSession_T
	closed bool
}

func newHardware(p Params) (Engine, error) {
	if p.Algorithm == Zstd {
		// zstd offload goes through the separate sequence-producer
		// plugin, not qatzip sessions.
		return nil, &Error{Op: "setup", Status: StatusUnsupportedFormat}
	}

	sess := (*C.QzSession_T)(C.calloc(1, C.sizeof_QzSession_T))
	if sess == nil {
		return nil, &Error{Op: "setup", Status: StatusNoSWLowMemory}
	}

	swBackup := C.int(0)
	if p.Mode == ModeAuto {
		swBackup = 1
	}
	if rc := C.qzInit(sess, C.uchar(swBackup)); rc != C.QZ_OK && rc != C.QZ_DUPLICATE {
		C.free(unsafe.Pointer(sess))
		return nil, &Error{Op: "setup", Status: Status(rc)}
	}

	var rc C.int
	switch p.Algorithm {
	case Deflate:
		rc = C.qzip_setup_deflate(sess, C.int(p.Level), C.int(p.Format),
			C.int(p.BlockSize), swBackup)
	case LZ4:
		rc = C.qzip_setup_lz4(sess, C.int(p.Level), C.int(p.BlockSize), swBackup)
	}
	if rc != C.QZ_OK {
		C.qzClose(sess)
		C.free(unsafe.Pointer(sess))
		return nil, &Error{Op: "setup", Status: Status(rc)}
	}
	return &hardware{sess: sess}, nil
}

// HardwareAvailable reports whether an accelerator instance can be
// initialized at all.
func HardwareAvailable() bool {
	sess := (*C.QzSession_T)(C.calloc(1, C.sizeof_QzSession_T))
	if sess == nil {
		return false
	}
	defer C.free(unsafe.Pointer(sess))
	rc := C.qzInit(sess, 0)
	if rc == C.QZ_OK || rc == C.QZ_DUPLICATE {
		C.qzClose(sess)
		return true
	}
	return false
}

func (e *hardware) MaxCompressedLength(n int) int {
	if n < 0 {
		return 0
	}
	return int(C.qzMaxCompressedLength(C.uint(n), e.sess))
}

func (e *hardware) Compress(dst, src []byte) (int, error) {
	if e.closed {
		return 0, &Error{Op: "compress", Status: StatusFail}
	}
	srcLen := C.uint(len(src))
	dstLen := C.uint(len(dst))
	rc := C.qzCompress(e.sess,
		(*C.uchar)(unsafe.Pointer(&src[0])), &srcLen,
		(*C.uchar)(unsafe.Pointer(&dst[0])), &dstLen, 1)
	if rc != C.QZ_OK {
		return 0, &Error{Op: "compress", Status: Status(rc)}
	}
	return int(dstLen), nil
}

func (e *hardware) Decompress(dst, src []byte) (int, int, error) {
	if e.closed {
		return 0, 0, &Error{Op: "decompress", Status: StatusFail}
	}
	srcLen := C.uint(len(src))
	dstLen := C.uint(len(dst))
	rc := C.qzDecompress(e.sess,
		(*C.uchar)(unsafe.Pointer(&src[0])), &srcLen,
		(*C.uchar)(unsafe.Pointer(&dst[0])), &dstLen)
	switch rc {
	case C.QZ_OK:
		return int(srcLen), int(dstLen), nil
	case C.QZ_BUF_ERROR:
		// Destination filled before the source ran out. Partial progress
		// follows the same contract as the software engine.
		if dstLen > 0 {
			return int(srcLen), int(dstLen), nil
		}
		return 0, 0, &Error{Op: "decompress", Status: StatusBufferError}
	default:
		return 0, 0, &Error{Op: "decompress", Status: Status(rc)}
	}
}

func (e *hardware) Close() error {
	if e.closed {
		return &Error{Op: "teardown", Status: StatusFail}
	}
	e.closed = true
	rc := C.qzTeardownSession(e.sess)
	C.qzClose(e.sess)
	C.free(unsafe.Pointer(e.sess))
	e.sess = nil
	if rc != C.QZ_OK {
		return &Error{Op: "teardown", Status: Status(rc)}
	}
	return nil
}
