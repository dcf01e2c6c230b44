package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ncw/directio"

	"github.com/miretskiy/qzip"
)

func main() {
	algName := flag.String("alg", "deflate", "Algorithm: deflate, lz4, zstd")
	level := flag.Int("level", qzip.DefaultLevel, "Compression level")
	blockSize := flag.Int("block", qzip.DefaultBlockSize, "Block size in bytes")
	modeName := flag.String("mode", "auto", "Engine mode: auto, hardware")
	direct := flag.Bool("direct", false, "Read the input file with O_DIRECT")
	decompress := flag.Bool("d", false, "Decompress instead of compress")
	outPath := flag.String("o", "", "Output file (default: discard)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: qzip-bench [flags] <file>")
		flag.Usage()
		os.Exit(1)
	}

	alg, err := parseAlgorithm(*algName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	mode, err := parseMode(*modeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	data, err := readInput(flag.Arg(0), *direct)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	sink, sinkName, err := openSink(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := []qzip.Option{
		qzip.WithAlgorithm(alg),
		qzip.WithLevel(*level),
		qzip.WithMode(mode),
		qzip.WithBlockSize(*blockSize),
		qzip.WithBufferSize(*blockSize),
	}

	start := time.Now()
	var produced int64
	if *decompress {
		produced, err = runDecompress(sink, data, opts)
	} else {
		produced, err = runCompress(sink, data, opts)
	}
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verb := "compressed"
	if *decompress {
		verb = "decompressed"
	}
	mbps := float64(len(data)) / (1 << 20) / elapsed.Seconds()
	fmt.Printf("%s %d bytes -> %d bytes (%.3fx) to %s\n",
		verb, len(data), produced, float64(produced)/float64(len(data)), sinkName)
	fmt.Printf("%s level %d, block %d: %v, %.1f MB/s\n",
		alg, *level, *blockSize, elapsed.Round(time.Microsecond), mbps)
}

func runCompress(sink io.Writer, data []byte, opts []qzip.Option) (int64, error) {
	count := &countingWriter{w: sink}
	w, err := qzip.NewWriter(count, opts...)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return count.n, nil
}

func runDecompress(sink io.Writer, data []byte, opts []qzip.Option) (int64, error) {
	r, err := qzip.NewReader(bytes.NewReader(data), opts...)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(sink, r)
	if err != nil {
		return 0, err
	}
	return n, r.Close()
}

// readInput slurps the file, optionally through O_DIRECT with aligned
// block reads.
func readInput(path string, direct bool) ([]byte, error) {
	if !direct {
		return os.ReadFile(path)
	}
	f, err := directio.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data []byte
	block := directio.AlignedBlock(directio.BlockSize)
	for {
		n, err := io.ReadFull(f, block)
		data = append(data, block[:n]...)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func openSink(path string) (io.Writer, string, error) {
	if path == "" {
		return io.Discard, "(discarded)", nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

func parseAlgorithm(s string) (qzip.Algorithm, error) {
	switch s {
	case "deflate":
		return qzip.Deflate, nil
	case "lz4":
		return qzip.LZ4, nil
	case "zstd":
		return qzip.Zstd, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q (want deflate, lz4, or zstd)", s)
	}
}

func parseMode(s string) (qzip.Mode, error) {
	switch s {
	case "auto":
		return qzip.ModeAuto, nil
	case "hardware":
		return qzip.ModeHardware, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want auto or hardware)", s)
	}
}

// countingWriter tracks bytes passed through to the sink.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
