package dbengine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// MagicBytes identifies a rebuilt-engine data file, the namespace
	// catalog (<db>.ns) and every numbered extent file (<db>.N) alike.
	MagicBytes = "REDB"
	// FormatVersion is the current on-disk format version.
	FormatVersion = 1
)

// FileHeader is the fixed-size prefix written to every catalog and
// extent file, the same framing idea as the teacher's GODB header,
// renamed for this engine's own files.
type FileHeader struct {
	Magic    [4]byte
	Version  uint8
	Flags    uint8
	Reserved [2]byte
}

// WriteHeader writes a current-version header to w.
func WriteHeader(w io.Writer) error {
	header := FileHeader{
		Magic:   [4]byte{'R', 'E', 'D', 'B'},
		Version: FormatVersion,
	}
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates a header from r.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading file header: %w", err)
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected magic %s, got %s", MagicBytes, string(header.Magic[:]))
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}
	return &header, nil
}

// writeFramed msgpack-encodes v, lz4-compresses the result, and writes
// a header-prefixed file to path via a temp-file-then-rename, the same
// atomic-write idiom the teacher uses for per-collection persistence.
func writeFramed(path string, v interface{}) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return fmt.Errorf("compressing %s: %w", path, err)
	}
	compressed = compressed[:n]

	var buf bytes.Buffer
	if err := WriteHeader(&buf); err != nil {
		return fmt.Errorf("writing header for %s: %w", path, err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(raw))); err != nil {
		return fmt.Errorf("writing uncompressed-length prefix for %s: %w", path, err)
	}
	buf.Write(compressed)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// readFramed is the inverse of writeFramed.
func readFramed(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := ReadHeader(f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var uncompressedLen uint32
	if err := binary.Read(f, binary.LittleEndian, &uncompressedLen); err != nil {
		return fmt.Errorf("reading length prefix of %s: %w", path, err)
	}
	compressed, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading body of %s: %w", path, err)
	}
	raw := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(compressed, raw)
	if err != nil {
		return fmt.Errorf("decompressing %s: %w", path, err)
	}
	if err := msgpack.Unmarshal(raw[:n], v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
