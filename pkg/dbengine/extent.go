package dbengine

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dbrepair/dbrepair/pkg/domain"
)

// writeRecord appends one framed, lz4-compressed, msgpack-encoded
// document to f, which must already be positioned at the write point.
func writeRecord(f *os.File, doc domain.Document) error {
	raw, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return fmt.Errorf("compressing document: %w", err)
	}
	compressed = compressed[:n]

	if err := binary.Write(f, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(raw))); err != nil {
		return err
	}
	_, err = f.Write(compressed)
	return err
}

// readRecordAt opens the extent file addressed by loc and decodes the
// single record at its offset.
func readRecordAt(dh *DbHandle, loc Loc) (domain.Document, error) {
	path := dh.extentPath(loc.File)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Seek(loc.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	return readOneRecord(f)
}

func readOneRecord(r io.Reader) (domain.Document, error) {
	var compLen, rawLen uint32
	if err := binary.Read(r, binary.LittleEndian, &compLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rawLen); err != nil {
		return nil, err
	}
	compressed := make([]byte, compLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	raw := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(compressed, raw)
	if err != nil {
		return nil, fmt.Errorf("decompressing document: %w", err)
	}
	var doc domain.Document
	if err := msgpack.Unmarshal(raw[:n], &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// scanExtentLocs walks fileNums in order and returns every record's
// location within them, the on-disk analogue of _applyOpToDataFiles'
// directory walk, scoped to one collection's own extents instead of a
// whole database.
func scanExtentLocs(dh *DbHandle, fileNums []int) ([]Loc, error) {
	var locs []Loc
	for _, num := range fileNums {
		path := dh.extentPath(num)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		if _, err := ReadHeader(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("extent file %s: %w", path, err)
		}

		for {
			offset, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				f.Close()
				return nil, err
			}
			var compLen, rawLen uint32
			if err := binary.Read(f, binary.LittleEndian, &compLen); err != nil {
				if err == io.EOF {
					break
				}
				f.Close()
				return nil, err
			}
			if err := binary.Read(f, binary.LittleEndian, &rawLen); err != nil {
				f.Close()
				return nil, err
			}
			if _, err := f.Seek(int64(compLen), io.SeekCurrent); err != nil {
				f.Close()
				return nil, err
			}
			locs = append(locs, Loc{File: num, Offset: offset})
		}
		f.Close()
	}
	return locs, nil
}
