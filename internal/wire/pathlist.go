package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// EncodePathList writes a length-prefixed count followed by one
// length-delimited path per entry — the GET tar request body shape:
// spec.md calls it "a length-prefixed serialized list of relative
// paths".
func EncodePathList(w io.Writer, paths []string) error {
	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(paths)))
	if _, err := w.Write(countBuf[:n]); err != nil {
		return fmt.Errorf("wire: write path list count: %w", err)
	}
	for _, p := range paths {
		if err := writeDelimited(w, []byte(p)); err != nil {
			return fmt.Errorf("wire: write path %q: %w", p, err)
		}
	}
	return nil
}

// DecodePathList reads a list written by EncodePathList.
func DecodePathList(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("wire: read path list count: %w", err)
	}
	paths := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		payload, err := readDelimited(br)
		if err != nil {
			return nil, fmt.Errorf("wire: read path %d: %w", i, err)
		}
		paths = append(paths, string(payload))
	}
	return paths, nil
}
