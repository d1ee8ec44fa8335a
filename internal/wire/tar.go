package wire

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zisync/zisync/internal/metastore"
)

func unixMilliTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// TarWriter streams a sequence of regular files as a ustar archive. It
// wraps archive/tar.Writer, which handles names exceeding the ustar
// 100-byte field transparently (a ustar prefix/name split where the path
// allows one, otherwise a PAX extended header).
type TarWriter struct {
	tw *tar.Writer
}

// NewTarWriter wraps w.
func NewTarWriter(w io.Writer) *TarWriter {
	return &TarWriter{tw: tar.NewWriter(w)}
}

// WriteFile writes one file's ustar header followed by its content read
// from r. meta.Length must equal the number of bytes r yields.
func (t *TarWriter) WriteFile(ctx context.Context, meta *metastore.FileMeta, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:     meta.Path,
		Size:     meta.Length,
		Mode:     0o644,
		ModTime:  unixMilliTime(meta.MtimeMS),
		Typeflag: tar.TypeReg,
	}
	if meta.Type == metastore.FileTypeDirectory {
		hdr.Typeflag = tar.TypeDir
		hdr.Size = 0
		hdr.Mode = 0o755
	}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("wire: write tar header for %s: %w", meta.Path, err)
	}
	if hdr.Typeflag == tar.TypeDir {
		return nil
	}
	if _, err := io.Copy(t.tw, r); err != nil {
		return fmt.Errorf("wire: write tar body for %s: %w", meta.Path, err)
	}
	return nil
}

// WriteRaw writes name as a plain ustar entry carrying data verbatim,
// with no relation to any FileMeta. This is how the manifest blob
// travels ahead of the data entries it describes.
func (t *TarWriter) WriteRaw(name string, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Size:     int64(len(data)),
		Mode:     0o644,
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("wire: write tar header for %s: %w", name, err)
	}
	_, err := t.tw.Write(data)
	return err
}

// Close flushes the two trailing zero blocks ustar requires.
func (t *TarWriter) Close() error {
	return t.tw.Close()
}

// TarReader reads a ustar archive produced by TarWriter.
type TarReader struct {
	tr *tar.Reader
}

// NewTarReader wraps r.
func NewTarReader(r io.Reader) *TarReader {
	return &TarReader{tr: tar.NewReader(r)}
}

// TarEntry is one decoded archive member.
type TarEntry struct {
	Path    string
	Size    int64
	IsDir   bool
	MtimeMS int64
	Body    io.Reader // valid only until the next call to Next
}

// Next returns the next entry, or io.EOF when the archive is exhausted.
func (t *TarReader) Next() (*TarEntry, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		return nil, err
	}
	return &TarEntry{
		Path:    hdr.Name,
		Size:    hdr.Size,
		IsDir:   hdr.Typeflag == tar.TypeDir,
		MtimeMS: hdr.ModTime.UnixMilli(),
		Body:    t.tr,
	}, nil
}
