// Package wireclient drives the outbound half of the data-plane HTTP
// exchange internal/wireserver serves: it streams one file as a ustar
// PUT for a push action and decodes one ustar entry from a GET for a
// pull action. Grounded on the teacher's internal/graph HTTP client
// (a net/http.Client wrapping a base URL plus header conventions),
// generalized from "calls a cloud API" to "calls a peer device".
package wireclient

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/zisync/zisync/internal/executor"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/wire"
)

// Client issues PUT/GET tar requests against a peer's wireserver.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// New returns a Client. A nil httpClient uses http.DefaultClient's zero
// value equivalent (a fresh *http.Client with no timeout override — the
// caller is expected to set one via the transport/context instead).
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, logger: logger}
}

// PushFile streams one file (or directory marker) from root to peerAddr.
// updateRemoteMeta selects PUT /tar (the peer applies the incoming
// FileMeta to its own MetaStore) versus PUT /tar/upload (a one-way copy
// that leaves the peer's MetaStore untouched). A lock refusal from the
// peer is retried per spec §5's livelock-avoidance rule: only the side
// whose local tree uuid sorts greater schedules the retry.
func (c *Client) PushFile(
	ctx context.Context, peerAddr string, headers wire.SessionHeaders,
	root string, meta *metastore.FileMeta, updateRemoteMeta bool,
) (int64, error) {
	for {
		n, err := c.pushFileOnce(ctx, peerAddr, headers, root, meta, updateRemoteMeta)
		var locked *lockedError
		if errors.As(err, &locked) && retriesLock(headers.LocalTreeUUID, headers.RemoteTreeUUID) {
			if waitErr := waitForRetry(ctx, locked.delay); waitErr != nil {
				return 0, waitErr
			}
			continue
		}
		return n, err
	}
}

func (c *Client) pushFileOnce(
	ctx context.Context, peerAddr string, headers wire.SessionHeaders,
	root string, meta *metastore.FileMeta, updateRemoteMeta bool,
) (int64, error) {
	pr, pw := io.Pipe()
	counter := &countingWriter{}

	go func() {
		tw := wire.NewTarWriter(pw)
		err := writeManifestEntry(tw, headers, meta)
		if err == nil {
			err = c.writeEntry(ctx, tw, root, meta, counter)
		}
		closeErr := tw.Close()
		if err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	path := "/tar"
	if !updateRemoteMeta {
		path = "/tar/upload"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, peerAddr+path, pr)
	if err != nil {
		return 0, fmt.Errorf("wireclient: build push request: %w", err)
	}
	headers.SetRequestHeaders(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wireclient: push %s: %w", meta.Path, err)
	}
	defer resp.Body.Close()

	if err := classifyResponse("push", meta.Path, resp); err != nil {
		return 0, err
	}
	return counter.n, nil
}

// writeManifestEntry prepends the manifest record spec §4.6 requires:
// a single-entry manifest describing meta's full FileMeta (SHA1, vector
// clock, platform attribute bits) written as the archive's first entry,
// ahead of the data entry itself.
func writeManifestEntry(tw *wire.TarWriter, headers wire.SessionHeaders, meta *metastore.FileMeta) error {
	var buf bytes.Buffer
	if err := wire.EncodeManifest(&buf, headers.LocalTreeUUID, headers.RemoteTreeUUID, []*metastore.FileMeta{meta}); err != nil {
		return fmt.Errorf("wireclient: encode manifest for %s: %w", meta.Path, err)
	}
	if err := tw.WriteRaw(wire.ManifestPath, buf.Bytes()); err != nil {
		return fmt.Errorf("wireclient: write manifest for %s: %w", meta.Path, err)
	}
	return nil
}

func (c *Client) writeEntry(ctx context.Context, tw *wire.TarWriter, root string, meta *metastore.FileMeta, counter *countingWriter) error {
	if meta.Type == metastore.FileTypeDirectory {
		return tw.WriteFile(ctx, meta, nil)
	}
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(meta.Path)))
	if err != nil {
		return fmt.Errorf("wireclient: open %s: %w", meta.Path, err)
	}
	defer f.Close()
	return tw.WriteFile(ctx, meta, io.TeeReader(f, counter))
}

// PullFile requests a single path from peerAddr's GET /tar endpoint,
// verifies its content against the manifest's expected SHA-1, writes it
// into root via internal/executor's staging directory, and returns the
// FileMeta the manifest described plus the number of bytes received. A
// lock refusal from the peer is retried under the same spec §5 rule
// PushFile applies.
func (c *Client) PullFile(
	ctx context.Context, peerAddr string, headers wire.SessionHeaders, root, path string,
) (*metastore.FileMeta, int64, error) {
	for {
		meta, n, err := c.pullFileOnce(ctx, peerAddr, headers, root, path)
		var locked *lockedError
		if errors.As(err, &locked) && retriesLock(headers.LocalTreeUUID, headers.RemoteTreeUUID) {
			if waitErr := waitForRetry(ctx, locked.delay); waitErr != nil {
				return nil, 0, waitErr
			}
			continue
		}
		return meta, n, err
	}
}

func (c *Client) pullFileOnce(
	ctx context.Context, peerAddr string, headers wire.SessionHeaders, root, path string,
) (*metastore.FileMeta, int64, error) {
	var body bytes.Buffer
	if err := wire.EncodePathList(&body, []string{path}); err != nil {
		return nil, 0, fmt.Errorf("wireclient: encode path list: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerAddr+"/tar", &body)
	if err != nil {
		return nil, 0, fmt.Errorf("wireclient: build pull request: %w", err)
	}
	headers.SetRequestHeaders(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("wireclient: pull %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := classifyResponse("pull", path, resp); err != nil {
		return nil, 0, err
	}

	tr := wire.NewTarReader(resp.Body)
	entry, err := tr.Next()
	if err != nil {
		return nil, 0, fmt.Errorf("wireclient: pull %s: read entry: %w", path, err)
	}

	var expected *metastore.FileMeta
	if entry.Path == wire.ManifestPath {
		_, _, decoded, err := wire.DecodeManifest(entry.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("wireclient: pull %s: decode manifest: %w", path, err)
		}
		for _, m := range decoded {
			if m.Path == path {
				expected = m
				break
			}
		}
		entry, err = tr.Next()
		if err != nil {
			return nil, 0, fmt.Errorf("wireclient: pull %s: read entry after manifest: %w", path, err)
		}
	}

	finalPath := filepath.Join(root, filepath.FromSlash(entry.Path))
	if entry.IsDir {
		if err := os.MkdirAll(finalPath, 0o755); err != nil {
			return nil, 0, fmt.Errorf("wireclient: mkdir %s: %w", entry.Path, err)
		}
		if expected != nil {
			expected.Length, expected.MtimeMS = 0, entry.MtimeMS
			return expected, 0, nil
		}
		return &metastore.FileMeta{Path: entry.Path, Type: metastore.FileTypeDirectory, MtimeMS: entry.MtimeMS}, 0, nil
	}

	staging, err := executor.NewStagingSession(root)
	if err != nil {
		return nil, 0, fmt.Errorf("wireclient: stage %s: %w", entry.Path, err)
	}
	defer staging.Cleanup()

	stagedPath := staging.Path(filepath.Base(entry.Path))
	f, err := os.Create(stagedPath)
	if err != nil {
		return nil, 0, fmt.Errorf("wireclient: stage %s: %w", entry.Path, err)
	}
	h := sha1.New() //nolint:gosec // content identity hash mandated by the wire manifest format, not used for security
	n, err := io.Copy(f, io.TeeReader(entry.Body, h))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, 0, fmt.Errorf("wireclient: write %s: %w", entry.Path, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if expected != nil && expected.SHA1 != "" && expected.SHA1 != sum {
		return nil, 0, fmt.Errorf("wireclient: pull %s: sha1 mismatch: expected %s, got %s", entry.Path, expected.SHA1, sum)
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return nil, 0, fmt.Errorf("wireclient: mkdir parent of %s: %w", entry.Path, err)
	}
	if err := os.Rename(stagedPath, finalPath); err != nil {
		return nil, 0, fmt.Errorf("wireclient: rename into place %s: %w", entry.Path, err)
	}

	if expected != nil {
		expected.Length, expected.MtimeMS, expected.SHA1 = n, entry.MtimeMS, sum
		return expected, n, nil
	}
	return &metastore.FileMeta{Path: entry.Path, Type: metastore.FileTypeRegular, Length: n, MtimeMS: entry.MtimeMS, SHA1: sum}, n, nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
