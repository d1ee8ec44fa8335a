package engine

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zisync/zisync/internal/executor"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/wire"
	"github.com/zisync/zisync/internal/wireclient"
)

// flushWriter forces every tar write through to the connection
// immediately, so a client-side cancellation lands mid-transfer rather
// than before the first byte leaves the server.
type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}

// TestEngine_PullFile_CancelledContextLeavesNoStagingResidue cancels a
// pull partway through the body transfer and asserts neither the staging
// directory nor a partial target file survives: PullFile's cleanup must
// run on every exit path, not just a clean one.
func TestEngine_PullFile_CancelledContextLeavesNoStagingResidue(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	data := bytes.Repeat([]byte("x"), 256*1024)
	sum := sha1.Sum(data)
	meta := &metastore.FileMeta{
		Path: "/big.bin", Type: metastore.FileTypeRegular,
		Length: int64(len(data)), SHA1: hex.EncodeToString(sum[:]),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tar", func(w http.ResponseWriter, r *http.Request) {
		fl, _ := w.(http.Flusher)
		tw := wire.NewTarWriter(flushWriter{w: w, f: fl})

		var mbuf bytes.Buffer
		if err := wire.EncodeManifest(&mbuf, "peer-tree", "local-tree", []*metastore.FileMeta{meta}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := tw.WriteRaw(wire.ManifestPath, mbuf.Bytes()); err != nil {
			return
		}

		pr, pw := io.Pipe()
		go func() {
			_, _ = pw.Write(data[:4096])
			<-block
			_ = pw.CloseWithError(io.ErrClosedPipe)
		}()
		_ = tw.WriteFile(r.Context(), meta, pr)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	root := t.TempDir()
	client := wireclient.New(nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := client.PullFile(ctx, server.URL, wire.SessionHeaders{
		LocalTreeUUID: "local-tree", RemoteTreeUUID: "peer-tree",
	}, root, "/big.bin")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "big.bin"))
	assert.True(t, os.IsNotExist(statErr), "a cancelled pull must never leave a partial target file")

	_, statErr = os.Stat(filepath.Join(root, executor.StagingDirName))
	if statErr == nil {
		entries, readErr := os.ReadDir(filepath.Join(root, executor.StagingDirName))
		require.NoError(t, readErr)
		assert.Empty(t, entries, "a cancelled pull must not leave a staging session directory behind")
	} else {
		assert.True(t, os.IsNotExist(statErr))
	}
}
