package wireserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/zisync/zisync/internal/executor"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/wire"
)

// handleGetTar serves a ustar stream of the requested paths. The
// request body is the length-prefixed path list defined in
// internal/wire/pathlist.go; the response body is a TAR stream.
func (s *Server) handleGetTar(w http.ResponseWriter, r *http.Request) {
	headers, err := wire.ParseSessionHeaders(r.Header)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "get_tar.headers", err)
		return
	}
	myTreeUUID := headers.RemoteTreeUUID
	peerTreeUUID := headers.LocalTreeUUID

	root, ok := s.resolver.TreeRoot(myTreeUUID)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "get_tar.resolve", errUnknownTree(myTreeUUID))
		return
	}

	paths, err := wire.DecodePathList(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "get_tar.paths", err)
		return
	}

	pair := lockPair(myTreeUUID, peerTreeUUID)
	if s.locks != nil {
		if !s.locks.TryLock(pair) {
			w.Header().Set("Retry-After", s.lockRetry.String())
			s.writeError(w, http.StatusLocked, "get_tar.lock", errTreeBusy(pair))
			return
		}
		defer s.locks.Unlock(pair)
	}

	session := executor.NewSession(myTreeUUID, peerTreeUUID, false)
	s.drainSession(session)
	defer session.Close()

	if err := session.Transition(executor.StateBodyWrite, 0, nil); err != nil {
		s.writeError(w, http.StatusInternalServerError, "get_tar.transition", err)
		return
	}

	out := s.upload.WrapWriter(r.Context(), w)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	bytesWritten, err := s.writeTarResponse(r.Context(), out, myTreeUUID, headers, root, paths)
	if err != nil {
		session.Fail(err)
		s.logger.Error("get_tar: streaming response failed", "error", err)
		return
	}

	if err := session.Transition(executor.StateDone, bytesWritten, nil); err != nil {
		s.logger.Warn("get_tar: session transition to done failed", "error", err)
	}
}

// writeTarResponse streams a manifest entry (carrying each path's real
// FileMeta from the MetaStore — SHA1, vector clock, platform attribute
// bits) ahead of the data entries it describes, so PullFile can verify
// content against the expected hash instead of trusting the tar header
// alone.
func (s *Server) writeTarResponse(
	ctx context.Context, w io.Writer, treeUUID string, headers wire.SessionHeaders, root string, paths []string,
) (int64, error) {
	tw := wire.NewTarWriter(w)
	var counter countingWriter
	defer tw.Close()

	metas := make([]*metastore.FileMeta, 0, len(paths))
	for _, p := range paths {
		meta, err := s.lookupMeta(ctx, treeUUID, root, p)
		if err != nil {
			return counter.n, err
		}
		metas = append(metas, meta)
	}

	if len(metas) > 0 {
		var buf bytes.Buffer
		if err := wire.EncodeManifest(&buf, headers.LocalTreeUUID, headers.RemoteTreeUUID, metas); err != nil {
			return counter.n, fmt.Errorf("encode manifest: %w", err)
		}
		if err := tw.WriteRaw(wire.ManifestPath, buf.Bytes()); err != nil {
			return counter.n, fmt.Errorf("write manifest: %w", err)
		}
	}

	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return counter.n, err
		}
		if meta.Type == metastore.FileTypeDirectory {
			if err := tw.WriteFile(ctx, meta, nil); err != nil {
				return counter.n, err
			}
			continue
		}

		fsPath := filepath.Join(root, filepath.FromSlash(meta.Path))
		f, err := os.Open(fsPath)
		if err != nil {
			return counter.n, err
		}
		err = tw.WriteFile(ctx, meta, io.TeeReader(f, &counter))
		f.Close()
		if err != nil {
			return counter.n, err
		}
	}
	return counter.n, nil
}

// lookupMeta prefers the MetaStore's recorded FileMeta for p (carrying
// SHA1, vector clock, and platform attribute bits); if the store has no
// row for p, or no store is configured, it falls back to a bare FileMeta
// built from the filesystem entry itself.
func (s *Server) lookupMeta(ctx context.Context, treeUUID, root, p string) (*metastore.FileMeta, error) {
	if s.store != nil {
		if meta, err := s.store.Get(ctx, treeUUID, p); err == nil && meta != nil {
			return meta, nil
		}
	}

	fsPath := filepath.Join(root, filepath.FromSlash(p))
	info, err := os.Stat(fsPath)
	if err != nil {
		return nil, err
	}
	meta := &metastore.FileMeta{
		Path:    p,
		Type:    metastore.FileTypeRegular,
		Length:  info.Size(),
		MtimeMS: info.ModTime().UnixMilli(),
	}
	if info.IsDir() {
		meta.Type = metastore.FileTypeDirectory
	}
	return meta, nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
