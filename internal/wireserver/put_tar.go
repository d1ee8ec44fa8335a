package wireserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/zisync/zisync/internal/executor"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/treelock"
	"github.com/zisync/zisync/internal/wire"
)

// sanitizeStagingName turns an archive path into a flat staging file
// name so staged files never collide with the tree's own directory
// structure before the final rename.
func sanitizeStagingName(archivePath string) string {
	return strings.ReplaceAll(strings.TrimPrefix(archivePath, "/"), "/", "_")
}

func (s *Server) handlePutTar(w http.ResponseWriter, r *http.Request) {
	s.receiveTar(w, r, true)
}

func (s *Server) handlePutUpload(w http.ResponseWriter, r *http.Request) {
	s.receiveTar(w, r, false)
}

// receiveTar reads an incoming ustar stream (optionally preceded by a
// manifest at /.zisync.meta) and stages each file under the target
// tree's .zstm directory before renaming into place. updateMeta controls
// whether the manifest's FileMeta rows are applied to the MetaStore:
// PUT tar updates it, PUT tar/upload (a one-way push) does not.
func (s *Server) receiveTar(w http.ResponseWriter, r *http.Request, updateMeta bool) {
	headers, err := wire.ParseSessionHeaders(r.Header)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "receive_tar.headers", err)
		return
	}

	// Per headers.go: the header named "remote" carries THIS server's
	// own tree uuid from the sender's point of view.
	myTreeUUID := headers.RemoteTreeUUID
	peerTreeUUID := headers.LocalTreeUUID

	root, ok := s.resolver.TreeRoot(myTreeUUID)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "receive_tar.resolve", errUnknownTree(myTreeUUID))
		return
	}

	pair := lockPair(myTreeUUID, peerTreeUUID)
	if s.locks != nil {
		if !s.locks.TryLock(pair) {
			w.Header().Set("Retry-After", s.lockRetry.String())
			s.writeError(w, http.StatusLocked, "receive_tar.lock", errTreeBusy(pair))
			return
		}
		defer s.locks.Unlock(pair)
	}

	session := executor.NewSession(myTreeUUID, peerTreeUUID, true)
	s.drainSession(session)
	defer session.Close()

	staging, err := executor.NewStagingSession(root)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "receive_tar.stage", err)
		return
	}
	defer staging.Cleanup()

	if err := session.Transition(executor.StateBodyRead, 0, nil); err != nil {
		s.writeError(w, http.StatusInternalServerError, "receive_tar.transition", err)
		return
	}

	body := s.download.WrapReader(r.Context(), r.Body)

	metas, bytesRead, err := s.stageEntries(r.Context(), body, staging, root)
	if err != nil {
		session.Fail(err)
		s.writeError(w, http.StatusInternalServerError, "receive_tar.stream", err)
		return
	}

	if updateMeta && s.store != nil && len(metas) > 0 {
		if err := s.commitMetas(r.Context(), myTreeUUID, metas); err != nil {
			session.Fail(err)
			s.writeError(w, http.StatusInternalServerError, "receive_tar.commit", err)
			return
		}
	}

	if err := session.Transition(executor.StateDone, bytesRead, nil); err != nil {
		s.logger.Warn("receive_tar: session transition to done failed", "error", err)
	}

	w.WriteHeader(http.StatusOK)
}

// stageEntries decodes the ustar stream into staging, then renames each
// regular file into its final path under root. Directories are created
// directly since they carry no content worth staging.
func (s *Server) stageEntries(
	ctx context.Context, body io.Reader, staging *executor.StagingSession, root string,
) ([]*metastore.FileMeta, int64, error) {
	tr := wire.NewTarReader(body)
	var metas []*metastore.FileMeta
	var total int64
	manifest := make(map[string]*metastore.FileMeta)

	for {
		if err := ctx.Err(); err != nil {
			return metas, total, err
		}
		entry, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, total, err
		}
		if entry.Path == wire.ManifestPath {
			_, _, decoded, err := wire.DecodeManifest(entry.Body)
			if err != nil {
				return nil, total, fmt.Errorf("decode manifest: %w", err)
			}
			for _, m := range decoded {
				manifest[m.Path] = m
			}
			continue
		}

		finalPath := filepath.Join(root, filepath.FromSlash(entry.Path))
		if entry.IsDir {
			if err := os.MkdirAll(finalPath, 0o755); err != nil {
				return nil, total, err
			}
			continue
		}

		stagedPath := staging.Path(sanitizeStagingName(entry.Path))
		n, err := writeStaged(stagedPath, entry.Body)
		if err != nil {
			return nil, total, err
		}
		total += n

		if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
			return nil, total, err
		}
		if err := os.Rename(stagedPath, finalPath); err != nil {
			return nil, total, err
		}

		meta, ok := manifest[entry.Path]
		if !ok {
			// No manifest entry preceded this file (e.g. a bare PUT from a
			// client that skips the manifest step) — fall back to what the
			// tar header itself carries.
			meta = &metastore.FileMeta{
				Path:    entry.Path,
				Type:    metastore.FileTypeRegular,
				Length:  entry.Size,
				MtimeMS: entry.MtimeMS,
				Status:  metastore.StatusNormal,
			}
		} else {
			meta.Length = entry.Size
			meta.MtimeMS = entry.MtimeMS
		}
		metas = append(metas, meta)
	}
	return metas, total, nil
}

func writeStaged(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		return n, err
	}
	return n, f.Sync()
}

func (s *Server) commitMetas(ctx context.Context, treeUUID string, metas []*metastore.FileMeta) error {
	first, err := s.store.AllocateUSNs(ctx, treeUUID, int64(len(metas)))
	if err != nil {
		return err
	}
	ops := make([]metastore.BatchOp, len(metas))
	for i, m := range metas {
		m.TreeUUID = treeUUID
		m.USN = first + int64(i)
		ops[i] = metastore.BatchOp{Meta: m}
	}
	return s.store.ApplyBatch(ctx, treeUUID, ops)
}

func lockPair(a, b string) treelock.Pair {
	if a > b {
		a, b = b, a
	}
	return treelock.Pair{LocalTreeID: a, RemoteTreeID: b}
}
