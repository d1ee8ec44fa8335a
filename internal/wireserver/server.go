// Package wireserver serves the data-plane HTTP endpoints peers use to
// exchange files: PUT tar (receive a push), GET tar (serve a pull), and
// PUT tar/upload (receive a one-way upload that skips metadata update).
// Each request is admission-controlled by a treelock.Set so at most one
// session moves data for a given tree pair at a time.
package wireserver

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/zisync/zisync/internal/executor"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/treelock"
)

// TreeResolver maps a tree uuid to its filesystem root. The engine owns
// the authoritative tree registry; the server only needs lookups.
type TreeResolver interface {
	TreeRoot(treeUUID string) (string, bool)
}

// Config configures a Server.
type Config struct {
	Store       *metastore.Store
	Resolver    TreeResolver
	Locks       *treelock.Set
	Upload      *executor.BandwidthLimiter // nil means unlimited
	Download    *executor.BandwidthLimiter // nil means unlimited
	Cache       *executor.DownloadCache    // nil disables caching
	Logger      *slog.Logger
	ReadTimeout time.Duration
	LockRetry   time.Duration // retry delay advertised to refused callers
}

// Server implements http.Handler for the data-plane endpoints.
type Server struct {
	store     *metastore.Store
	resolver  TreeResolver
	locks     *treelock.Set
	upload    *executor.BandwidthLimiter
	download  *executor.BandwidthLimiter
	cache     *executor.DownloadCache
	logger    *slog.Logger
	timeout   time.Duration
	lockRetry time.Duration

	mux *http.ServeMux
}

const defaultLockRetry = 100 * time.Millisecond

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LockRetry == 0 {
		cfg.LockRetry = defaultLockRetry
	}
	s := &Server{
		store:     cfg.Store,
		resolver:  cfg.Resolver,
		locks:     cfg.Locks,
		upload:    cfg.Upload,
		download:  cfg.Download,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		timeout:   cfg.ReadTimeout,
		lockRetry: cfg.LockRetry,
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("PUT /tar", s.handlePutTar)
	s.mux.HandleFunc("GET /tar", s.handleGetTar)
	s.mux.HandleFunc("PUT /tar/upload", s.handlePutUpload)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts an HTTP server on addr. If tlsConfig is non-nil
// and requires client certificates, mutual TLS is enforced (spec.md's
// "optionally TLS with mutual authentication").
func (s *Server) ListenAndServe(addr string, tlsConfig *tls.Config) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
		TLSConfig:    tlsConfig,
	}
	if tlsConfig != nil {
		return httpSrv.ListenAndServeTLS("", "")
	}
	return httpSrv.ListenAndServe()
}

func (s *Server) writeError(w http.ResponseWriter, status int, op string, err error) {
	s.logger.Warn("wireserver: request failed", "op", op, "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

// drainSession logs every event a session emits until its Events channel
// closes. The wireserver has no control-plane Task to hand events to, and
// nothing else consumes them; draining here keeps Session's unbuffered
// channel from blocking its owning handler.
func (s *Server) drainSession(sess *executor.Session) {
	go func() {
		for evt := range sess.Events {
			if evt.Err != nil {
				s.logger.Warn("wireserver: session event", "tree", sess.TreeUUID, "state", evt.State, "error", evt.Err)
				continue
			}
			s.logger.Debug("wireserver: session event", "tree", sess.TreeUUID, "state", evt.State, "bytes", evt.BytesTransferred)
		}
	}()
}
