// Package engine is the control plane tying together every other
// internal package: it owns the device's MetaStore, dispatches indexing
// and planning for each Sync on demand or on a timer, drives the
// TransferExecutor against a peer over internal/wireclient, and exposes
// the operations a CLI or API surface needs as plain Go methods.
// Grounded on the teacher's internal/sync.Orchestrator: a long-lived
// object wrapping a metadata store, generalized from "one goroutine per
// drive" to one SyncOnce pass per sync/tree pair. The Engine itself
// starts no goroutines; its caller (the serve command's watch loop, for
// one) decides when each pass runs.
package engine

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/zisync/zisync/internal/config"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/monitor"
	"github.com/zisync/zisync/internal/synclist"
	"github.com/zisync/zisync/internal/treelock"
	"github.com/zisync/zisync/internal/wireclient"
)

// Config configures a new Engine. Store, Holder and Logger are required;
// the rest have sane zero-value defaults.
type Config struct {
	Store      *metastore.Store
	Holder     *config.Holder
	Monitor    *monitor.TaskMonitor
	Locks      *treelock.Set
	Logger     *slog.Logger
	DeviceUUID string
	HTTPClient *http.Client
}

// Engine is the long-lived control-plane object. A process holds exactly
// one Engine per device, wrapping the one MetaStore that holds every
// tree's rows.
type Engine struct {
	store      *metastore.Store
	holder     *config.Holder
	mon        *monitor.TaskMonitor
	locks      *treelock.Set
	logger     *slog.Logger
	deviceUUID string
	wc         *wireclient.Client

	mu        sync.RWMutex
	roots     map[string]string         // treeUUID -> local filesystem root
	favorites map[string]*synclist.List // treeUUID -> favorites whitelist (nil list = sync everything)
	peers     map[string]string         // treeUUID -> remote peer base URL, e.g. "https://host:port"
}

// New constructs an Engine. It does not start any background work;
// callers drive SyncOnce (or their own timer loop around it) explicitly.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Locks == nil {
		cfg.Locks = &treelock.Set{}
	}
	if cfg.Monitor == nil {
		cfg.Monitor = monitor.New()
	}
	return &Engine{
		store:      cfg.Store,
		holder:     cfg.Holder,
		mon:        cfg.Monitor,
		locks:      cfg.Locks,
		logger:     cfg.Logger,
		deviceUUID: cfg.DeviceUUID,
		wc:         wireclient.New(cfg.HTTPClient, cfg.Logger),
		roots:      make(map[string]string),
		favorites:  make(map[string]*synclist.List),
		peers:      make(map[string]string),
	}
}

// TreeRoot implements wireserver.TreeResolver, letting the engine double
// as the resolver the data-plane HTTP server consults for inbound
// push/pull requests.
func (e *Engine) TreeRoot(treeUUID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	root, ok := e.roots[treeUUID]
	return root, ok
}

// RegisterPeer records the base URL (e.g. "https://host:port") SyncOnce
// should dial for treeUUID's remote counterpart. The control plane calls
// this once per tree after resolving the peer address from config.
func (e *Engine) RegisterPeer(treeUUID, baseURL string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peers[treeUUID] = baseURL
}

// Monitor exposes the TaskMonitor backing QueryTransferList and the
// websocket status feed, so a server wiring both can share one instance.
func (e *Engine) Monitor() *monitor.TaskMonitor {
	return e.mon
}

// Locks exposes the admission-control Set the data-plane server must
// share with the engine so a push/pull session and a local SyncOnce can
// never both hold the same tree pair.
func (e *Engine) Locks() *treelock.Set {
	return e.locks
}

func (e *Engine) treeRootOrErr(treeUUID string) (string, error) {
	root, ok := e.TreeRoot(treeUUID)
	if !ok {
		return "", fmt.Errorf("engine: unknown tree %s", treeUUID)
	}
	return root, nil
}

func (e *Engine) peerAddr(treeUUID string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addr, ok := e.peers[treeUUID]
	if !ok {
		return "", fmt.Errorf("engine: no peer address registered for tree %s", treeUUID)
	}
	return addr, nil
}
