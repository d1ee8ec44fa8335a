// Package monitor tracks in-flight and historical transfer activity and
// exposes it to the control plane (internal/engine's QueryTransferList)
// and to external observers over a live status feed.
package monitor

import (
	"sync"
	"sync/atomic"
)

// maxTransferHistory bounds the in-flight/recent transfer list so a
// long-running watch-mode session cannot grow it unboundedly, mirroring
// the teacher tracker's capped diagnostic lists.
const maxTransferHistory = 500

// Transfer describes one file's transfer progress, live or finished.
type Transfer struct {
	TreeUUID       string
	RemoteTreeUUID string
	Path           string
	Direction      string // "push" or "pull"
	BytesTotal     int64
	BytesDone      int64
	StartedAt      int64
	FinishedAt     int64 // zero while in flight
	Err            error
}

// Done reports whether this transfer has a recorded finish time.
func (t Transfer) Done() bool {
	return t.FinishedAt != 0
}

// TaskMonitor holds atomic counters for total bytes/files transferred and
// a short-held-mutex bounded list of transfer records, grounded on the
// teacher's tracker.go counter/list split (InFlightCount, total/completed
// atomics) repurposed from action-dependency bookkeeping to transfer
// accounting.
type TaskMonitor struct {
	bytesTransferred atomic.Int64
	filesTransferred atomic.Int64
	filesFailed      atomic.Int64

	mu        sync.Mutex
	transfers []*Transfer
	byKey     map[string]*Transfer

	subs   []chan Event
	subsMu sync.Mutex
}

// New creates an empty TaskMonitor.
func New() *TaskMonitor {
	return &TaskMonitor{
		byKey: make(map[string]*Transfer),
	}
}

func transferKey(treeUUID, path string) string {
	return treeUUID + "\x00" + path
}

// Start records a new in-flight transfer and returns it for progress
// updates via Progress/Finish.
func (m *TaskMonitor) Start(treeUUID, remoteTreeUUID, path, direction string, total int64, now int64) *Transfer {
	t := &Transfer{
		TreeUUID:       treeUUID,
		RemoteTreeUUID: remoteTreeUUID,
		Path:           path,
		Direction:      direction,
		BytesTotal:     total,
		StartedAt:      now,
	}

	m.mu.Lock()
	m.transfers = append(m.transfers, t)
	if len(m.transfers) > maxTransferHistory {
		dropped := m.transfers[0]
		delete(m.byKey, transferKey(dropped.TreeUUID, dropped.Path))
		m.transfers = m.transfers[1:]
	}
	m.byKey[transferKey(treeUUID, path)] = t
	m.mu.Unlock()

	m.publish(Event{Kind: EventSyncModify, Transfer: t})
	return t
}

// Progress updates an in-flight transfer's byte count.
func (m *TaskMonitor) Progress(t *Transfer, bytesDone int64) {
	m.mu.Lock()
	t.BytesDone = bytesDone
	m.mu.Unlock()
	m.publish(Event{Kind: EventSyncModify, Transfer: t})
}

// Finish marks a transfer complete, incrementing the appropriate
// success/failure counter.
func (m *TaskMonitor) Finish(t *Transfer, now int64, err error) {
	m.mu.Lock()
	t.FinishedAt = now
	t.Err = err
	m.mu.Unlock()

	if err != nil {
		m.filesFailed.Add(1)
	} else {
		m.filesTransferred.Add(1)
		m.bytesTransferred.Add(t.BytesTotal)
	}
	m.publish(Event{Kind: EventSyncModify, Transfer: t})
}

// List returns a snapshot of tracked transfers, oldest first.
func (m *TaskMonitor) List() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transfer, len(m.transfers))
	for i, t := range m.transfers {
		out[i] = *t
	}
	return out
}

// Stats reports cumulative counters.
func (m *TaskMonitor) Stats() (bytesTransferred, filesTransferred, filesFailed int64) {
	return m.bytesTransferred.Load(), m.filesTransferred.Load(), m.filesFailed.Load()
}

// InFlightCount reports how many tracked transfers have not finished.
func (m *TaskMonitor) InFlightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.transfers {
		if !t.Done() {
			n++
		}
	}
	return n
}
