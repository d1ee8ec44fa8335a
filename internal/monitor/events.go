package monitor

// EventKind names one kind of Observer notification, matching the core
// operations spec.md §6 lists under observer registration.
type EventKind string

const (
	EventSyncStart          EventKind = "sync_start"
	EventSyncFinish         EventKind = "sync_finish"
	EventSyncModify         EventKind = "sync_modify"
	EventIndexStart         EventKind = "index_start"
	EventIndexFinish        EventKind = "index_finish"
	EventDownloadFileNumber EventKind = "download_file_number"
)

// Event is one notification broadcast to subscribers. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind       EventKind
	SyncUUID   string
	TreeUUID   string
	Transfer   *Transfer
	FileNumber int64
	Err        error
}

// subscriberBuffer bounds how many undelivered events a slow subscriber
// may accumulate; once its buffer is full, further events to it are
// dropped (the subscription stays), so one stalled consumer (e.g. a
// disconnected websocket client) cannot block the publisher.
const subscriberBuffer = 64

// Subscribe registers a new event channel. The returned unsubscribe
// function must be called when the caller is done listening.
func (m *TaskMonitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()

	unsubscribe := func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		for i, c := range m.subs {
			if c == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				close(c)
				return
			}
		}
	}
	return ch, unsubscribe
}

// publish fans out evt to every subscriber without blocking: a full
// subscriber channel drops the event rather than stalling the caller
// that triggered it.
func (m *TaskMonitor) publish(evt Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Notify publishes a bare observer event with no attached Transfer, for
// NotifySyncStart/Finish/Index* calls that carry only identifiers.
func (m *TaskMonitor) Notify(kind EventKind, syncUUID, treeUUID string) {
	m.publish(Event{Kind: kind, SyncUUID: syncUUID, TreeUUID: treeUUID})
}

// NotifyErr publishes a bare observer event carrying a finish error, for
// NotifySyncFinish/NotifyIndexFinish calls.
func (m *TaskMonitor) NotifyErr(kind EventKind, syncUUID, treeUUID string, err error) {
	m.publish(Event{Kind: kind, SyncUUID: syncUUID, TreeUUID: treeUUID, Err: err})
}

// NotifyDownloadFileNumber publishes the remaining-file-count event.
func (m *TaskMonitor) NotifyDownloadFileNumber(treeUUID string, n int64) {
	m.publish(Event{Kind: EventDownloadFileNumber, TreeUUID: treeUUID, FileNumber: n})
}
