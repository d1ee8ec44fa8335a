package engine

import "github.com/zisync/zisync/internal/monitor"

// Observer receives control-plane lifecycle notifications. Implementations
// must not block for long — Subscribe delivers events from a bounded,
// non-blocking fan-out, so a slow Observer drops events rather than
// stalling a sync.
type Observer interface {
	NotifySyncStart(syncUUID string)
	NotifySyncFinish(syncUUID string, err error)
	NotifyIndexStart(treeUUID string)
	NotifyIndexFinish(treeUUID string, err error)
	NotifySyncModify(treeUUID, path string)
	NotifyDownloadFileNumber(treeUUID string, n int64)
}

// Subscribe registers obs against every notification SyncOnce emits
// through the engine's TaskMonitor. The returned function must be called
// to stop delivery and release the underlying channel.
func (e *Engine) Subscribe(obs Observer) func() {
	ch, unsubscribe := e.mon.Subscribe()

	go func() {
		for evt := range ch {
			dispatchEvent(obs, evt)
		}
	}()

	return unsubscribe
}

func dispatchEvent(obs Observer, evt monitor.Event) {
	switch evt.Kind {
	case monitor.EventSyncStart:
		obs.NotifySyncStart(evt.SyncUUID)
	case monitor.EventSyncFinish:
		obs.NotifySyncFinish(evt.SyncUUID, evt.Err)
	case monitor.EventIndexStart:
		obs.NotifyIndexStart(evt.TreeUUID)
	case monitor.EventIndexFinish:
		obs.NotifyIndexFinish(evt.TreeUUID, evt.Err)
	case monitor.EventSyncModify:
		if evt.Transfer != nil {
			obs.NotifySyncModify(evt.Transfer.TreeUUID, evt.Transfer.Path)
		}
	case monitor.EventDownloadFileNumber:
		obs.NotifyDownloadFileNumber(evt.TreeUUID, evt.FileNumber)
	}
}
