package wireserver

import (
	"fmt"

	"github.com/zisync/zisync/internal/treelock"
)

func errUnknownTree(treeUUID string) error {
	return fmt.Errorf("wireserver: unknown tree %q", treeUUID)
}

func errTreeBusy(pair treelock.Pair) error {
	return fmt.Errorf("wireserver: tree pair %s/%s busy, retry later", pair.LocalTreeID, pair.RemoteTreeID)
}
