// Package wire implements the on-the-wire formats exchanged between two
// ZiSync peers: ustar TAR framing for file data, a length-delimited
// manifest format for directory listings, and the HTTP header
// conventions tying a request to a tree pair.
package wire

import (
	"fmt"
	"net/http"
	"strconv"
)

// Header names exchanged on every data-plane HTTP request.
const (
	HeaderRemoteTreeUUID = "ZiSync-Remote-Tree-Uuid"
	HeaderLocalTreeUUID  = "ZiSync-Local-Tree-Uuid"
	HeaderTotalSize      = "ZiSync-Total-Size"
	HeaderTotalFiles     = "ZiSync-Total-Files"
)

// SessionHeaders carries the header values identifying one data-plane
// transfer session.
type SessionHeaders struct {
	RemoteTreeUUID string
	LocalTreeUUID  string
	TotalSize      int64
	TotalFiles     int64
}

// SetRequestHeaders writes h onto an outgoing request.
func (h SessionHeaders) SetRequestHeaders(header http.Header) {
	header.Set(HeaderRemoteTreeUUID, h.RemoteTreeUUID)
	header.Set(HeaderLocalTreeUUID, h.LocalTreeUUID)
	header.Set(HeaderTotalSize, strconv.FormatInt(h.TotalSize, 10))
	header.Set(HeaderTotalFiles, strconv.FormatInt(h.TotalFiles, 10))
}

// ParseSessionHeaders reads the four session headers off an incoming
// request or response. RemoteTreeUUID/LocalTreeUUID are read from the
// receiver's point of view: a server reading ZiSync-Remote-Tree-Uuid
// sees the value the client set as ITS local tree, i.e. the two ends
// always disagree about which uuid is "local" — callers on each side
// compare against their own tree uuid to recover which field means what.
func ParseSessionHeaders(header http.Header) (SessionHeaders, error) {
	var h SessionHeaders
	h.RemoteTreeUUID = header.Get(HeaderRemoteTreeUUID)
	h.LocalTreeUUID = header.Get(HeaderLocalTreeUUID)
	if h.RemoteTreeUUID == "" || h.LocalTreeUUID == "" {
		return h, fmt.Errorf("wire: missing tree uuid header")
	}

	size, err := strconv.ParseInt(header.Get(HeaderTotalSize), 10, 64)
	if err != nil {
		return h, fmt.Errorf("wire: parse %s: %w", HeaderTotalSize, err)
	}
	h.TotalSize = size

	files, err := strconv.ParseInt(header.Get(HeaderTotalFiles), 10, 64)
	if err != nil {
		return h, fmt.Errorf("wire: parse %s: %w", HeaderTotalFiles, err)
	}
	h.TotalFiles = files

	return h, nil
}
