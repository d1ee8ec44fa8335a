package indexer

import "time"

// timeNowUnixMilli is the indexer's sole wall-clock read, mirroring the
// teacher's NowNano helper but in milliseconds to match the wire
// manifest's mtime_ms field.
func timeNowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
