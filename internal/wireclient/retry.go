package wireclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrLocked is the sentinel a caller can match with errors.Is to tell a
// lock refusal apart from any other transfer failure, mirroring the
// graph package's classifyStatus/sentinel-error convention.
var ErrLocked = fmt.Errorf("wireclient: peer tree pair locked")

// lockedError wraps ErrLocked with the delay the peer advertised via its
// Retry-After header.
type lockedError struct {
	delay time.Duration
}

func (e *lockedError) Error() string { return ErrLocked.Error() }
func (e *lockedError) Unwrap() error { return ErrLocked }

const defaultLockRetry = 100 * time.Millisecond

// classifyResponse turns a 423 Locked response into a *lockedError
// carrying its Retry-After delay; any other non-200 status becomes a
// plain error built from the response body.
func classifyResponse(op, path string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusLocked {
		return &lockedError{delay: retryDelay(resp)}
	}
	return fmt.Errorf("wireclient: %s %s: peer returned %s: %s", op, path, resp.Status, body)
}

func retryDelay(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return defaultLockRetry
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultLockRetry
}

// retriesLock implements spec §5's livelock-avoidance rule: of the two
// tree uuids contesting a lock, only the lexicographically greater one
// schedules a retry. The peer on the other side finds the lock free on
// its own next sync pass, so exactly one side ever retries a given
// refusal and the two peers cannot retry each other into a livelock.
func retriesLock(localTreeUUID, remoteTreeUUID string) bool {
	return localTreeUUID > remoteTreeUUID
}

// waitForRetry blocks for d, scheduled via time.AfterFunc so the wait is
// cancellable through ctx rather than a plain blocking sleep.
func waitForRetry(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() { close(done) })
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
