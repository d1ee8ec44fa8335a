package planner

import (
	"math"

	"github.com/zisync/zisync/internal/metastore"
)

// candidate is one REMOVE or INSERT half of a potential rename, carried
// alongside the path it would otherwise produce a plain action for.
type renameCandidate struct {
	path string
	meta *metastore.FileMeta
}

// detectRenames coalesces REMOVE candidates at path A with INSERT
// candidates at path B sharing identical content hash and size into a
// single rename action. It is pass-scoped: the arena it builds lives
// only for the duration of one Plan() call and is discarded afterward,
// per the design note that renames are detected fresh each cycle rather
// than tracked across cycles.
//
// Matching policy: content hash is the primary key; size must also
// match (guards against hash collisions). When multiple inserts share a
// hash with one removal, the insert with the nearest mtime is paired.
func detectRenames(removes, inserts []renameCandidate) (renames []Action, leftoverRemoves, leftoverInserts []renameCandidate) {
	byHash := make(map[string][]renameCandidate, len(inserts))
	for _, ins := range inserts {
		byHash[ins.meta.SHA1] = append(byHash[ins.meta.SHA1], ins)
	}
	consumed := make(map[string]bool, len(inserts)) // insert path -> consumed

	for _, rm := range removes {
		if rm.meta.SHA1 == "" {
			leftoverRemoves = append(leftoverRemoves, rm)
			continue
		}
		candidates := byHash[rm.meta.SHA1]
		best := -1
		bestDelta := int64(math.MaxInt64)
		for i, ins := range candidates {
			if consumed[ins.path] || ins.meta.Length != rm.meta.Length {
				continue
			}
			delta := ins.meta.MtimeMS - rm.meta.MtimeMS
			if delta < 0 {
				delta = -delta
			}
			if delta < bestDelta {
				bestDelta = delta
				best = i
			}
		}
		if best == -1 {
			leftoverRemoves = append(leftoverRemoves, rm)
			continue
		}
		match := candidates[best]
		consumed[match.path] = true
		// Local/Remote are both left nil here: the caller assigns the
		// matched meta to whichever field corresponds to the
		// authoritative side for this direction (finalizeRenames).
		renames = append(renames, Action{
			From: rm.path, Path: match.path,
		})
		renames[len(renames)-1].rawMeta = match.meta
	}

	for _, ins := range inserts {
		if !consumed[ins.path] {
			leftoverInserts = append(leftoverInserts, ins)
		}
	}
	return renames, leftoverRemoves, leftoverInserts
}
