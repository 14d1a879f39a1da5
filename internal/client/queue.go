package client

import (
	"slices"

	"github.com/DoyleJ11/fetris/internal/engine"
)

type SyncState int

const (
	// Synchronized: every prediction has been confirmed.
	Synchronized SyncState = iota
	// ServerLate: the server agrees so far and has not caught up yet.
	ServerLate
	// NeedResync: the logs disagree; predictions were discarded.
	NeedResync
)

func (s SyncState) String() string {
	switch s {
	case Synchronized:
		return "synchronized"
	case ServerLate:
		return "server_late"
	case NeedResync:
		return "need_resync"
	}
	return "unknown"
}

// Queue holds the actions a client applied locally and the actions the server
// has confirmed since the last synchronisation, both oldest first.
type Queue struct {
	local  []engine.Action
	server []engine.Action
}

func (q *Queue) PushLocal(a engine.Action) {
	q.local = append(q.local, a)
}

// Confirm records an action from the server and synchronises. Garbage is never
// predicted, so it is spliced into the local log at the position the server
// applied it.
func (q *Queue) Confirm(a engine.Action) SyncState {
	if a.Kind == engine.ActionGarbage && len(q.server) <= len(q.local) {
		q.local = slices.Insert(q.local, len(q.server), a)
	}
	q.server = append(q.server, a)
	return q.Synchronize()
}

// Synchronize pairs the i-th confirmation with the i-th prediction, both counted
// from the last synchronisation point.
func (q *Queue) Synchronize() SyncState {
	n := len(q.server)
	if n > len(q.local) {
		q.Reset()
		return NeedResync
	}
	for i := n - 1; i >= 0; i-- {
		if !engine.Matches(q.server[i], q.local[i]) {
			q.Reset()
			return NeedResync
		}
	}
	if n < len(q.local) {
		q.local = slices.Clone(q.local[n:])
		q.server = q.server[:0]
		return ServerLate
	}
	q.Reset()
	return Synchronized
}

func (q *Queue) Reset() {
	q.local = nil
	q.server = nil
}

// Pending returns the predictions not yet confirmed.
func (q *Queue) Pending() []engine.Action {
	return slices.Clone(q.local)
}

// Predict replays the pending predictions on a copy of the confirmed board.
func (q *Queue) Predict(confirmed *engine.Board) *engine.Board {
	b := confirmed.Clone()
	for _, a := range q.local {
		apply(b, a)
	}
	return b
}

// apply mirrors the server's bag when a new piece comes in, so a replica's bag
// stays in step with the authoritative one.
func apply(b *engine.Board, a engine.Action) (engine.Result, error) {
	if a.Kind == engine.ActionNewPiece {
		b.Bag.Take(a.Piece)
	}
	return engine.Apply(b, a)
}
