package engine

import (
	"errors"
)

// Rejection is returned when an action cannot be applied. The board is left as
// it was unless the rejection says otherwise (ErrBlockOut still advances the
// queue). ResetTimer tells the caller whether the player's fall timer restarts.
type Rejection struct {
	Reason     string
	ResetTimer bool
}

func (r *Rejection) Error() string {
	return r.Reason
}

var ErrBlocked = &Rejection{Reason: "blocked", ResetTimer: true}
var ErrAwaitingPiece = &Rejection{Reason: "awaiting next piece", ResetTimer: true}
var ErrNoActivePiece = &Rejection{Reason: "no active piece"}
var ErrBlockOut = &Rejection{Reason: "spawn position blocked"}
var ErrGarbageOverflow = &Rejection{Reason: "garbage overflow"}
var ErrUnsupportedAction = &Rejection{Reason: "unsupported action"}

type Result struct {
	Locked   bool
	Cleared  []int
	Immobile bool
}

// Apply performs a on b in place. On error b is unchanged, except after
// ErrBlockOut, which still advances the queue and leaves no active piece.
func Apply(b *Board, a Action) (Result, error) {
	switch a.Kind {
	case ActionMove:
		if b.Active == nil {
			return Result{}, ErrNoActivePiece
		}
		switch a.Direction {
		case DirHardDrop:
			for CanMove(*b.Active, &b.Grid, DirDown) {
				b.Active.shift(DirDown)
			}
			return b.lockActive(), nil
		case DirLeft, DirRight, DirDown:
			if !CanMove(*b.Active, &b.Grid, a.Direction) {
				return Result{}, ErrBlocked
			}
			b.Active.shift(a.Direction)
			return Result{}, nil
		default:
			return Result{}, ErrUnsupportedAction
		}

	case ActionRotate:
		if b.Active == nil {
			return Result{}, ErrNoActivePiece
		}
		if !Rotate(b.Active, &b.Grid, a.Reverse) {
			return Result{}, ErrBlocked
		}
		return Result{}, nil

	case ActionNewPiece:
		return Result{}, b.spawn(a.Piece)

	case ActionHold:
		return Result{}, b.Hold()

	case ActionLock:
		if b.Active == nil {
			return Result{}, ErrNoActivePiece
		}
		return b.lockActive(), nil

	case ActionGarbage:
		if a.Count <= 0 || a.Hole < 0 || a.Hole >= Width {
			return Result{}, ErrUnsupportedAction
		}
		if b.Active != nil {
			raised := *b.Active
			raised.Y += a.Count
			for _, c := range raised.Cells() {
				if c.Y >= Height {
					return Result{}, ErrGarbageOverflow
				}
			}
		}
		for range a.Count {
			b.AddGarbage(a.Hole)
		}
		return Result{}, nil

	case ActionFall:
		if b.Active == nil {
			return Result{}, ErrAwaitingPiece
		}
		if CanMove(*b.Active, &b.Grid, DirDown) {
			b.Active.shift(DirDown)
			return Result{}, nil
		}
		return b.lockActive(), nil

	default:
		return Result{}, ErrUnsupportedAction
	}
}

// ResetsTimer reports whether err leaves the fall timer restarted. Successful
// actions always restart it.
func ResetsTimer(err error) bool {
	if err == nil {
		return true
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.ResetTimer
	}
	return false
}

// NeedsPiece reports whether the board is now waiting for a NewPiece action.
func NeedsPiece(res Result, err error) bool {
	return (err == nil && res.Locked) || errors.Is(err, ErrAwaitingPiece)
}
