package engine

type ActionKind string

const (
	ActionMove     ActionKind = "move"
	ActionRotate   ActionKind = "rotate"
	ActionNewPiece ActionKind = "new_piece"
	ActionHold     ActionKind = "hold"
	ActionLock     ActionKind = "lock"
	ActionGarbage  ActionKind = "garbage"
	ActionFall     ActionKind = "fall"
)

// Action is the unit of change both the server and a predicting client apply to
// a board. Fields not used by Kind stay zero, so == compares two actions exactly.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Direction Direction  `json:"direction,omitempty"`
	Reverse   bool       `json:"reverse,omitempty"`
	Piece     PieceType  `json:"piece,omitempty"`
	Count     int        `json:"count,omitempty"`
	Hole      int        `json:"hole,omitempty"`
}

func MoveAction(d Direction) Action {
	return Action{Kind: ActionMove, Direction: d}
}

func RotateAction(reverse bool) Action {
	return Action{Kind: ActionRotate, Reverse: reverse}
}

func NewPieceAction(t PieceType) Action {
	return Action{Kind: ActionNewPiece, Piece: t}
}

func HoldAction() Action {
	return Action{Kind: ActionHold}
}

func LockAction() Action {
	return Action{Kind: ActionLock}
}

func GarbageAction(count, hole int) Action {
	return Action{Kind: ActionGarbage, Count: count, Hole: hole}
}

func FallAction() Action {
	return Action{Kind: ActionFall}
}

// Matches is the equality used when reconciling a predicted log with the
// authoritative one. A client cannot know which type the bag will produce, so
// any two NewPiece actions match.
func Matches(a, b Action) bool {
	if a.Kind == ActionNewPiece && b.Kind == ActionNewPiece {
		return true
	}
	return a == b
}

// Input is a player intent as sent over the wire.
type Input string

const (
	InputLeft         Input = "left"
	InputRight        Input = "right"
	InputFastDrop     Input = "fast_drop"
	InputSoftDrop     Input = "soft_drop"
	InputRotate       Input = "rotate"
	InputRotateRevert Input = "rotate_revert"
	InputHold         Input = "hold"
	InputFall         Input = "fall"
)

var inputActions = map[Input]Action{
	InputLeft:         MoveAction(DirLeft),
	InputRight:        MoveAction(DirRight),
	InputFastDrop:     MoveAction(DirHardDrop),
	InputSoftDrop:     MoveAction(DirDown),
	InputRotate:       RotateAction(false),
	InputRotateRevert: RotateAction(true),
	InputHold:         HoldAction(),
	InputFall:         FallAction(),
}

func ActionFor(in Input) (Action, bool) {
	a, ok := inputActions[in]
	return a, ok
}
