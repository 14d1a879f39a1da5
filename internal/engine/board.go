package engine

const (
	Width         = 10
	Height        = 32
	VisibleHeight = 22
	SpawnRow      = 22
	QueueLength   = 6
)

// Cell holds the PieceType that locked into it, CellEmpty, or CellGarbage.
type Cell uint8

const (
	CellEmpty   Cell = 0
	CellGarbage Cell = 8
)

func PieceCell(t PieceType) Cell {
	return Cell(t)
}

func (c Cell) Filled() bool {
	return c != CellEmpty
}

type Row [Width]Cell

func (r *Row) full() bool {
	for _, c := range r {
		if !c.Filled() {
			return false
		}
	}
	return true
}

// Grid is indexed [y][x] with row 0 at the bottom.
type Grid [Height]Row

type Board struct {
	Name   string      `json:"name"`
	Grid   Grid        `json:"grid"`
	Active *Piece      `json:"active,omitempty"`
	Held   *PieceType  `json:"held,omitempty"`
	Queue  []PieceType `json:"queue"`
	Bag    Bag         `json:"bag"`
}

// NewBoard returns an empty board with a full lookahead queue and no active piece.
// The first NewPiece action brings a piece into play.
func NewBoard(name string, r Rand) *Board {
	b := &Board{
		Name:  name,
		Bag:   NewBag(),
		Queue: make([]PieceType, 0, QueueLength),
	}
	for range QueueLength {
		b.Queue = append(b.Queue, b.Bag.Draw(r))
	}
	return b
}

func (b *Board) Clone() *Board {
	c := *b
	if b.Active != nil {
		active := *b.Active
		c.Active = &active
	}
	if b.Held != nil {
		held := *b.Held
		c.Held = &held
	}
	c.Queue = append([]PieceType(nil), b.Queue...)
	c.Bag.Remaining = append([]PieceType(nil), b.Bag.Remaining...)
	return &c
}

// Lock writes the active piece into the grid, clears the active slot and removes
// full rows. It returns the pre-clear indices of the removed rows, lowest first.
func (b *Board) Lock() []int {
	if b.Active != nil {
		cell := PieceCell(b.Active.Type)
		for _, c := range b.Active.Cells() {
			if c.X >= 0 && c.X < Width && c.Y >= 0 && c.Y < Height {
				b.Grid[c.Y][c.X] = cell
			}
		}
		b.Active = nil
	}
	return b.clearLines()
}

func (b *Board) clearLines() []int {
	var cleared []int
	var next Grid
	kept := 0
	for y := range b.Grid {
		if b.Grid[y].full() {
			cleared = append(cleared, y)
			continue
		}
		next[kept] = b.Grid[y]
		kept++
	}
	b.Grid = next
	return cleared
}

// AddGarbage pushes every row up by one and inserts a garbage row at the bottom
// with a single gap at column hole. The active piece is carried up with the
// stack. It reports false and leaves the board untouched if the piece would be
// pushed out of the grid.
func (b *Board) AddGarbage(hole int) bool {
	if hole < 0 || hole >= Width {
		return false
	}
	if b.Active != nil {
		raised := *b.Active
		raised.Y++
		for _, c := range raised.Cells() {
			if c.Y >= Height {
				return false
			}
		}
	}

	copy(b.Grid[1:], b.Grid[:Height-1])
	var row Row
	for x := range row {
		row[x] = CellGarbage
	}
	row[hole] = CellEmpty
	b.Grid[0] = row

	if b.Active != nil {
		b.Active.Y++
	}
	return true
}

// Hold stashes the active piece. With an empty slot the board is left waiting
// for the next spawn; otherwise the held type comes back at the spawn position.
func (b *Board) Hold() error {
	if b.Active == nil {
		return ErrNoActivePiece
	}
	current := b.Active.Type

	if b.Held == nil {
		b.Held = &current
		b.Active = nil
		return nil
	}

	swapped, err := NewPiece(*b.Held)
	if err != nil {
		return ErrUnsupportedAction
	}
	if !IsValid(swapped, &b.Grid) {
		return ErrBlocked
	}
	b.Active = &swapped
	b.Held = &current
	return nil
}

// SpawnNext draws the next type from the board's own bag and applies it as a
// NewPiece action. The drawn type is returned so callers can broadcast it.
func (b *Board) SpawnNext(r Rand) (PieceType, error) {
	next := b.Bag.Draw(r)
	_, err := Apply(b, NewPieceAction(next))
	return next, err
}

// spawn promotes the head of the queue to the active piece and appends next.
func (b *Board) spawn(next PieceType) error {
	if !next.Valid() {
		return ErrUnsupportedAction
	}

	t := next
	if len(b.Queue) > 0 {
		t = b.Queue[0]
		b.Queue = append(b.Queue[1:], next)
	}

	p, err := NewPiece(t)
	if err != nil {
		return ErrUnsupportedAction
	}
	if !IsValid(p, &b.Grid) {
		b.Active = nil
		return ErrBlockOut
	}
	b.Active = &p
	return nil
}

func (b *Board) lockActive() Result {
	p := *b.Active
	immobile := !CanMove(p, &b.Grid, DirLeft) &&
		!CanMove(p, &b.Grid, DirRight) &&
		!CanMove(p, &b.Grid, DirUp)
	return Result{
		Locked:   true,
		Cleared:  b.Lock(),
		Immobile: immobile,
	}
}
