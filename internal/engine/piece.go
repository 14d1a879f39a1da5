package engine

import (
	"errors"
	"fmt"
)

var ErrInvalidPieceType = errors.New("invalid piece type")

type PieceType uint8

// Zero is deliberately not a piece: an empty hold slot is a nil *PieceType and an
// empty grid cell is CellEmpty.
const (
	PieceI PieceType = iota + 1
	PieceJ
	PieceL
	PieceO
	PieceS
	PieceT
	PieceZ
)

var AllPieces = [...]PieceType{PieceI, PieceJ, PieceL, PieceO, PieceS, PieceT, PieceZ}

func (t PieceType) Valid() bool {
	return t >= PieceI && t <= PieceZ
}

func (t PieceType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("PieceType(%d)", uint8(t))
	}
	return "IJLOSTZ"[t-1 : t]
}

type Direction string

const (
	DirLeft     Direction = "left"
	DirRight    Direction = "right"
	DirDown     Direction = "down"
	DirUp       Direction = "up"
	DirHardDrop Direction = "hard_drop"
)

type Point struct {
	X int
	Y int
}

// Piece is a tetrimino on the grid. (X, Y) is the top-left corner of its bounding
// box; rows grow upward, so shape row r sits at grid row Y-r.
type Piece struct {
	Type     PieceType `json:"type"`
	Rotation uint8     `json:"rotation"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
}

// NewPiece returns a piece of type t at the spawn position, horizontally centred
// with the top of its box just above the visible area.
func NewPiece(t PieceType) (Piece, error) {
	if !t.Valid() {
		return Piece{}, fmt.Errorf("%w: %d", ErrInvalidPieceType, t)
	}
	size := len(baseShapes[t])
	return Piece{Type: t, X: (Width - size) / 2, Y: SpawnRow}, nil
}

func (p *Piece) shift(d Direction) {
	switch d {
	case DirLeft:
		p.X--
	case DirRight:
		p.X++
	case DirDown:
		p.Y--
	case DirUp:
		p.Y++
	}
}

// Cells returns the grid coordinates covered by the piece.
func (p Piece) Cells() []Point {
	shape := ShapeCells(p)
	cells := make([]Point, 0, 4)
	for r, row := range shape {
		for c, filled := range row {
			if filled {
				cells = append(cells, Point{X: p.X + c, Y: p.Y - r})
			}
		}
	}
	return cells
}

// IsValid reports whether every cell of p lies inside the grid over an empty cell.
func IsValid(p Piece, g *Grid) bool {
	if !p.Type.Valid() {
		return false
	}
	for _, c := range p.Cells() {
		if c.X < 0 || c.X >= Width || c.Y < 0 || c.Y >= Height {
			return false
		}
		if g[c.Y][c.X].Filled() {
			return false
		}
	}
	return true
}

func CanMove(p Piece, g *Grid, d Direction) bool {
	p.shift(d)
	return IsValid(p, g)
}

// Rotate turns p a quarter clockwise (counter-clockwise when reverse is set),
// trying the SRS kick offsets in order. p is left untouched when every offset fails.
func Rotate(p *Piece, g *Grid, reverse bool) bool {
	target := (p.Rotation + 1) % 4
	if reverse {
		target = (p.Rotation + 3) % 4
	}

	for _, k := range kickTests(p.Type, p.Rotation, reverse) {
		candidate := *p
		candidate.Rotation = target
		candidate.X += k.DX
		candidate.Y += k.DY
		if IsValid(candidate, g) {
			*p = candidate
			return true
		}
	}
	return false
}
