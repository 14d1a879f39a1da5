package engine

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard() *Board {
	return NewBoard("test", rand.New(rand.NewPCG(1, 2)))
}

func fillRow(g *Grid, y int, except ...int) {
	for x := range Width {
		g[y][x] = CellGarbage
	}
	for _, x := range except {
		g[y][x] = CellEmpty
	}
}

func place(b *Board, t PieceType, rotation uint8, x, y int) {
	b.Active = &Piece{Type: t, Rotation: rotation, X: x, Y: y}
}

func TestApplyMove(t *testing.T) {
	cases := []struct {
		name    string
		start   Piece
		dir     Direction
		want    Piece
		wantErr error
	}{
		{
			name:  "left in open space",
			start: Piece{Type: PieceT, X: 3, Y: 10},
			dir:   DirLeft,
			want:  Piece{Type: PieceT, X: 2, Y: 10},
		},
		{
			name:  "right in open space",
			start: Piece{Type: PieceT, X: 3, Y: 10},
			dir:   DirRight,
			want:  Piece{Type: PieceT, X: 4, Y: 10},
		},
		{
			name:  "soft drop",
			start: Piece{Type: PieceO, X: 4, Y: 10},
			dir:   DirDown,
			want:  Piece{Type: PieceO, X: 4, Y: 9},
		},
		{
			name:    "left wall",
			start:   Piece{Type: PieceT, X: 0, Y: 10},
			dir:     DirLeft,
			want:    Piece{Type: PieceT, X: 0, Y: 10},
			wantErr: ErrBlocked,
		},
		{
			name:    "right wall",
			start:   Piece{Type: PieceO, X: 8, Y: 10},
			dir:     DirRight,
			want:    Piece{Type: PieceO, X: 8, Y: 10},
			wantErr: ErrBlocked,
		},
		{
			name:    "floor",
			start:   Piece{Type: PieceO, X: 4, Y: 1},
			dir:     DirDown,
			want:    Piece{Type: PieceO, X: 4, Y: 1},
			wantErr: ErrBlocked,
		},
		{
			name:    "up is not a player move",
			start:   Piece{Type: PieceO, X: 4, Y: 10},
			dir:     DirUp,
			want:    Piece{Type: PieceO, X: 4, Y: 10},
			wantErr: ErrUnsupportedAction,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBoard()
			start := tc.start
			b.Active = &start

			res, err := Apply(b, MoveAction(tc.dir))
			require.ErrorIs(t, err, tc.wantErr)
			assert.False(t, res.Locked)
			require.NotNil(t, b.Active)
			assert.Equal(t, tc.want, *b.Active)
		})
	}
}

func TestBlockedMoveResetsTimer(t *testing.T) {
	b := newTestBoard()
	place(b, PieceT, 0, 0, 10)
	before := b.Clone()

	_, err := Apply(b, MoveAction(DirLeft))
	require.ErrorIs(t, err, ErrBlocked)
	assert.True(t, ResetsTimer(err))
	assert.Equal(t, before, b)
}

func TestActionWithoutActivePiece(t *testing.T) {
	cases := []struct {
		name       string
		action     Action
		wantErr    error
		resets     bool
		needsPiece bool
	}{
		{name: "move", action: MoveAction(DirLeft), wantErr: ErrNoActivePiece},
		{name: "rotate", action: RotateAction(false), wantErr: ErrNoActivePiece},
		{name: "hold", action: HoldAction(), wantErr: ErrNoActivePiece},
		{name: "lock", action: LockAction(), wantErr: ErrNoActivePiece},
		{name: "fall", action: FallAction(), wantErr: ErrAwaitingPiece, resets: true, needsPiece: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBoard()
			before := b.Clone()

			res, err := Apply(b, tc.action)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.resets, ResetsTimer(err))
			assert.Equal(t, tc.needsPiece, NeedsPiece(res, err))
			assert.Equal(t, before, b)
		})
	}
}

func TestHardDropLocksAndClears(t *testing.T) {
	b := newTestBoard()
	fillRow(&b.Grid, 0, 3, 4, 5, 6)
	b.Grid[1][0] = PieceCell(PieceS)
	p, err := NewPiece(PieceI)
	require.NoError(t, err)
	b.Active = &p

	res, err := Apply(b, MoveAction(DirHardDrop))
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.Equal(t, []int{0}, res.Cleared)
	assert.False(t, res.Immobile)
	assert.True(t, NeedsPiece(res, err))
	assert.Nil(t, b.Active)

	// the S cell that sat on row 1 falls into row 0
	assert.Equal(t, PieceCell(PieceS), b.Grid[0][0])
	for x := 1; x < Width; x++ {
		assert.Equal(t, CellEmpty, b.Grid[0][x])
	}
}

func TestHardDropEqualsStepDownThenLock(t *testing.T) {
	terrains := []struct {
		name  string
		build func(g *Grid)
	}{
		{name: "empty", build: func(g *Grid) {}},
		{name: "stairs", build: func(g *Grid) {
			for x := range Width {
				for y := range x / 2 {
					g[y][x] = CellGarbage
				}
			}
		}},
		{name: "rows with holes", build: func(g *Grid) {
			fillRow(g, 0, 4)
			fillRow(g, 1, 4)
			fillRow(g, 2, 0, 1)
		}},
		{name: "overhang", build: func(g *Grid) {
			fillRow(g, 0, 2, 3)
			for x := 1; x < 7; x++ {
				g[4][x] = CellGarbage
			}
		}},
		{name: "well", build: func(g *Grid) {
			for y := range 10 {
				fillRow(g, y, Width-1)
			}
		}},
	}

	for _, tr := range terrains {
		t.Run(tr.name, func(t *testing.T) {
			checked := 0
			for _, pt := range AllPieces {
				for rot := range uint8(4) {
					for x := -2; x < Width; x++ {
						base := newTestBoard()
						tr.build(&base.Grid)
						place(base, pt, rot, x, SpawnRow-4)
						if !IsValid(*base.Active, &base.Grid) {
							continue
						}

						dropped, stepped := base.Clone(), base.Clone()
						dropRes, err := Apply(dropped, MoveAction(DirHardDrop))
						require.NoError(t, err)

						for {
							_, err := Apply(stepped, MoveAction(DirDown))
							if errors.Is(err, ErrBlocked) {
								break
							}
							require.NoError(t, err)
						}
						stepRes, err := Apply(stepped, LockAction())
						require.NoError(t, err)

						assert.Equal(t, dropped, stepped, "%s rotation %d x %d", pt, rot, x)
						assert.Equal(t, dropRes, stepRes, "%s rotation %d x %d", pt, rot, x)
						checked++
					}
				}
			}
			assert.NotZero(t, checked)
		})
	}
}

func TestLockReportsImmobilePiece(t *testing.T) {
	b := newTestBoard()
	fillRow(&b.Grid, 0, 4)
	fillRow(&b.Grid, 1, 3, 4, 5)
	b.Grid[2][4] = CellGarbage
	// T pointing down, tucked under the overhang
	place(b, PieceT, 2, 3, 2)
	require.True(t, IsValid(*b.Active, &b.Grid))

	res, err := Apply(b, LockAction())
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.True(t, res.Immobile)
	assert.Equal(t, []int{0, 1}, res.Cleared)
	assert.Equal(t, CellGarbage, b.Grid[0][4])
}

func TestFall(t *testing.T) {
	b := newTestBoard()
	place(b, PieceO, 0, 4, 2)

	res, err := Apply(b, FallAction())
	require.NoError(t, err)
	assert.False(t, res.Locked)
	assert.Equal(t, 1, b.Active.Y)

	res, err = Apply(b, FallAction())
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.Empty(t, res.Cleared)
	assert.True(t, NeedsPiece(res, err))
	assert.Nil(t, b.Active)
	assert.Equal(t, PieceCell(PieceO), b.Grid[0][4])
	assert.Equal(t, PieceCell(PieceO), b.Grid[1][5])
}

func TestLineClearKeepsRowOrder(t *testing.T) {
	b := newTestBoard()
	fillRow(&b.Grid, 0)
	b.Grid[1][1] = PieceCell(PieceJ)
	fillRow(&b.Grid, 2)
	b.Grid[3][7] = PieceCell(PieceL)

	cleared := b.Lock()
	assert.Equal(t, []int{0, 2}, cleared)
	assert.Equal(t, PieceCell(PieceJ), b.Grid[0][1])
	assert.Equal(t, PieceCell(PieceL), b.Grid[1][7])
	assert.Equal(t, Row{}, b.Grid[2])
	assert.Equal(t, Row{}, b.Grid[Height-1])
}

func TestNewPieceAdvancesQueue(t *testing.T) {
	b := newTestBoard()
	queue := append([]PieceType(nil), b.Queue...)

	_, err := Apply(b, NewPieceAction(PieceZ))
	require.NoError(t, err)
	require.NotNil(t, b.Active)
	assert.Equal(t, queue[0], b.Active.Type)
	assert.Equal(t, append(queue[1:], PieceZ), b.Queue)
	assert.Len(t, b.Queue, QueueLength)
}

func TestNewPieceBlockOut(t *testing.T) {
	b := newTestBoard()
	for y := VisibleHeight - 2; y < Height; y++ {
		fillRow(&b.Grid, y, 9)
	}
	queue := append([]PieceType(nil), b.Queue...)

	res, err := Apply(b, NewPieceAction(PieceT))
	require.ErrorIs(t, err, ErrBlockOut)
	assert.False(t, ResetsTimer(err))
	assert.False(t, NeedsPiece(res, err))
	assert.Nil(t, b.Active)
	assert.Equal(t, append(queue[1:], PieceT), b.Queue)
}

func TestHold(t *testing.T) {
	b := newTestBoard()
	place(b, PieceT, 1, 2, 7)

	_, err := Apply(b, HoldAction())
	require.NoError(t, err)
	assert.Nil(t, b.Active)
	require.NotNil(t, b.Held)
	assert.Equal(t, PieceT, *b.Held)

	place(b, PieceL, 0, 6, 4)
	_, err = Apply(b, HoldAction())
	require.NoError(t, err)
	want, _ := NewPiece(PieceT)
	assert.Equal(t, &want, b.Active)
	assert.Equal(t, PieceL, *b.Held)
}

func TestHoldSwapBlocked(t *testing.T) {
	b := newTestBoard()
	held := PieceO
	b.Held = &held
	for y := SpawnRow - 1; y < Height; y++ {
		fillRow(&b.Grid, y, 0)
	}
	place(b, PieceI, 0, 3, 5)
	before := b.Clone()

	_, err := Apply(b, HoldAction())
	require.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, before, b)
}

func TestGarbage(t *testing.T) {
	b := newTestBoard()
	b.Grid[0][2] = PieceCell(PieceJ)
	place(b, PieceO, 0, 4, 5)

	_, err := Apply(b, GarbageAction(2, 7))
	require.NoError(t, err)

	for y := range 2 {
		for x := range Width {
			if x == 7 {
				assert.Equal(t, CellEmpty, b.Grid[y][x])
			} else {
				assert.Equal(t, CellGarbage, b.Grid[y][x])
			}
		}
	}
	assert.Equal(t, PieceCell(PieceJ), b.Grid[2][2])
	assert.Equal(t, 7, b.Active.Y)
}

func TestGarbageOverflowLeavesBoard(t *testing.T) {
	b := newTestBoard()
	place(b, PieceO, 0, 4, Height-2)
	before := b.Clone()

	_, err := Apply(b, GarbageAction(2, 0))
	require.ErrorIs(t, err, ErrGarbageOverflow)
	assert.False(t, ResetsTimer(err))
	assert.Equal(t, before, b)
}

func TestGarbageRejectsBadHole(t *testing.T) {
	b := newTestBoard()
	_, err := Apply(b, GarbageAction(1, Width))
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	_, err = Apply(b, GarbageAction(0, 3))
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}

func TestSpawnNextDrawsFromBag(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	b := NewBoard("p", r)
	first := b.Queue[0]

	next, err := b.SpawnNext(r)
	require.NoError(t, err)
	assert.Equal(t, first, b.Active.Type)
	assert.Equal(t, next, b.Queue[QueueLength-1])
	assert.Empty(t, b.Bag.Remaining)
}

func TestCloneIsIndependent(t *testing.T) {
	b := newTestBoard()
	place(b, PieceT, 0, 3, 10)
	held := PieceI
	b.Held = &held

	head := b.Queue[0]

	c := b.Clone()
	c.Active.X = 0
	*c.Held = PieceZ
	c.Queue[0] = head%PieceZ + 1
	c.Grid[0][0] = CellGarbage

	assert.Equal(t, 3, b.Active.X)
	assert.Equal(t, PieceI, *b.Held)
	assert.Equal(t, head, b.Queue[0])
	assert.Equal(t, CellEmpty, b.Grid[0][0])
}

func TestUnknownActionKind(t *testing.T) {
	_, err := Apply(newTestBoard(), Action{Kind: "teleport"})
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}
