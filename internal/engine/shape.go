package engine

// Spawn orientations (SRS rotation state 0), top row first.
var baseShapes = [...][][]bool{
	PieceI: {
		{false, false, false, false},
		{true, true, true, true},
		{false, false, false, false},
		{false, false, false, false},
	},
	PieceJ: {
		{true, false, false},
		{true, true, true},
		{false, false, false},
	},
	PieceL: {
		{false, false, true},
		{true, true, true},
		{false, false, false},
	},
	PieceO: {
		{true, true},
		{true, true},
	},
	PieceS: {
		{false, true, true},
		{true, true, false},
		{false, false, false},
	},
	PieceT: {
		{false, true, false},
		{true, true, true},
		{false, false, false},
	},
	PieceZ: {
		{true, true, false},
		{false, true, true},
		{false, false, false},
	},
}

// ShapeCells derives the occupancy bitmap of p from its base shape, turning it a
// quarter clockwise once per rotation step. The result is a fresh copy.
func ShapeCells(p Piece) [][]bool {
	if !p.Type.Valid() {
		return nil
	}
	shape := cloneShape(baseShapes[p.Type])
	for i := uint8(0); i < p.Rotation%4; i++ {
		shape = rotateClockwise(shape)
	}
	return shape
}

// rotateClockwise transposes the square matrix and reverses every row.
func rotateClockwise(shape [][]bool) [][]bool {
	n := len(shape)
	out := make([][]bool, n)
	for r := range out {
		out[r] = make([]bool, n)
		for c := range out[r] {
			out[r][c] = shape[c][r]
		}
	}
	for _, row := range out {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
	return out
}

func cloneShape(shape [][]bool) [][]bool {
	out := make([][]bool, len(shape))
	for i, row := range shape {
		out[i] = append([]bool(nil), row...)
	}
	return out
}
