package engine

// Offset is a wall-kick translation, x to the right and y upward.
type Offset struct {
	DX int
	DY int
}

// Clockwise kick tests indexed by the rotation state being entered:
// index 1 is 0->R, 2 is R->2, 3 is 2->L, 0 is L->0.
var jlstzKicks = [4][5]Offset{
	0: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	1: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	2: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	3: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
}

var iKicks = [4][5]Offset{
	0: {{0, 0}, {1, 0}, {-2, 0}, {1, -2}, {-2, 1}},
	1: {{0, 0}, {-2, 0}, {1, 0}, {-2, -1}, {1, 2}},
	2: {{0, 0}, {-1, 0}, {2, 0}, {-1, 2}, {2, -1}},
	3: {{0, 0}, {2, 0}, {-1, 0}, {2, 1}, {-1, -2}},
}

var oKicks = [4][5]Offset{}

// kickTests returns the five offsets to try when leaving rotation state from.
// A counter-clockwise turn out of state s undoes the clockwise turn into s, so it
// reuses that row with every offset negated.
func kickTests(t PieceType, from uint8, reverse bool) [5]Offset {
	table := &jlstzKicks
	switch t {
	case PieceI:
		table = &iKicks
	case PieceO:
		table = &oKicks
	}

	if !reverse {
		return table[(from+1)%4]
	}
	tests := table[from%4]
	for i := range tests {
		tests[i] = Offset{DX: -tests[i].DX, DY: -tests[i].DY}
	}
	return tests
}
