package pool

// GarbageFor returns how many garbage lines a lock that cleared the given number
// of rows sends. Clears by a piece that could not move left, right or up count
// double.
func GarbageFor(cleared int, immobile bool) int {
	if cleared <= 0 {
		return 0
	}
	if immobile {
		return 2 * cleared
	}
	switch cleared {
	case 2:
		return 1
	case 3:
		return 2
	case 4:
		return 4
	}
	return 0
}
