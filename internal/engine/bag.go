package engine

// Rand is the randomness a bag needs; *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Bag draws piece types without replacement and refills with a full set of seven
// once it runs dry.
type Bag struct {
	Remaining []PieceType `json:"remaining"`
}

func NewBag() Bag {
	return Bag{Remaining: fullSet()}
}

func fullSet() []PieceType {
	set := make([]PieceType, len(AllPieces))
	copy(set, AllPieces[:])
	return set
}

func (b *Bag) Draw(r Rand) PieceType {
	if len(b.Remaining) == 0 {
		b.Remaining = fullSet()
	}
	i := r.IntN(len(b.Remaining))
	t := b.Remaining[i]
	last := len(b.Remaining) - 1
	b.Remaining[i] = b.Remaining[last]
	b.Remaining = b.Remaining[:last]
	return t
}

// Take removes t from the bag as if it had been drawn, refilling first when the
// bag is empty. Replicas use it to follow draws made elsewhere.
func (b *Bag) Take(t PieceType) bool {
	if len(b.Remaining) == 0 {
		b.Remaining = fullSet()
	}
	for i, r := range b.Remaining {
		if r == t {
			b.Remaining = append(b.Remaining[:i], b.Remaining[i+1:]...)
			return true
		}
	}
	return false
}
