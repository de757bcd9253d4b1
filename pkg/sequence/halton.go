package sequence

import "math"

// oneMinusEpsilon is the largest float64 below 1
var oneMinusEpsilon = math.Nextafter(1, 0)

// Sequence is a deterministic low-discrepancy sequence
type Sequence interface {
	// Sample returns the value of the given dimension at the given index, in [0,1)
	Sample(dimension, index uint32) float64
}

// Halton is the Faure-permuted Halton sequence. Dimension d uses the d-th prime as its base.
type Halton struct{}

// NewHalton returns a Halton sequence, building the permutation tables on first use
func NewHalton() Halton {
	initFaure()
	return Halton{}
}

// Sample implements Sequence
func (Halton) Sample(dimension, index uint32) float64 {
	initFaure()
	base := primes[dimension%MaxDimensions]
	return permutedRadicalInverse(index, base, faurePerms[base])
}

func permutedRadicalInverse(index, base uint32, perm []uint16) float64 {
	invBase := 1.0 / float64(base)
	scale := invBase
	var result float64
	for n := index; n > 0; n /= base {
		result += float64(perm[n%base]) * scale
		scale *= invBase
	}
	return math.Min(result, oneMinusEpsilon)
}

// Hammersley replaces the first Halton dimension with index/Count. It is only
// well distributed when exactly Count indices are drawn.
type Hammersley struct {
	Count uint32
}

// NewHammersley returns a Hammersley point set of the given size
func NewHammersley(count uint32) Hammersley {
	initFaure()
	if count == 0 {
		count = 1
	}
	return Hammersley{Count: count}
}

// Sample implements Sequence
func (h Hammersley) Sample(dimension, index uint32) float64 {
	if dimension == 0 {
		return float64(index%h.Count) / float64(h.Count)
	}
	return Halton{}.Sample(dimension-1, index)
}
