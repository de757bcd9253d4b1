package sequence

import "sync"

// MaxDimensions is the number of prime bases with precomputed permutations.
// Dimensions beyond it wrap around.
const MaxDimensions = 256

var (
	faureOnce  sync.Once
	primes     []uint32
	faurePerms [][]uint16
)

func initFaure() {
	faureOnce.Do(func() {
		primes = firstPrimes(MaxDimensions)
		faurePerms = faurePermutations(int(primes[len(primes)-1]))
	})
}

// firstPrimes returns the first n primes
func firstPrimes(n int) []uint32 {
	out := make([]uint32, 0, n)
	for candidate := uint32(2); len(out) < n; candidate++ {
		prime := true
		for _, p := range out {
			if p*p > candidate {
				break
			}
			if candidate%p == 0 {
				prime = false
				break
			}
		}
		if prime {
			out = append(out, candidate)
		}
	}
	return out
}

// faurePermutations builds Faure's digit permutations for every base up to
// maxBase. perms[b] is a permutation of 0..b-1 that fixes 0.
func faurePermutations(maxBase int) [][]uint16 {
	perms := make([][]uint16, maxBase+1)
	perms[1] = []uint16{0}
	perms[2] = []uint16{0, 1}

	for b := 3; b <= maxBase; b++ {
		perm := make([]uint16, b)
		if b%2 == 0 {
			half := perms[b/2]
			for i, v := range half {
				perm[i] = 2 * v
				perm[len(half)+i] = 2*v + 1
			}
		} else {
			prev := perms[b-1]
			k := uint16((b - 1) / 2)
			bump := func(v uint16) uint16 {
				if v >= k {
					return v + 1
				}
				return v
			}
			for i := 0; i < int(k); i++ {
				perm[i] = bump(prev[i])
			}
			perm[k] = k
			for i := int(k) + 1; i < b; i++ {
				perm[i] = bump(prev[i-1])
			}
		}
		perms[b] = perm
	}

	return perms
}
