package exam

import (
	"math/rand"

	"github.com/mocksh/mocksh-backend/internal/bank"
)

// shuffleQuestions returns a uniformly random permutation of qs. The input
// slice is left untouched.
//
// Fisher–Yates: walk i from the last element down to 1, swapping position i
// with a uniformly chosen j in [0, i]. Every permutation is equally likely
// and the whole pass is linear. A sort-by-random-key shuffle would not give
// a uniform distribution, which is why the swap loop is spelled out here.
func shuffleQuestions(qs []bank.Question, rng *rand.Rand) []bank.Question {
	out := make([]bank.Question, len(qs))
	copy(out, qs)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
