package exam

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/mocksh/mocksh-backend/internal/bank"
)

// TestShuffleUniform runs a chi-square test over all 24 permutations of a
// four-question bank. With 10k trials the expected count per permutation is
// ~417; the 23-degree critical value at p=0.001 is 49.73, so a biased shuffle
// (e.g. sort by random key) fails this reliably while a correct Fisher-Yates
// passes for any fixed seed.
func TestShuffleUniform(t *testing.T) {
	qs := []bank.Question{
		{ID: "a", Options: []string{"x", "y"}},
		{ID: "b", Options: []string{"x", "y"}},
		{ID: "c", Options: []string{"x", "y"}},
		{ID: "d", Options: []string{"x", "y"}},
	}

	const trials = 10000
	rng := rand.New(rand.NewSource(99))
	counts := make(map[string]int, 24)
	for i := 0; i < trials; i++ {
		out := shuffleQuestions(qs, rng)
		key := out[0].ID + out[1].ID + out[2].ID + out[3].ID
		counts[key]++
	}

	if len(counts) != 24 {
		t.Fatalf("observed %d distinct permutations, want 24", len(counts))
	}

	expected := float64(trials) / 24
	chi2 := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	if chi2 > 49.73 {
		t.Fatalf("chi-square = %.2f exceeds 49.73, shuffle is biased", chi2)
	}
}

func TestShufflePreservesInput(t *testing.T) {
	qs := make([]bank.Question, 10)
	for i := range qs {
		qs[i] = bank.Question{ID: fmt.Sprintf("q%d", i)}
	}
	rng := rand.New(rand.NewSource(5))

	out := shuffleQuestions(qs, rng)

	if len(out) != len(qs) {
		t.Fatalf("output length %d, want %d", len(out), len(qs))
	}
	for i := range qs {
		if qs[i].ID != fmt.Sprintf("q%d", i) {
			t.Fatal("input slice was mutated")
		}
	}

	seen := make(map[string]bool, len(out))
	for _, q := range out {
		if seen[q.ID] {
			t.Fatalf("duplicate %s in output", q.ID)
		}
		seen[q.ID] = true
	}
}
