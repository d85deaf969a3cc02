package exam

import (
	"github.com/mocksh/mocksh-backend/internal/bank"
)

// IsCorrect is the single scoring rule, used both when computing the final
// score and when filtering review rows. Keeping one implementation guarantees
// the live score and the review counts can never diverge.
//
//   - Single-select: correct iff exactly one index is selected and it equals
//     CorrectIndex.
//   - Multi-select: correct iff the selection equals CorrectIndices as a set.
//     No partial credit; order is irrelevant.
//   - No selection: always incorrect.
func IsCorrect(q bank.Question, selected []int) bool {
	if q.MultiSelect {
		if len(selected) != len(q.CorrectIndices) {
			return false
		}
		want := make(map[int]struct{}, len(q.CorrectIndices))
		for _, idx := range q.CorrectIndices {
			want[idx] = struct{}{}
		}
		for _, idx := range selected {
			if _, ok := want[idx]; !ok {
				return false
			}
		}
		return true
	}
	return len(selected) == 1 && selected[0] == q.CorrectIndex
}

// Filter selects which review rows to return.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterCorrect Filter = "correct"
	FilterWrong   Filter = "wrong"
)

// ReviewEntry is one row of the post-submission review.
type ReviewEntry struct {
	// Number is the 1-based position within the attempt, stable across
	// filters so a filtered row keeps its original numbering.
	Number   int           `json:"number"`
	Question bank.Question `json:"question"`
	Selected []int         `json:"selected,omitempty"`
	Answered bool          `json:"answered"`
	Correct  bool          `json:"correct"`
}

// Review produces a filtered view over the attempt's questions by re-applying
// the scoring rule per question. Nothing is cached: the wrong and correct
// views always partition the all view. Only valid once submitted.
func (s *Session) Review(filter Filter) ([]ReviewEntry, error) {
	if s.state != StateSubmitted {
		return nil, ErrNotSubmitted
	}

	entries := make([]ReviewEntry, 0, len(s.questions))
	for i, q := range s.questions {
		selected := append([]int(nil), s.answers[q.ID]...)
		correct := IsCorrect(q, selected)

		switch filter {
		case FilterCorrect:
			if !correct {
				continue
			}
		case FilterWrong:
			if correct {
				continue
			}
		}

		entries = append(entries, ReviewEntry{
			Number:   i + 1,
			Question: q,
			Selected: selected,
			Answered: len(selected) > 0,
			Correct:  correct,
		})
	}
	return entries, nil
}
