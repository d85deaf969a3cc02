package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Question is a single entry of the static question bank. The bank file is
// versioned alongside the deployment; questions are never mutated or
// re-fetched after startup.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"question"`
	// Code is an optional verbatim snippet rendered monospaced by clients.
	Code           string   `json:"code,omitempty"`
	Options        []string `json:"options"`
	MultiSelect    bool     `json:"multiSelect,omitempty"`
	CorrectIndex   int      `json:"correctIndex"`
	CorrectIndices []int    `json:"correctIndices,omitempty"`
}

// Bank holds the immutable ordered question sequence loaded at process start.
type Bank struct {
	questions []Question
}

// Validation errors returned by Load.
var (
	ErrNoQuestions   = errors.New("question bank contains no questions")
	ErrDuplicateID   = errors.New("duplicate question id")
	ErrTooFewOptions = errors.New("question needs at least two options")
	ErrIndexRange    = errors.New("correct answer index out of range")
)

// Load reads and validates the question bank from a JSON file.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank file: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse bank file: %w", err)
	}

	if err := validate(questions); err != nil {
		return nil, err
	}

	return &Bank{questions: questions}, nil
}

// Size returns the number of questions in the bank.
func (b *Bank) Size() int {
	return len(b.questions)
}

// Questions returns a copy of the bank's question sequence. Callers get
// their own slice so session sampling can never disturb the bank order.
func (b *Bank) Questions() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Get looks up a question by id.
func (b *Bank) Get(id string) (Question, bool) {
	for _, q := range b.questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func validate(questions []Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return fmt.Errorf("question %d: missing id", i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %q: %w", q.ID, ErrDuplicateID)
		}
		seen[q.ID] = struct{}{}

		if len(q.Options) < 2 {
			return fmt.Errorf("question %q: %w", q.ID, ErrTooFewOptions)
		}

		// Exactly one of CorrectIndex/CorrectIndices is active, selected by
		// MultiSelect. Indices must address existing options.
		if q.MultiSelect {
			if len(q.CorrectIndices) == 0 {
				return fmt.Errorf("question %q: multi-select without correct indices", q.ID)
			}
			for _, idx := range q.CorrectIndices {
				if idx < 0 || idx >= len(q.Options) {
					return fmt.Errorf("question %q: index %d: %w", q.ID, idx, ErrIndexRange)
				}
			}
		} else {
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				return fmt.Errorf("question %q: index %d: %w", q.ID, q.CorrectIndex, ErrIndexRange)
			}
		}
	}
	return nil
}
