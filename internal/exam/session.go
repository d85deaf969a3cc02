package exam

import (
	"errors"
	"math/rand"
	"time"

	"github.com/mocksh/mocksh-backend/internal/bank"
)

// State enumerates the session lifecycle.
//
//	NotStarted --Start--> InProgress --Submit|timeout--> Submitted --Reset--> NotStarted
//
// No transition skips a state. Submitted is terminal until an explicit Reset
// or a fresh Start (which resamples, never replays).
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateSubmitted  State = "SUBMITTED"
)

// Domain errors.
var (
	ErrEmptyBank            = errors.New("question bank is empty")
	ErrInvalidQuestionCount = errors.New("question count must be positive")
	ErrAlreadyInProgress    = errors.New("a test is already in progress")
	ErrNotInProgress        = errors.New("no test in progress")
	ErrNotSubmitted         = errors.New("test has not been submitted")
	ErrUnknownQuestion      = errors.New("question is not part of this test")
	ErrOptionOutOfRange     = errors.New("option index out of range")
	ErrSelectModeMismatch   = errors.New("answer shape does not match question type")
)

// Result is the immutable outcome of a submitted session.
type Result struct {
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Session is one timed attempt. It owns all attempt state and is mutated only
// through its methods. A Session is NOT safe for concurrent use; the owner
// must serialise access (sessions of different users are fully independent).
type Session struct {
	state     State
	questions []bank.Question
	// answers maps question id to selected option indices. Single-select
	// questions hold exactly one index; multi-select questions hold the
	// toggled set in selection order.
	answers   map[string][]int
	current   int
	remaining int
	startedAt time.Time
	result    *Result

	now func() time.Time
	rng *rand.Rand
}

// Option customises a Session, used by tests to pin the clock or RNG.
type Option func(*Session)

// WithClock overrides the wall-clock source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithRand overrides the random source used for question sampling.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// NewSession returns a fresh session in the NotStarted state.
func NewSession(opts ...Option) *Session {
	s := &Session{
		state:   StateNotStarted,
		answers: make(map[string][]int),
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start samples min(questionCount, len(questions)) questions without
// replacement from the bank via an unbiased shuffle and transitions to
// InProgress. Validation happens before any state mutation: a Start that
// fails leaves the session exactly as it was.
func (s *Session) Start(questions []bank.Question, questionCount int, duration time.Duration) error {
	if s.state == StateInProgress {
		return ErrAlreadyInProgress
	}
	if len(questions) == 0 {
		return ErrEmptyBank
	}
	if questionCount <= 0 {
		return ErrInvalidQuestionCount
	}

	selected := shuffleQuestions(questions, s.rng)
	if questionCount < len(selected) {
		selected = selected[:questionCount]
	}

	s.questions = selected
	s.answers = make(map[string][]int)
	s.current = 0
	s.remaining = int(duration.Seconds())
	s.startedAt = s.now()
	s.result = nil
	s.state = StateInProgress
	return nil
}

// RecordAnswer captures a selection for a question of the current attempt.
// Multi-select toggles membership of optionIndex (insert if absent, remove if
// present); single-select overwrites. Answering never advances the cursor and
// is never blocked by time while the session is InProgress. Invalid input is
// rejected without mutating the answer map.
func (s *Session) RecordAnswer(questionID string, optionIndex int, multiSelect bool) error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}

	q, ok := s.question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return ErrOptionOutOfRange
	}
	if multiSelect != q.MultiSelect {
		return ErrSelectModeMismatch
	}

	if !q.MultiSelect {
		s.answers[questionID] = []int{optionIndex}
		return nil
	}

	existing := s.answers[questionID]
	for i, idx := range existing {
		if idx == optionIndex {
			next := append(existing[:i:i], existing[i+1:]...)
			if len(next) == 0 {
				delete(s.answers, questionID)
			} else {
				s.answers[questionID] = next
			}
			return nil
		}
	}
	s.answers[questionID] = append(existing, optionIndex)
	return nil
}

// Navigate moves the cursor by delta, clamped to the question range. It never
// wraps and does not require the current question to be answered.
func (s *Session) Navigate(delta int) int {
	return s.JumpTo(s.current + delta)
}

// JumpTo moves the cursor directly to index, clamped to the question range.
func (s *Session) JumpTo(index int) int {
	if len(s.questions) == 0 {
		s.current = 0
		return 0
	}
	if index < 0 {
		index = 0
	}
	if index > len(s.questions)-1 {
		index = len(s.questions) - 1
	}
	s.current = index
	return s.current
}

// Tick advances the countdown by one second. When the countdown reaches zero
// it forces a submission exactly once and reports true; subsequent calls are
// no-ops. Safe to call after submission (idempotent against re-entry).
func (s *Session) Tick() bool {
	if s.state != StateInProgress {
		return false
	}
	s.remaining--
	if s.remaining > 0 {
		return false
	}
	s.remaining = 0
	s.submit()
	return true
}

// Submit transitions the session to Submitted and returns the Result. The
// first return transition computes the score and elapsed wall-clock time;
// repeated calls return the identical Result with first=false so callers can
// avoid duplicating side effects. Submitting a session that never started is
// an error.
func (s *Session) Submit() (res *Result, first bool, err error) {
	switch s.state {
	case StateNotStarted:
		return nil, false, ErrNotInProgress
	case StateSubmitted:
		return s.result, false, nil
	}
	s.submit()
	return s.result, true, nil
}

// submit performs the InProgress → Submitted transition. Callers guarantee
// state == InProgress.
func (s *Session) submit() {
	score := 0
	for _, q := range s.questions {
		if IsCorrect(q, s.answers[q.ID]) {
			score++
		}
	}

	now := s.now()
	s.result = &Result{
		Score:            score,
		TotalQuestions:   len(s.questions),
		TimeTakenSeconds: int(now.Sub(s.startedAt).Seconds()),
		SubmittedAt:      now,
	}
	s.state = StateSubmitted
}

// Reset discards the attempt and returns the session to NotStarted. This is
// destructive; callers confirm with the user before invoking it.
func (s *Session) Reset() {
	s.state = StateNotStarted
	s.questions = nil
	s.answers = make(map[string][]int)
	s.current = 0
	s.remaining = 0
	s.startedAt = time.Time{}
	s.result = nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Questions returns a copy of the sampled question sequence.
func (s *Session) Questions() []bank.Question {
	out := make([]bank.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Answers returns a copy of the answer map.
func (s *Session) Answers() map[string][]int {
	out := make(map[string][]int, len(s.answers))
	for id, sel := range s.answers {
		cp := make([]int, len(sel))
		copy(cp, sel)
		out[id] = cp
	}
	return out
}

// CurrentIndex returns the cursor position.
func (s *Session) CurrentIndex() int {
	return s.current
}

// TimeRemaining returns the countdown value in seconds.
func (s *Session) TimeRemaining() int {
	return s.remaining
}

// StartedAt returns the wall-clock start timestamp.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Result returns the computed result, or nil before submission.
func (s *Session) Result() *Result {
	return s.result
}

func (s *Session) question(id string) (bank.Question, bool) {
	for _, q := range s.questions {
		if q.ID == id {
			return q, true
		}
	}
	return bank.Question{}, false
}
