package exam

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/mocksh/mocksh-backend/internal/bank"
)

func testBank(n int) []bank.Question {
	qs := make([]bank.Question, n)
	for i := range qs {
		qs[i] = bank.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Text:         fmt.Sprintf("question %d", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		}
	}
	return qs
}

func newTestSession(seed int64) *Session {
	return NewSession(WithRand(rand.New(rand.NewSource(seed))))
}

func TestStartEmptyBank(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(nil, 45, 90*time.Minute); !errors.Is(err, ErrEmptyBank) {
		t.Fatalf("expected ErrEmptyBank, got %v", err)
	}
	if s.State() != StateNotStarted {
		t.Fatalf("failed start must not mutate state, got %s", s.State())
	}
}

func TestStartInvalidCount(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(5), 0, 90*time.Minute); !errors.Is(err, ErrInvalidQuestionCount) {
		t.Fatalf("expected ErrInvalidQuestionCount, got %v", err)
	}
}

func TestStartWhileInProgress(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(5), 5, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(testBank(5), 5, time.Minute); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}
}

func TestStartNoDuplicates(t *testing.T) {
	for _, tc := range []struct{ bankSize, count, want int }{
		{10, 5, 5},
		{10, 10, 10},
		{3, 45, 3}, // truncation: count > bank size
	} {
		s := newTestSession(42)
		if err := s.Start(testBank(tc.bankSize), tc.count, time.Minute); err != nil {
			t.Fatal(err)
		}
		qs := s.Questions()
		if len(qs) != tc.want {
			t.Fatalf("bank=%d count=%d: got %d questions, want %d", tc.bankSize, tc.count, len(qs), tc.want)
		}
		seen := make(map[string]bool, len(qs))
		for _, q := range qs {
			if seen[q.ID] {
				t.Fatalf("duplicate question %s in selection", q.ID)
			}
			seen[q.ID] = true
		}
	}
}

func TestStartResamples(t *testing.T) {
	s := newTestSession(7)
	if err := s.Start(testBank(20), 20, time.Minute); err != nil {
		t.Fatal(err)
	}
	first := s.Questions()
	if _, _, err := s.Submit(); err != nil {
		t.Fatal(err)
	}

	// "Take again" from Submitted draws a fresh permutation.
	if err := s.Start(testBank(20), 20, time.Minute); err != nil {
		t.Fatal(err)
	}
	second := s.Questions()

	same := true
	for i := range first {
		if first[i].ID != second[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Fatal("second start replayed the previous order")
	}
	if s.State() != StateInProgress {
		t.Fatalf("state = %s, want InProgress", s.State())
	}
}

func TestScoringSingleSelect(t *testing.T) {
	qs := []bank.Question{{
		ID:           "q1",
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: 2,
	}}

	s := newTestSession(1)
	if err := s.Start(qs, 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer("q1", 2, false); err != nil {
		t.Fatal(err)
	}
	res, _, err := s.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 1 {
		t.Fatalf("score = %d, want 1", res.Score)
	}

	s = newTestSession(1)
	if err := s.Start(qs, 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer("q1", 0, false); err != nil {
		t.Fatal(err)
	}
	res, _, _ = s.Submit()
	if res.Score != 0 {
		t.Fatalf("score = %d, want 0", res.Score)
	}
}

func TestScoringMultiSelect(t *testing.T) {
	qs := []bank.Question{{
		ID:             "q1",
		Options:        []string{"a", "b", "c", "d"},
		MultiSelect:    true,
		CorrectIndices: []int{1, 3},
	}}

	cases := []struct {
		name    string
		picks   []int
		correct bool
	}{
		{"exact set, different order", []int{3, 1}, true},
		{"superset", []int{1, 3, 0}, false},
		{"subset", []int{1}, false},
		{"unanswered", nil, false},
	}
	for _, tc := range cases {
		s := newTestSession(1)
		if err := s.Start(qs, 1, time.Minute); err != nil {
			t.Fatal(err)
		}
		for _, idx := range tc.picks {
			if err := s.RecordAnswer("q1", idx, true); err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
		}
		res, _, err := s.Submit()
		if err != nil {
			t.Fatal(err)
		}
		want := 0
		if tc.correct {
			want = 1
		}
		if res.Score != want {
			t.Errorf("%s: score = %d, want %d", tc.name, res.Score, want)
		}
	}
}

func TestRecordAnswerToggle(t *testing.T) {
	qs := []bank.Question{{
		ID:             "q1",
		Options:        []string{"a", "b", "c", "d"},
		MultiSelect:    true,
		CorrectIndices: []int{1, 3},
	}}

	s := newTestSession(1)
	if err := s.Start(qs, 1, time.Minute); err != nil {
		t.Fatal(err)
	}

	// Insert then remove: index 2 must end up absent.
	if err := s.RecordAnswer("q1", 2, true); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer("q1", 2, true); err != nil {
		t.Fatal(err)
	}
	if sel := s.Answers()["q1"]; len(sel) != 0 {
		t.Fatalf("toggle twice left selection %v, want empty", sel)
	}
}

func TestRecordAnswerSingleOverwrites(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(1), 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	q := s.Questions()[0]
	if err := s.RecordAnswer(q.ID, 1, false); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer(q.ID, 3, false); err != nil {
		t.Fatal(err)
	}
	sel := s.Answers()[q.ID]
	if len(sel) != 1 || sel[0] != 3 {
		t.Fatalf("selection = %v, want [3]", sel)
	}
}

func TestRecordAnswerRejectsInvalid(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(2), 2, time.Minute); err != nil {
		t.Fatal(err)
	}
	q := s.Questions()[0]

	if err := s.RecordAnswer("nope", 0, false); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("unknown question: got %v", err)
	}
	if err := s.RecordAnswer(q.ID, 99, false); !errors.Is(err, ErrOptionOutOfRange) {
		t.Fatalf("out of range: got %v", err)
	}
	if err := s.RecordAnswer(q.ID, -1, false); !errors.Is(err, ErrOptionOutOfRange) {
		t.Fatalf("negative index: got %v", err)
	}
	if err := s.RecordAnswer(q.ID, 0, true); !errors.Is(err, ErrSelectModeMismatch) {
		t.Fatalf("mode mismatch: got %v", err)
	}
	if len(s.Answers()) != 0 {
		t.Fatalf("rejected calls mutated answers: %v", s.Answers())
	}
}

func TestNavigateClamps(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(3), 3, time.Minute); err != nil {
		t.Fatal(err)
	}

	if idx := s.Navigate(-1); idx != 0 {
		t.Fatalf("backward from 0 = %d, want 0", idx)
	}
	if idx := s.Navigate(+1); idx != 1 {
		t.Fatalf("forward = %d, want 1", idx)
	}
	if idx := s.JumpTo(99); idx != 2 {
		t.Fatalf("jump past end = %d, want 2", idx)
	}
	if idx := s.JumpTo(-5); idx != 0 {
		t.Fatalf("jump before start = %d, want 0", idx)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(3), 3, time.Minute); err != nil {
		t.Fatal(err)
	}

	first, wasFirst, err := s.Submit()
	if err != nil || !wasFirst {
		t.Fatalf("first submit: res=%v first=%v err=%v", first, wasFirst, err)
	}
	second, again, err := s.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Fatal("second submit reported as first transition")
	}
	if first != second {
		t.Fatal("second submit produced a different Result")
	}
}

func TestSubmitNotStarted(t *testing.T) {
	s := newTestSession(1)
	if _, _, err := s.Submit(); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress, got %v", err)
	}
}

func TestTickForcesSubmissionOnce(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(2), 2, 5400*time.Second); err != nil {
		t.Fatal(err)
	}

	forced := 0
	for i := 0; i < 5400; i++ {
		if s.Tick() {
			forced++
		}
	}
	if forced != 1 {
		t.Fatalf("countdown forced %d submissions, want exactly 1", forced)
	}
	if s.State() != StateSubmitted {
		t.Fatalf("state = %s, want Submitted", s.State())
	}
	if s.TimeRemaining() != 0 {
		t.Fatalf("time remaining = %d, want 0", s.TimeRemaining())
	}

	// Extra ticks after the zero crossing are no-ops.
	for i := 0; i < 10; i++ {
		if s.Tick() {
			t.Fatal("tick after submission forced another submit")
		}
	}
	if s.TimeRemaining() != 0 {
		t.Fatalf("time remaining went negative: %d", s.TimeRemaining())
	}
}

func TestTimeTakenUsesWallClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	current := start
	s := NewSession(
		WithRand(rand.New(rand.NewSource(1))),
		WithClock(func() time.Time { return current }),
	)
	if err := s.Start(testBank(2), 2, 90*time.Minute); err != nil {
		t.Fatal(err)
	}

	// The countdown may drift under tab suspension; elapsed time comes from
	// the wall clock regardless of how many ticks were delivered.
	current = start.Add(17 * time.Minute)
	res, _, err := s.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if res.TimeTakenSeconds != 17*60 {
		t.Fatalf("time taken = %d, want %d", res.TimeTakenSeconds, 17*60)
	}
}

func TestReviewPartition(t *testing.T) {
	qs := testBank(6)
	s := newTestSession(3)
	if err := s.Start(qs, 6, time.Minute); err != nil {
		t.Fatal(err)
	}

	// Answer half of them correctly, leave the rest wrong or unanswered.
	for i, q := range s.Questions() {
		if i%2 == 0 {
			if err := s.RecordAnswer(q.ID, q.CorrectIndex, false); err != nil {
				t.Fatal(err)
			}
		} else if i == 1 {
			wrong := (q.CorrectIndex + 1) % len(q.Options)
			if err := s.RecordAnswer(q.ID, wrong, false); err != nil {
				t.Fatal(err)
			}
		}
	}

	if _, err := s.Review(FilterAll); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("review before submit: got %v", err)
	}

	res, _, err := s.Submit()
	if err != nil {
		t.Fatal(err)
	}

	all, _ := s.Review(FilterAll)
	correct, _ := s.Review(FilterCorrect)
	wrong, _ := s.Review(FilterWrong)

	if len(all) != len(s.Questions()) {
		t.Fatalf("all view has %d rows, want %d", len(all), len(s.Questions()))
	}
	if len(correct)+len(wrong) != len(all) {
		t.Fatalf("correct(%d) + wrong(%d) != all(%d)", len(correct), len(wrong), len(all))
	}
	if len(correct) != res.Score {
		t.Fatalf("correct view has %d rows, live score is %d", len(correct), res.Score)
	}

	inCorrect := make(map[string]bool)
	for _, e := range correct {
		if !e.Correct {
			t.Fatalf("correct view contains wrong row %s", e.Question.ID)
		}
		inCorrect[e.Question.ID] = true
	}
	for _, e := range wrong {
		if e.Correct {
			t.Fatalf("wrong view contains correct row %s", e.Question.ID)
		}
		if inCorrect[e.Question.ID] {
			t.Fatalf("question %s appears in both views", e.Question.ID)
		}
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := newTestSession(1)
	if err := s.Start(testBank(3), 3, time.Minute); err != nil {
		t.Fatal(err)
	}
	q := s.Questions()[1]
	if err := s.RecordAnswer(q.ID, 0, false); err != nil {
		t.Fatal(err)
	}
	s.JumpTo(2)
	if _, _, err := s.Submit(); err != nil {
		t.Fatal(err)
	}

	s.Reset()

	if s.State() != StateNotStarted {
		t.Fatalf("state = %s, want NotStarted", s.State())
	}
	if len(s.Answers()) != 0 {
		t.Fatalf("answers not cleared: %v", s.Answers())
	}
	if s.CurrentIndex() != 0 {
		t.Fatalf("cursor = %d, want 0", s.CurrentIndex())
	}
	if len(s.Questions()) != 0 {
		t.Fatal("selected questions not cleared")
	}
	if s.Result() != nil {
		t.Fatal("result not cleared")
	}
}

func TestReviewRowsAreDetached(t *testing.T) {
	qs := testBank(3)
	qs[0].MultiSelect = true
	qs[0].CorrectIndex = 0
	qs[0].CorrectIndices = []int{1, 3}

	s := newTestSession(7)
	if err := s.Start(qs, 3, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer("q1", 1, true); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswer("q1", 3, true); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Submit(); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Review(FilterAll)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rows {
		for j := range rows[i].Selected {
			rows[i].Selected[j] = -1
		}
	}

	got := s.Answers()["q1"]
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("mutating review rows changed the session's answers: %v", got)
	}
}
