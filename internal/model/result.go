package model

import (
	"time"

	"github.com/mocksh/mocksh-backend/internal/bank"
	"github.com/mocksh/mocksh-backend/internal/exam"
)

// TestResult is one finished attempt as stored in Postgres. Answers and the
// sampled question sequence are snapshotted as JSONB so a past attempt can be
// reviewed even after the bank file changes.
type TestResult struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	TestName         string           `json:"test_name"`
	Score            int              `json:"score"`
	TotalQuestions   int              `json:"total_questions"`
	TimeTakenSeconds int              `json:"time_taken_seconds"`
	Answers          map[string][]int `json:"answers"`
	Questions        []bank.Question  `json:"questions"`
	CreatedAt        time.Time        `json:"created_at"`
}

// UserStats is the aggregate over all of a user's stored attempts.
type UserStats struct {
	TotalTests              int     `json:"total_tests"`
	AvgPercentage           float64 `json:"avg_percentage"`
	BestPercentage          float64 `json:"best_percentage"`
	TotalQuestionsAttempted int     `json:"total_questions_attempted"`
}

// LeaderboardEntry is one row of the global leaderboard, built from each
// user's best attempt.
type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	Percentage       float64   `json:"percentage"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// AnswerRequest is the payload for recording a selection.
type AnswerRequest struct {
	QuestionID  string `json:"question_id" binding:"required"`
	OptionIndex *int   `json:"option_index" binding:"required"`
	MultiSelect bool   `json:"multi_select"`
}

// NavigateRequest moves the session cursor. Exactly one of Delta or Index is
// used: when Index is set it wins.
type NavigateRequest struct {
	Delta int  `json:"delta"`
	Index *int `json:"index"`
}

// QuestionView is the client-facing shape of a question during an attempt.
// The correct answer fields stay server-side; clients only learn them through
// the post-submission review.
type QuestionView struct {
	ID          string   `json:"id"`
	Text        string   `json:"question"`
	Code        string   `json:"code,omitempty"`
	Options     []string `json:"options"`
	MultiSelect bool     `json:"multiSelect,omitempty"`
}

// NewQuestionViews strips bank questions down to their client-facing fields.
func NewQuestionViews(qs []bank.Question) []QuestionView {
	views := make([]QuestionView, len(qs))
	for i, q := range qs {
		views[i] = QuestionView{
			ID:          q.ID,
			Text:        q.Text,
			Code:        q.Code,
			Options:     q.Options,
			MultiSelect: q.MultiSelect,
		}
	}
	return views
}

// SessionState is the wire snapshot of an in-flight or finished session.
type SessionState struct {
	State         exam.State       `json:"state"`
	TestName      string           `json:"test_name"`
	Questions     []QuestionView   `json:"questions,omitempty"`
	Answers       map[string][]int `json:"answers"`
	CurrentIndex  int              `json:"current_index"`
	TimeRemaining int              `json:"time_remaining"`
	AnsweredCount int              `json:"answered_count"`
	Result        *exam.Result     `json:"result,omitempty"`
	SaveStatus    string           `json:"save_status,omitempty"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
}

// TestInfo describes the test offered by this deployment.
type TestInfo struct {
	TestName        string `json:"test_name"`
	QuestionCount   int    `json:"question_count"`
	BankSize        int    `json:"bank_size"`
	DurationSeconds int    `json:"duration_seconds"`
}
