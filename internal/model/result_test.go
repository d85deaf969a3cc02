package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mocksh/mocksh-backend/internal/bank"
	"github.com/mocksh/mocksh-backend/internal/exam"
)

func TestSessionStateOmitsAnswerKey(t *testing.T) {
	qs := []bank.Question{
		{
			ID:           "q1",
			Text:         "pick one",
			Options:      []string{"a", "b", "c"},
			CorrectIndex: 2,
		},
		{
			ID:             "q2",
			Text:           "pick two",
			Code:           "SELECT 1;",
			Options:        []string{"a", "b", "c", "d"},
			MultiSelect:    true,
			CorrectIndices: []int{0, 2},
		},
	}

	st := SessionState{
		State:         exam.StateInProgress,
		TestName:      "mock",
		Questions:     NewQuestionViews(qs),
		Answers:       map[string][]int{},
		TimeRemaining: 5400,
	}

	raw, err := json.Marshal(&st)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "correctIndex") {
		t.Fatalf("snapshot leaks the answer key: %s", raw)
	}

	var decoded struct {
		Questions []struct {
			ID          string   `json:"id"`
			Text        string   `json:"question"`
			Code        string   `json:"code"`
			Options     []string `json:"options"`
			MultiSelect bool     `json:"multiSelect"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(decoded.Questions))
	}
	q2 := decoded.Questions[1]
	if q2.ID != "q2" || q2.Code != "SELECT 1;" || !q2.MultiSelect || len(q2.Options) != 4 {
		t.Fatalf("client-facing fields lost in the view: %+v", q2)
	}
}
