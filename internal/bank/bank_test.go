package bank

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeBank(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidBank(t *testing.T) {
	path := writeBank(t, `[
		{"id": "q1", "question": "Pick one", "options": ["a", "b", "c"], "correctIndex": 1},
		{"id": "q2", "question": "Pick two", "code": "SELECT 1", "options": ["a", "b", "c", "d"], "multiSelect": true, "correctIndices": [0, 2]}
	]`)

	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if b.Size() != 2 {
		t.Fatalf("size = %d, want 2", b.Size())
	}

	q, ok := b.Get("q2")
	if !ok {
		t.Fatal("q2 not found")
	}
	if !q.MultiSelect || len(q.CorrectIndices) != 2 {
		t.Fatalf("q2 parsed wrong: %+v", q)
	}
	if q.Code != "SELECT 1" {
		t.Fatalf("code = %q", q.Code)
	}

	if _, ok := b.Get("missing"); ok {
		t.Fatal("lookup of unknown id succeeded")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty array", `[]`, ErrNoQuestions},
		{"malformed json", `{not json`, nil},
		{
			"duplicate id",
			`[{"id":"q1","question":"a","options":["x","y"],"correctIndex":0},
			  {"id":"q1","question":"b","options":["x","y"],"correctIndex":0}]`,
			ErrDuplicateID,
		},
		{
			"one option",
			`[{"id":"q1","question":"a","options":["x"],"correctIndex":0}]`,
			ErrTooFewOptions,
		},
		{
			"index past options",
			`[{"id":"q1","question":"a","options":["x","y"],"correctIndex":5}]`,
			ErrIndexRange,
		},
		{
			"multi index out of range",
			`[{"id":"q1","question":"a","options":["x","y"],"multiSelect":true,"correctIndices":[0,9]}]`,
			ErrIndexRange,
		},
		{
			"multi without indices",
			`[{"id":"q1","question":"a","options":["x","y"],"multiSelect":true}]`,
			nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeBank(t, tc.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestQuestionsReturnsCopy(t *testing.T) {
	path := writeBank(t, `[
		{"id":"q1","question":"a","options":["x","y"],"correctIndex":0},
		{"id":"q2","question":"b","options":["x","y"],"correctIndex":1}
	]`)
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	qs := b.Questions()
	qs[0], qs[1] = qs[1], qs[0]

	again := b.Questions()
	if again[0].ID != "q1" {
		t.Fatal("mutating the returned slice disturbed the bank order")
	}
}
