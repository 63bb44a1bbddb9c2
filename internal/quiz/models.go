package quiz

import (
	"fmt"
	"time"
)

type QuestionType string

const (
	TypeSingleChoice QuestionType = "single-choice"
	TypeMultiSelect  QuestionType = "multi-select"
	TypeTrueFalse    QuestionType = "true-false"
	TypeOpenText     QuestionType = "open-text"
	TypeCode         QuestionType = "code"
)

func (t QuestionType) Known() bool {
	switch t {
	case TypeSingleChoice, TypeMultiSelect, TypeTrueFalse, TypeOpenText, TypeCode:
		return true
	}
	return false
}

// HasOptions reports whether questions of this type carry a fixed option list.
func (t QuestionType) HasOptions() bool {
	switch t {
	case TypeSingleChoice, TypeMultiSelect, TypeTrueFalse:
		return true
	}
	return false
}

// Manual reports whether questions of this type are always routed to an
// instructor for grading.
func (t QuestionType) Manual() bool {
	return t == TypeOpenText || t == TypeCode
}

type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Question struct {
	ID     string       `json:"id"`
	QuizID string       `json:"quiz_id,omitempty"`
	Type   QuestionType `json:"type"`
	Prompt string       `json:"prompt"`

	Options []Option `json:"options,omitempty"` // choice/boolean types only

	// AnswerKey holds option IDs for choice types. For open-text/code it is a
	// free-text grading hint shown to the instructor, never used to auto-grade.
	AnswerKey   []string `json:"answer_key,omitempty"`
	Points      float64  `json:"points"`
	Explanation string   `json:"explanation,omitempty"`
	Position    int      `json:"position"`
}

// Validate checks the structural invariants for a single question.
func (q Question) Validate() error {
	if !q.Type.Known() {
		return fmt.Errorf("question %q: unknown type %q", q.ID, q.Type)
	}
	if q.Points <= 0 {
		return fmt.Errorf("question %q: points must be positive", q.ID)
	}
	if q.Type.HasOptions() {
		if len(q.Options) == 0 {
			return fmt.Errorf("question %q: %s requires options", q.ID, q.Type)
		}
		ids := map[string]bool{}
		for _, o := range q.Options {
			if o.ID == "" {
				return fmt.Errorf("question %q: option with empty id", q.ID)
			}
			ids[o.ID] = true
		}
		if len(q.AnswerKey) == 0 {
			return fmt.Errorf("question %q: missing answer key", q.ID)
		}
		for _, k := range q.AnswerKey {
			if !ids[k] {
				return fmt.Errorf("question %q: answer key %q is not an option", q.ID, k)
			}
		}
		if (q.Type == TypeSingleChoice || q.Type == TypeTrueFalse) && len(q.AnswerKey) != 1 {
			return fmt.Errorf("question %q: %s requires exactly one correct option", q.ID, q.Type)
		}
	} else if len(q.Options) > 0 {
		return fmt.Errorf("question %q: %s must not carry options", q.ID, q.Type)
	}
	return nil
}

type Quiz struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	TimeLimitMin int      `json:"time_limit_min"` // 0 = unlimited
	MaxAttempts  int      `json:"max_attempts"`
	PassingScore *float64 `json:"passing_score,omitempty"` // percentage
	ShowResults  bool     `json:"show_results"`
	Shuffle      bool     `json:"shuffle_questions"`
	Active       bool     `json:"active"`
	Published    bool     `json:"published"`

	CreatedAt int64 `json:"created_at,omitempty"`

	Questions []Question `json:"questions,omitempty"`
}

func (z Quiz) Validate() error {
	if z.Title == "" {
		return fmt.Errorf("quiz title required")
	}
	if z.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if z.TimeLimitMin < 0 {
		return fmt.Errorf("time_limit_min must not be negative")
	}
	if z.PassingScore != nil && (*z.PassingScore < 0 || *z.PassingScore > 100) {
		return fmt.Errorf("passing_score must be within [0,100]")
	}
	for _, q := range z.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusCompleted  AttemptStatus = "completed"
	StatusGraded     AttemptStatus = "graded"
	StatusTimedOut   AttemptStatus = "timed_out"
)

// Finished reports whether the attempt has left IN_PROGRESS. Finished attempts
// count toward the quiz's max-attempts limit.
func (s AttemptStatus) Finished() bool { return s != StatusInProgress }

type Attempt struct {
	ID        string        `json:"id"`
	QuizID    string        `json:"quiz_id"`
	StudentID string        `json:"student_id"`
	Status    AttemptStatus `json:"status"`

	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	TimeSpentSec int        `json:"time_spent_sec,omitempty"`

	// Score is a percentage (one decimal); nil while any answer is unresolved.
	Score        *float64 `json:"score,omitempty"`
	PointsEarned float64  `json:"points_earned"`
	MaxPoints    float64  `json:"max_points"`
	Passed       *bool    `json:"passed,omitempty"`
}

// Value is a student's submitted response: a set of option IDs for choice
// types, or free text for open-text/code.
type Value struct {
	Options []string `json:"options,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// SelectionFor normalizes the value to an option-ID set for the given
// question, wrapping a bare text scalar into a singleton set for choice types.
func (v Value) SelectionFor(t QuestionType) []string {
	if !t.HasOptions() {
		return nil
	}
	if len(v.Options) > 0 {
		return v.Options
	}
	if v.Text != "" {
		return []string{v.Text}
	}
	return nil
}

type Answer struct {
	ID         string `json:"id"`
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	Value      Value  `json:"value"`

	// Correct is nil exactly while manual grading is pending.
	Correct *bool    `json:"correct,omitempty"`
	Points  *float64 `json:"points,omitempty"`

	Feedback string     `json:"feedback,omitempty"` // instructor comment, manual grading only
	GradedBy string     `json:"graded_by,omitempty"`
	GradedAt *time.Time `json:"graded_at,omitempty"`
}

// GradingItem is one row of an instructor's manual-grading worklist.
type GradingItem struct {
	AnswerID   string       `json:"answer_id"`
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Prompt     string       `json:"prompt"`
	Hint       []string     `json:"hint,omitempty"` // instructor-only answer key
	MaxPoints  float64      `json:"max_points"`
	Value      Value        `json:"value"`
	Correct    *bool        `json:"correct,omitempty"`
	Points     *float64     `json:"points,omitempty"`
	Feedback   string       `json:"feedback,omitempty"`
}

type QuizSummary struct {
	ID           string   `json:"id"`
	CourseID     string   `json:"course_id"`
	Title        string   `json:"title"`
	TimeLimitMin int      `json:"time_limit_min"`
	MaxAttempts  int      `json:"max_attempts"`
	PassingScore *float64 `json:"passing_score,omitempty"`
	Published    bool     `json:"published"`
	Active       bool     `json:"active"`
	Questions    int      `json:"questions"`
}
