package quiz

import "context"

type ListOpts struct {
	Q        string // title search
	CourseID string
	Limit    int
	Offset   int

	ViewerID   string
	ViewerRole string // "student" | "instructor" | "admin"
}

type AttemptListOpts struct {
	QuizID    string
	StudentID string
	Status    string // optional: in_progress|completed|graded|timed_out
	Limit     int
	Offset    int
	Sort      string // started_at|completed_at desc (default: started_at desc)
}

type ManualGradeInput struct {
	Points  float64 `json:"points_earned"`
	Correct bool    `json:"is_correct"`
	Comment string  `json:"comment,omitempty"`
}

type Store interface {
	// Authoring. PutQuiz inserts or replaces a quiz with its questions;
	// UpdateQuiz refuses to touch a published quiz's questions.
	PutQuiz(ctx context.Context, z Quiz) error
	UpdateQuiz(ctx context.Context, z Quiz) error
	PublishQuiz(ctx context.Context, quizID, ownerID string) (Quiz, error)

	GetQuiz(ctx context.Context, id string) (Quiz, error)      // student-safe (no keys/explanations)
	GetQuizAdmin(ctx context.Context, id string) (Quiz, error) // full quiz, for owners/graders
	ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error)

	// Attempt lifecycle. StartAttempt resumes an open attempt when one exists,
	// and returns the question view (keys stripped, shuffled per call when the
	// quiz asks for it).
	StartAttempt(ctx context.Context, quizID, studentID string) (Attempt, []Question, error)
	SubmitAnswer(ctx context.Context, attemptID, questionID, studentID string, v Value) (Answer, error)
	CompleteAttempt(ctx context.Context, attemptID, studentID string) (Attempt, error)

	// Manual grading; the acting instructor must own the quiz.
	GetGradingItems(ctx context.Context, attemptID, viewerID string) ([]GradingItem, error)
	ApplyManualGrade(ctx context.Context, attemptID, answerID string, in ManualGradeInput, gradedBy string) (Attempt, error)

	GetAttempt(ctx context.Context, id string) (Attempt, error)
	GetAttemptAnswers(ctx context.Context, attemptID string) ([]Answer, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
}
