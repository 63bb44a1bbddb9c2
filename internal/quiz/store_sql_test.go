package quiz

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/QaEldaniz/futureup-academy-sub000/internal/db"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/enroll"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/grading"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/notify"
)

type fakeSink struct{ events []notify.Event }

func (f *fakeSink) Publish(_ context.Context, e notify.Event) error {
	f.events = append(f.events, e)
	return nil
}

func newTestStore(t *testing.T) (*SQLStore, *sql.DB, *fakeSink) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	dbh, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	dbh.SetMaxIdleConns(1)
	t.Cleanup(func() { dbh.Close() })
	if err := db.EnsureSchema(context.Background(), dbh, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	sink := &fakeSink{}
	st := NewSQLStore(dbh, "sqlite", grading.NewDefaultGrader(), enroll.NewSQLChecker(dbh), sink)
	return st, dbh, sink
}

func enrollStudent(t *testing.T, dbh *sql.DB, studentID, courseID string) {
	t.Helper()
	if _, err := dbh.Exec(
		`INSERT INTO enrollments (course_id, student_id) VALUES ($1,$2)`,
		courseID, studentID); err != nil {
		t.Fatalf("enroll %s in %s: %v", studentID, courseID, err)
	}
}

func optionList(ids ...string) []Option {
	out := make([]Option, len(ids))
	for i, id := range ids {
		out[i] = Option{ID: id, Label: strings.ToUpper(id)}
	}
	return out
}

func singleChoiceQ(id string, points float64, key string) Question {
	return Question{
		ID: id, Type: TypeSingleChoice, Prompt: "pick one",
		Options: optionList("a", "b", "c"), AnswerKey: []string{key}, Points: points,
	}
}

func multiSelectQ(id string, points float64, key ...string) Question {
	return Question{
		ID: id, Type: TypeMultiSelect, Prompt: "pick all that apply",
		Options: optionList("a", "b", "c", "d"), AnswerKey: key, Points: points,
	}
}

func openTextQ(id string, points float64) Question {
	return Question{
		ID: id, Type: TypeOpenText, Prompt: "explain",
		AnswerKey: []string{"mentions indexes"}, Points: points,
	}
}

func seedQuiz(t *testing.T, st *SQLStore, z Quiz) {
	t.Helper()
	if err := st.PutQuiz(context.Background(), z); err != nil {
		t.Fatalf("PutQuiz %s: %v", z.ID, err)
	}
}

func TestStartAttempt_ResumesOpenAttempt(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 3,
		Active: true, Published: true,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})

	a1, qs, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a1.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", a1.Status)
	}
	for _, q := range qs {
		if q.AnswerKey != nil || q.Explanation != "" {
			t.Fatalf("question view leaked grading material: %+v", q)
		}
	}

	a2, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if a2.ID != a1.ID {
		t.Fatalf("second start opened a new attempt %s, want resume of %s", a2.ID, a1.ID)
	}
}

func TestStartAttempt_Limits(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 2,
		Active: true, Published: true,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})

	for i := 0; i < 2; i++ {
		a, _, err := st.StartAttempt(ctx, "z1", "stu1")
		if err != nil {
			t.Fatalf("start #%d: %v", i+1, err)
		}
		if _, err := st.CompleteAttempt(ctx, a.ID, "stu1"); err != nil {
			t.Fatalf("complete #%d: %v", i+1, err)
		}
	}
	_, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if !errors.Is(err, ErrAttemptLimit) {
		t.Fatalf("third start: got %v, want ErrAttemptLimit", err)
	}
}

func TestStartAttempt_Gatekeeping(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")

	seedQuiz(t, st, Quiz{
		ID: "draft", CourseID: "c1", Title: "T", MaxAttempts: 1, Active: true,
		Questions: []Question{singleChoiceQ("d1", 1, "a")},
	})
	if _, _, err := st.StartAttempt(ctx, "draft", "stu1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unpublished quiz: got %v, want ErrNotFound", err)
	}

	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 1,
		Active: true, Published: true,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})
	if _, _, err := st.StartAttempt(ctx, "z1", "outsider"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unenrolled student: got %v, want ErrForbidden", err)
	}

	if _, _, err := st.StartAttempt(ctx, "missing", "stu1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing quiz: got %v, want ErrNotFound", err)
	}
}

func TestPublishQuiz(t *testing.T) {
	st, dbh, sink := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	enrollStudent(t, dbh, "stu2", "c1")

	seedQuiz(t, st, Quiz{ID: "empty", CourseID: "c1", OwnerID: "t1", Title: "T", MaxAttempts: 1})
	if _, err := st.PublishQuiz(ctx, "empty", "t1"); !errors.Is(err, ErrEmptyQuiz) {
		t.Fatalf("publish empty quiz: got %v, want ErrEmptyQuiz", err)
	}

	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", OwnerID: "t1", Title: "T", MaxAttempts: 1,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})
	if _, err := st.PublishQuiz(ctx, "z1", "t2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("publish by non-owner: got %v, want ErrForbidden", err)
	}
	z, err := st.PublishQuiz(ctx, "z1", "t1")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !z.Published || !z.Active {
		t.Fatalf("published quiz not live: %+v", z)
	}

	var recipients []string
	for _, e := range sink.events {
		if e.Kind != notify.KindQuizPublished {
			t.Fatalf("unexpected event kind %s", e.Kind)
		}
		recipients = append(recipients, e.RecipientID)
	}
	if len(recipients) != 2 || recipients[0] != "stu1" || recipients[1] != "stu2" {
		t.Fatalf("roster fan-out = %v, want [stu1 stu2]", recipients)
	}
}

func TestSubmitAnswer_SetEqualityAndResubmission(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 1,
		Active: true, Published: true,
		Questions: []Question{multiSelectQ("q1", 4, "a", "c")},
	})
	a, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	ans, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{Options: []string{"a"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ans.Correct == nil || *ans.Correct || *ans.Points != 0 {
		t.Fatalf("partial selection must score zero, got %+v", ans)
	}

	ans2, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{Options: []string{"c", "a"}})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if ans2.Correct == nil || !*ans2.Correct || *ans2.Points != 4 {
		t.Fatalf("exact set must earn full points, got %+v", ans2)
	}
	if ans2.ID != ans.ID {
		t.Fatalf("resubmission created a new answer row: %s vs %s", ans2.ID, ans.ID)
	}
	answers, err := st.GetAttemptAnswers(ctx, a.ID)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answer rows = %d, want 1", len(answers))
	}

	if _, err := st.SubmitAnswer(ctx, a.ID, "other-q", "stu1", Value{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign question: got %v, want ErrNotFound", err)
	}
	if _, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu2", Value{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign student: got %v, want ErrForbidden", err)
	}
}

func TestSubmitAnswer_TimeLimitClosesAttempt(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 1, TimeLimitMin: 1,
		Active: true, Published: true,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})

	base := time.Now()
	clock := base
	st.SetClock(func() time.Time { return clock })

	a, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock = base.Add(2 * time.Minute)
	_, err = st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{Options: []string{"a"}})
	if !errors.Is(err, ErrTimeExceeded) {
		t.Fatalf("late submit: got %v, want ErrTimeExceeded", err)
	}

	got, err := st.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != StatusTimedOut {
		t.Fatalf("status = %s, want timed_out", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("timed-out attempt has no completion time")
	}

	// Once closed, further writes are state errors, not time errors.
	if _, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("submit to closed attempt: got %v, want ErrInvalidState", err)
	}
	if _, err := st.CompleteAttempt(ctx, a.ID, "stu1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete closed attempt: got %v, want ErrInvalidState", err)
	}
}

func TestCompleteAttempt_AllAutoGraded(t *testing.T) {
	st, dbh, sink := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	passing := 70.0
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 1, PassingScore: &passing,
		Active: true, Published: true,
		Questions: []Question{
			singleChoiceQ("q1", 2, "a"),
			multiSelectQ("q2", 2, "a", "b"),
			singleChoiceQ("q3", 10, "c"), // skipped: must not dilute the ratio
		},
	})
	a, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{Options: []string{"a"}}); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if _, err := st.SubmitAnswer(ctx, a.ID, "q2", "stu1", Value{Options: []string{"a"}}); err != nil {
		t.Fatalf("submit q2: %v", err)
	}

	done, err := st.CompleteAttempt(ctx, a.ID, "stu1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusGraded {
		t.Fatalf("status = %s, want graded", done.Status)
	}
	if done.PointsEarned != 2 || done.MaxPoints != 4 {
		t.Fatalf("earned/max = %v/%v, want 2/4", done.PointsEarned, done.MaxPoints)
	}
	if done.Score == nil || *done.Score != 50 {
		t.Fatalf("score = %v, want 50", done.Score)
	}
	if done.Passed == nil || *done.Passed {
		t.Fatalf("passed = %v, want false (50 < 70)", done.Passed)
	}

	if len(sink.events) != 1 || sink.events[0].Kind != notify.KindQuizGraded {
		t.Fatalf("events = %+v, want one quiz-graded", sink.events)
	}
	if sink.events[0].RecipientID != "stu1" {
		t.Fatalf("graded event went to %s, want stu1", sink.events[0].RecipientID)
	}
}

func TestManualGradingLifecycle(t *testing.T) {
	st, dbh, sink := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", OwnerID: "t1", Title: "T", MaxAttempts: 1,
		Active: true, Published: true,
		Questions: []Question{
			singleChoiceQ("q1", 2, "a"),
			openTextQ("q2", 3),
		},
	})
	a, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{Options: []string{"a"}}); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	essay, err := st.SubmitAnswer(ctx, a.ID, "q2", "stu1", Value{Text: "because of indexes"})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if essay.Correct != nil || essay.Points != nil {
		t.Fatalf("open-text answer must stay pending, got %+v", essay)
	}

	// Grading before completion is rejected.
	if _, err := st.ApplyManualGrade(ctx, a.ID, essay.ID, ManualGradeInput{Points: 3, Correct: true}, "t1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("grade in-progress attempt: got %v, want ErrInvalidState", err)
	}

	done, err := st.CompleteAttempt(ctx, a.ID, "stu1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed (essay pending)", done.Status)
	}
	if done.Score != nil {
		t.Fatalf("score = %v, want nil while pending", *done.Score)
	}
	if done.PointsEarned != 2 || done.MaxPoints != 5 {
		t.Fatalf("earned/max = %v/%v, want 2/5", done.PointsEarned, done.MaxPoints)
	}
	if len(sink.events) != 0 {
		t.Fatalf("no graded event expected while pending, got %+v", sink.events)
	}

	// The worklist carries answer-key hints, so only the owner may read it.
	if _, err := st.GetGradingItems(ctx, a.ID, "t2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner worklist read: got %v, want ErrForbidden", err)
	}
	items, err := st.GetGradingItems(ctx, a.ID, "t1")
	if err != nil {
		t.Fatalf("grading items: %v", err)
	}
	if len(items) != 1 || items[0].QuestionID != "q2" {
		t.Fatalf("items = %+v, want only the open-text answer", items)
	}
	if len(items[0].Hint) == 0 || items[0].MaxPoints != 3 {
		t.Fatalf("item missing grading hint or max points: %+v", items[0])
	}

	// Validation failures leave the answer untouched.
	if _, err := st.ApplyManualGrade(ctx, a.ID, essay.ID, ManualGradeInput{Points: 4, Correct: true}, "t1"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("over-max points: got %v, want ErrOutOfRange", err)
	}
	if _, err := st.ApplyManualGrade(ctx, a.ID, essay.ID, ManualGradeInput{Points: 3, Correct: true}, "t2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner grader: got %v, want ErrForbidden", err)
	}
	if _, err := st.ApplyManualGrade(ctx, a.ID, "nope", ManualGradeInput{Points: 1}, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown answer: got %v, want ErrNotFound", err)
	}

	graded, err := st.ApplyManualGrade(ctx, a.ID, essay.ID,
		ManualGradeInput{Points: 3, Correct: true, Comment: "solid reasoning"}, "t1")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if graded.Status != StatusGraded {
		t.Fatalf("status = %s, want graded", graded.Status)
	}
	if graded.Score == nil || *graded.Score != 100 {
		t.Fatalf("score = %v, want 100", graded.Score)
	}
	if len(sink.events) != 1 || sink.events[0].Kind != notify.KindQuizGraded {
		t.Fatalf("events = %+v, want one quiz-graded", sink.events)
	}

	answers, err := st.GetAttemptAnswers(ctx, a.ID)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	for _, ans := range answers {
		if ans.QuestionID != "q2" {
			continue
		}
		if ans.Feedback != "solid reasoning" || ans.GradedBy != "t1" || ans.GradedAt == nil {
			t.Fatalf("grading metadata not recorded: %+v", ans)
		}
	}
}

func TestApplyManualGrade_RejectsAutoGradedAnswer(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", OwnerID: "t1", Title: "T", MaxAttempts: 1,
		Active: true, Published: true,
		Questions: []Question{
			singleChoiceQ("q1", 2, "a"),
			openTextQ("q2", 3),
		},
	})
	a, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	auto, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{Options: []string{"b"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := st.SubmitAnswer(ctx, a.ID, "q2", "stu1", Value{Text: "x"}); err != nil {
		t.Fatalf("submit essay: %v", err)
	}
	if _, err := st.CompleteAttempt(ctx, a.ID, "stu1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := st.ApplyManualGrade(ctx, a.ID, auto.ID, ManualGradeInput{Points: 2, Correct: true}, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("override auto-graded answer: got %v, want ErrNotFound", err)
	}
}

func TestUpdateQuiz_PublishedQuestionsImmutable(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()
	z := Quiz{
		ID: "z1", CourseID: "c1", OwnerID: "t1", Title: "T", MaxAttempts: 1,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	}
	seedQuiz(t, st, z)
	if _, err := st.PublishQuiz(ctx, "z1", "t1"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	z.Title = "T2"
	z.Questions = []Question{singleChoiceQ("q9", 1, "a")}
	if err := st.UpdateQuiz(ctx, z); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("question edit after publish: got %v, want ErrInvalidState", err)
	}

	// Metadata edits stay allowed.
	z.Questions = nil
	if err := st.UpdateQuiz(ctx, z); err != nil {
		t.Fatalf("metadata update: %v", err)
	}
	got, err := st.GetQuizAdmin(ctx, "z1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "T2" || !got.Published || len(got.Questions) != 1 || got.Questions[0].ID != "q1" {
		t.Fatalf("update mangled the quiz: %+v", got)
	}
}

func TestListAttempts_Filters(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	enrollStudent(t, dbh, "stu2", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 2,
		Active: true, Published: true,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})
	a1, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start stu1: %v", err)
	}
	if _, err := st.CompleteAttempt(ctx, a1.ID, "stu1"); err != nil {
		t.Fatalf("complete stu1: %v", err)
	}
	if _, _, err := st.StartAttempt(ctx, "z1", "stu2"); err != nil {
		t.Fatalf("start stu2: %v", err)
	}

	mine, err := st.ListAttempts(ctx, AttemptListOpts{QuizID: "z1", StudentID: "stu1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].StudentID != "stu1" {
		t.Fatalf("student filter returned %+v", mine)
	}

	open, err := st.ListAttempts(ctx, AttemptListOpts{QuizID: "z1", Status: "in_progress"})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].StudentID != "stu2" {
		t.Fatalf("status filter returned %+v", open)
	}
}

func TestUpdateQuiz_MetadataEditPreservesAnswers(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	z := Quiz{
		ID: "z1", CourseID: "c1", OwnerID: "t1", Title: "T", MaxAttempts: 1,
		Active: true, Published: true,
		Questions: []Question{singleChoiceQ("q1", 2, "a")},
	}
	seedQuiz(t, st, z)

	a, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := st.SubmitAnswer(ctx, a.ID, "q1", "stu1", Value{Options: []string{"a"}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := st.CompleteAttempt(ctx, a.ID, "stu1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusGraded {
		t.Fatalf("status = %s, want graded", done.Status)
	}

	z.Title = "T renamed"
	z.Questions = nil
	if err := st.UpdateQuiz(ctx, z); err != nil {
		t.Fatalf("metadata update: %v", err)
	}

	answers, err := st.GetAttemptAnswers(ctx, a.ID)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answers after metadata update = %d, want 1", len(answers))
	}
	if answers[0].Correct == nil || !*answers[0].Correct || *answers[0].Points != 2 {
		t.Fatalf("graded answer mangled by update: %+v", answers[0])
	}
	got, err := st.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != StatusGraded || got.Score == nil || *got.Score != 100 {
		t.Fatalf("graded attempt mangled by update: %+v", got)
	}
}

func TestPutQuiz_RejectsForeignQuestionID(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 1,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})

	err := st.PutQuiz(ctx, Quiz{
		ID: "z2", CourseID: "c1", Title: "T2", MaxAttempts: 1,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("reused question id: got %v, want ErrInvalidState", err)
	}

	// The first quiz keeps its question.
	got, err := st.GetQuizAdmin(ctx, "z1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Questions) != 1 || got.Questions[0].ID != "q1" {
		t.Fatalf("original quiz lost its question: %+v", got.Questions)
	}
}

func TestStartAttempt_ResumesOnDeactivatedQuiz(t *testing.T) {
	st, dbh, _ := newTestStore(t)
	ctx := context.Background()
	enrollStudent(t, dbh, "stu1", "c1")
	enrollStudent(t, dbh, "stu2", "c1")
	seedQuiz(t, st, Quiz{
		ID: "z1", CourseID: "c1", Title: "T", MaxAttempts: 1,
		Active: true, Published: true,
		Questions: []Question{singleChoiceQ("q1", 1, "a")},
	})
	a1, _, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := dbh.Exec(`UPDATE quizzes SET active=$1 WHERE id=$2`, false, "z1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	a2, qs, err := st.StartAttempt(ctx, "z1", "stu1")
	if err != nil {
		t.Fatalf("resume after deactivation: %v", err)
	}
	if a2.ID != a1.ID {
		t.Fatalf("resume opened a new attempt %s, want %s", a2.ID, a1.ID)
	}
	if len(qs) != 1 {
		t.Fatalf("resumed view has %d questions, want 1", len(qs))
	}

	// A student without an open attempt still cannot start one.
	if _, _, err := st.StartAttempt(ctx, "z1", "stu2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fresh start on inactive quiz: got %v, want ErrNotFound", err)
	}
}
