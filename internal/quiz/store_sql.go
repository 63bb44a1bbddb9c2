package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/QaEldaniz/futureup-academy-sub000/internal/enroll"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/grading"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/notify"
)

// SQLStore implements Store on database/sql ("sqlite" or "postgres" driver).
// Attempt lifecycle transitions run inside transactions; notifications are
// published best-effort after commit.
type SQLStore struct {
	db     *sql.DB
	driver string
	grader grading.Grader
	enroll enroll.Checker
	sink   notify.Sink
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string, g grading.Grader, e enroll.Checker, sink notify.Sink) *SQLStore {
	return &SQLStore{db: db, driver: driver, grader: g, enroll: e, sink: sink, now: time.Now}
}

// SetClock overrides the store's time source. Tests use it to simulate
// elapsed time for the lazy time-limit check.
func (s *SQLStore) SetClock(now func() time.Time) { s.now = now }

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

/* ---------------------------------- quizzes ---------------------------------- */

func (s *SQLStore) PutQuiz(ctx context.Context, z Quiz) error {
	if err := z.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO quizzes
		(id, course_id, owner_id, title, description, time_limit_min, max_attempts,
		 passing_score, show_results, shuffle_questions, active, published, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, description=EXCLUDED.description,
		  time_limit_min=EXCLUDED.time_limit_min, max_attempts=EXCLUDED.max_attempts,
		  passing_score=EXCLUDED.passing_score, show_results=EXCLUDED.show_results,
		  shuffle_questions=EXCLUDED.shuffle_questions, active=EXCLUDED.active`,
		z.ID, z.CourseID, z.OwnerID, z.Title, z.Description, z.TimeLimitMin, z.MaxAttempts,
		z.PassingScore, z.ShowResults, z.Shuffle, z.Active, z.Published, s.now().Unix()); err != nil {
		return err
	}

	// Reconcile questions in place. Recorded answers reference question rows
	// with ON DELETE CASCADE, so existing questions are updated by ID and only
	// rows dropped from the definition are deleted.
	existing := map[string]bool{}
	rows, err := tx.QueryContext(ctx, `SELECT id FROM questions WHERE quiz_id=$1`, z.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	keep := map[string]bool{}
	for i, q := range z.Questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		keep[q.ID] = true
		oj, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		kj, err := json.Marshal(q.AnswerKey)
		if err != nil {
			return err
		}
		if existing[q.ID] {
			if _, err := tx.ExecContext(ctx, `UPDATE questions SET type=$1, prompt=$2,
				options_json=$3, answer_key_json=$4, points=$5, explanation=$6, position=$7
				WHERE id=$8 AND quiz_id=$9`,
				string(q.Type), q.Prompt, string(oj), string(kj), q.Points, q.Explanation, i,
				q.ID, z.ID); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions
			(id, quiz_id, type, prompt, options_json, answer_key_json, points, explanation, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			q.ID, z.ID, string(q.Type), q.Prompt, string(oj), string(kj), q.Points, q.Explanation, i); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("question id %s is already in use: %w", q.ID, ErrInvalidState)
			}
			return err
		}
	}
	for id := range existing {
		if keep[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, z Quiz) error {
	cur, err := s.getQuiz(ctx, s.db, z.ID, false)
	if err != nil {
		return err
	}
	if cur.Published && len(z.Questions) > 0 {
		return fmt.Errorf("questions of a published quiz are immutable: %w", ErrInvalidState)
	}
	if cur.OwnerID != "" && z.OwnerID != cur.OwnerID {
		return fmt.Errorf("quiz %s is owned by another instructor: %w", z.ID, ErrForbidden)
	}
	z.Published = cur.Published
	if len(z.Questions) == 0 {
		z.Questions = cur.Questions
	}
	return s.PutQuiz(ctx, z)
}

// PublishQuiz marks the quiz published and fans a quiz-published event out to
// every actively enrolled student of its course.
func (s *SQLStore) PublishQuiz(ctx context.Context, quizID, ownerID string) (Quiz, error) {
	z, err := s.getQuiz(ctx, s.db, quizID, false)
	if err != nil {
		return Quiz{}, err
	}
	if z.OwnerID != "" && ownerID != z.OwnerID {
		return Quiz{}, fmt.Errorf("quiz %s is owned by another instructor: %w", quizID, ErrForbidden)
	}
	if len(z.Questions) == 0 {
		return Quiz{}, fmt.Errorf("quiz %s: %w", quizID, ErrEmptyQuiz)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET published=$1, active=$2 WHERE id=$3`, true, true, quizID); err != nil {
		return Quiz{}, err
	}
	z.Published = true
	z.Active = true

	if s.sink != nil && s.enroll != nil {
		students, err := s.enroll.Roster(ctx, z.CourseID)
		if err != nil {
			log.Printf("publish %s: roster lookup failed: %v", quizID, err)
			return z, nil
		}
		for _, sid := range students {
			s.publish(ctx, notify.Event{
				RecipientID: sid,
				Kind:        notify.KindQuizPublished,
				Subject:     z.Title,
				Data:        map[string]any{"quiz_id": z.ID, "course_id": z.CourseID},
			})
		}
	}
	return z, nil
}

// GetQuiz returns the student-safe view: answer keys and explanations stripped.
func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	z, err := s.getQuiz(ctx, s.db, id, false)
	if err != nil {
		return Quiz{}, err
	}
	z.Questions = StudentView(z.Questions)
	return z, nil
}

func (s *SQLStore) GetQuizAdmin(ctx context.Context, id string) (Quiz, error) {
	return s.getQuiz(ctx, s.db, id, false)
}

func (s *SQLStore) getQuiz(ctx context.Context, q dbtx, id string, activeOnly bool) (Quiz, error) {
	row := q.QueryRowContext(ctx, `SELECT id, course_id, owner_id, title, description,
		time_limit_min, max_attempts, passing_score, show_results, shuffle_questions,
		active, published, created_at FROM quizzes WHERE id=$1`, id)
	var z Quiz
	var passing sql.NullFloat64
	if err := row.Scan(&z.ID, &z.CourseID, &z.OwnerID, &z.Title, &z.Description,
		&z.TimeLimitMin, &z.MaxAttempts, &passing, &z.ShowResults, &z.Shuffle,
		&z.Active, &z.Published, &z.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return Quiz{}, err
	}
	if passing.Valid {
		z.PassingScore = &passing.Float64
	}
	if activeOnly && (!z.Active || !z.Published) {
		return Quiz{}, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}

	rows, err := q.QueryContext(ctx, `SELECT id, type, prompt, options_json,
		answer_key_json, points, explanation, position
		FROM questions WHERE quiz_id=$1 ORDER BY position`, id)
	if err != nil {
		return Quiz{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var qn Question
		var typ, oj, kj string
		if err := rows.Scan(&qn.ID, &typ, &qn.Prompt, &oj, &kj, &qn.Points, &qn.Explanation, &qn.Position); err != nil {
			return Quiz{}, err
		}
		qn.QuizID = id
		qn.Type = QuestionType(typ)
		if oj != "" {
			if err := json.Unmarshal([]byte(oj), &qn.Options); err != nil {
				return Quiz{}, err
			}
		}
		if kj != "" {
			if err := json.Unmarshal([]byte(kj), &qn.AnswerKey); err != nil {
				return Quiz{}, err
			}
		}
		z.Questions = append(z.Questions, qn)
	}
	return z, rows.Err()
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error) {
	where := []string{"1=1"}
	args := []any{}
	n := 0
	add := func(cond string, v any) {
		n++
		where = append(where, fmt.Sprintf(cond, n))
		args = append(args, v)
	}
	if opts.Q != "" {
		add("LOWER(q.title) LIKE $%d", "%"+strings.ToLower(opts.Q)+"%")
	}
	if opts.CourseID != "" {
		add("q.course_id=$%d", opts.CourseID)
	}
	switch opts.ViewerRole {
	case "admin":
		// all quizzes
	case "instructor":
		add("(q.published OR q.owner_id=$%d)", opts.ViewerID)
	default:
		where = append(where, "q.published AND q.active")
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	n++
	args = append(args, limit)
	limClause := fmt.Sprintf("LIMIT $%d", n)
	n++
	args = append(args, opts.Offset)
	offClause := fmt.Sprintf("OFFSET $%d", n)

	rows, err := s.db.QueryContext(ctx, `SELECT q.id, q.course_id, q.title,
		q.time_limit_min, q.max_attempts, q.passing_score, q.published, q.active,
		(SELECT COUNT(*) FROM questions WHERE quiz_id=q.id)
		FROM quizzes q WHERE `+strings.Join(where, " AND ")+
		` ORDER BY q.created_at DESC `+limClause+" "+offClause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuizSummary{}
	for rows.Next() {
		var sum QuizSummary
		var passing sql.NullFloat64
		if err := rows.Scan(&sum.ID, &sum.CourseID, &sum.Title, &sum.TimeLimitMin,
			&sum.MaxAttempts, &passing, &sum.Published, &sum.Active, &sum.Questions); err != nil {
			return nil, err
		}
		if passing.Valid {
			sum.PassingScore = &passing.Float64
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

/* ---------------------------------- attempts ---------------------------------- */

// StartAttempt opens a new attempt, or resumes the student's open attempt on
// this quiz if one exists. The returned question view has grading material
// stripped and is shuffled per call when the quiz asks for it.
func (s *SQLStore) StartAttempt(ctx context.Context, quizID, studentID string) (Attempt, []Question, error) {
	// Resume comes first: an already-open attempt survives the quiz being
	// deactivated or the enrollment lapsing mid-attempt.
	if a, err := s.openAttempt(ctx, quizID, studentID); err == nil {
		z, err := s.getQuiz(ctx, s.db, quizID, false)
		if err != nil {
			return Attempt{}, nil, err
		}
		return a, questionView(z), nil
	} else if !errors.Is(err, ErrNotFound) {
		return Attempt{}, nil, err
	}

	z, err := s.getQuiz(ctx, s.db, quizID, true)
	if err != nil {
		return Attempt{}, nil, err
	}
	if s.enroll != nil {
		ok, err := s.enroll.Enrolled(ctx, studentID, z.CourseID)
		if err != nil {
			return Attempt{}, nil, err
		}
		if !ok {
			return Attempt{}, nil, fmt.Errorf("student %s is not enrolled in course %s: %w",
				studentID, z.CourseID, ErrForbidden)
		}
	}
	if len(z.Questions) == 0 {
		return Attempt{}, nil, fmt.Errorf("quiz %s: %w", quizID, ErrEmptyQuiz)
	}

	view := questionView(z)

	var finished int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE quiz_id=$1 AND student_id=$2 AND status<>$3`,
		quizID, studentID, string(StatusInProgress)).Scan(&finished); err != nil {
		return Attempt{}, nil, err
	}
	if finished >= z.MaxAttempts {
		return Attempt{}, nil, fmt.Errorf("%d of %d attempts used: %w",
			finished, z.MaxAttempts, ErrAttemptLimit)
	}

	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		StudentID: studentID,
		Status:    StatusInProgress,
		StartedAt: s.now(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, quiz_id, student_id, status, started_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		a.ID, quizID, studentID, string(a.Status), a.StartedAt.Unix()); err != nil {
		// The partial unique index on (quiz_id, student_id, status=in_progress)
		// turns a concurrent double-start into a conflict; resume the winner.
		if isUniqueViolation(err) {
			open, rerr := s.openAttempt(ctx, quizID, studentID)
			if rerr != nil {
				return Attempt{}, nil, err
			}
			return open, view, nil
		}
		return Attempt{}, nil, err
	}
	return a, view, nil
}

// SubmitAnswer records (or replaces) the student's answer for one question of
// an open attempt, grading it on the way in. When the quiz's time limit has
// lapsed, the attempt is closed as TIMED_OUT and the submission is rejected.
func (s *SQLStore) SubmitAnswer(ctx context.Context, attemptID, questionID, studentID string, v Value) (Answer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Answer{}, err
	}
	defer tx.Rollback()

	a, err := s.getAttempt(ctx, tx, attemptID)
	if err != nil {
		return Answer{}, err
	}
	if a.StudentID != studentID {
		return Answer{}, fmt.Errorf("attempt %s belongs to another student: %w", attemptID, ErrForbidden)
	}
	if a.Status != StatusInProgress {
		return Answer{}, fmt.Errorf("attempt %s is %s: %w", attemptID, a.Status, ErrInvalidState)
	}

	z, err := s.getQuiz(ctx, tx, a.QuizID, false)
	if err != nil {
		return Answer{}, err
	}
	if z.TimeLimitMin > 0 {
		elapsed := s.now().Sub(a.StartedAt)
		if elapsed > time.Duration(z.TimeLimitMin)*time.Minute {
			if err := s.closeTimedOut(ctx, tx, a); err != nil {
				return Answer{}, err
			}
			if err := tx.Commit(); err != nil {
				return Answer{}, err
			}
			return Answer{}, fmt.Errorf("attempt %s closed after %s: %w",
				attemptID, elapsed.Round(time.Second), ErrTimeExceeded)
		}
	}

	var qn *Question
	for i := range z.Questions {
		if z.Questions[i].ID == questionID {
			qn = &z.Questions[i]
			break
		}
	}
	if qn == nil {
		return Answer{}, fmt.Errorf("question %s does not belong to quiz %s: %w",
			questionID, a.QuizID, ErrNotFound)
	}

	res := s.grader.Grade(ctx, grading.Q{
		Type:      string(qn.Type),
		Points:    qn.Points,
		AnswerKey: qn.AnswerKey,
	}, v.SelectionFor(qn.Type))

	vj, err := json.Marshal(v)
	if err != nil {
		return Answer{}, err
	}
	// Resubmission before completion replaces the prior answer in place.
	if _, err := tx.ExecContext(ctx, `INSERT INTO answers
		(id, attempt_id, question_id, value_json, correct, points, graded_by, graded_at)
		VALUES ($1,$2,$3,$4,$5,$6,'',NULL)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
		  value_json=EXCLUDED.value_json, correct=EXCLUDED.correct,
		  points=EXCLUDED.points, feedback='', graded_by='', graded_at=NULL`,
		uuid.NewString(), attemptID, questionID, string(vj), res.Correct, res.Points); err != nil {
		return Answer{}, err
	}
	ans := Answer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Value:      v,
		Correct:    res.Correct,
		Points:     res.Points,
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM answers WHERE attempt_id=$1 AND question_id=$2`,
		attemptID, questionID).Scan(&ans.ID); err != nil {
		return Answer{}, err
	}
	return ans, tx.Commit()
}

// CompleteAttempt closes an open attempt and recomputes its aggregate. The
// attempt lands in GRADED when every answer is resolved, otherwise COMPLETED
// with a null score pending manual grading.
func (s *SQLStore) CompleteAttempt(ctx context.Context, attemptID, studentID string) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	a, err := s.getAttempt(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.StudentID != studentID {
		return Attempt{}, fmt.Errorf("attempt %s belongs to another student: %w", attemptID, ErrForbidden)
	}
	if a.Status != StatusInProgress {
		return Attempt{}, fmt.Errorf("attempt %s is %s: %w", attemptID, a.Status, ErrInvalidState)
	}

	z, err := s.getQuiz(ctx, tx, a.QuizID, false)
	if err != nil {
		return Attempt{}, err
	}
	answers, err := s.answers(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}

	agg := Recompute(answers, pointsByQuestion(z.Questions))
	now := s.now()
	a.Status = StatusCompleted
	if agg.AllResolved {
		a.Status = StatusGraded
	}
	a.CompletedAt = &now
	a.TimeSpentSec = int(now.Sub(a.StartedAt).Seconds())
	a.PointsEarned = agg.PointsEarned
	a.MaxPoints = agg.MaxPoints
	a.Score = agg.Score
	a.Passed = passed(z, agg)

	if _, err := tx.ExecContext(ctx, `UPDATE attempts SET status=$1, completed_at=$2,
		time_spent_sec=$3, score=$4, points_earned=$5, max_points=$6, passed=$7
		WHERE id=$8`,
		string(a.Status), now.Unix(), a.TimeSpentSec, a.Score, a.PointsEarned,
		a.MaxPoints, a.Passed, attemptID); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}

	if a.Status == StatusGraded {
		s.notifyGraded(ctx, z, a)
	}
	return a, nil
}

/* ------------------------------- manual grading ------------------------------- */

// GetGradingItems lists the attempt's manually graded questions (open-text and
// code) with the student's submissions and the instructor-only grading hints.
// The worklist carries answer-key hints, so it is limited to the quiz's owner.
func (s *SQLStore) GetGradingItems(ctx context.Context, attemptID, viewerID string) ([]GradingItem, error) {
	a, err := s.getAttempt(ctx, s.db, attemptID)
	if err != nil {
		return nil, err
	}
	z, err := s.getQuiz(ctx, s.db, a.QuizID, false)
	if err != nil {
		return nil, err
	}
	if z.OwnerID != "" && viewerID != z.OwnerID {
		return nil, fmt.Errorf("quiz %s is owned by another instructor: %w", z.ID, ErrForbidden)
	}
	answers, err := s.answers(ctx, s.db, attemptID)
	if err != nil {
		return nil, err
	}
	byQuestion := map[string]Answer{}
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}
	items := []GradingItem{}
	for _, qn := range z.Questions {
		if !qn.Type.Manual() {
			continue
		}
		ans, ok := byQuestion[qn.ID]
		if !ok {
			continue // skipped question: nothing to grade
		}
		items = append(items, GradingItem{
			AnswerID:   ans.ID,
			QuestionID: qn.ID,
			Type:       qn.Type,
			Prompt:     qn.Prompt,
			Hint:       qn.AnswerKey,
			MaxPoints:  qn.Points,
			Value:      ans.Value,
			Correct:    ans.Correct,
			Points:     ans.Points,
			Feedback:   ans.Feedback,
		})
	}
	return items, nil
}

// ApplyManualGrade writes an instructor's judgment for one open-text/code
// answer and re-aggregates the attempt. Supplying the last missing judgment
// moves the attempt from COMPLETED to GRADED and notifies the student.
func (s *SQLStore) ApplyManualGrade(ctx context.Context, attemptID, answerID string, in ManualGradeInput, gradedBy string) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	a, err := s.getAttempt(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusCompleted {
		return Attempt{}, fmt.Errorf("attempt %s is %s: %w", attemptID, a.Status, ErrInvalidState)
	}
	z, err := s.getQuiz(ctx, tx, a.QuizID, false)
	if err != nil {
		return Attempt{}, err
	}
	if z.OwnerID != "" && gradedBy != z.OwnerID {
		return Attempt{}, fmt.Errorf("quiz %s is owned by another instructor: %w", z.ID, ErrForbidden)
	}

	var questionID string
	err = tx.QueryRowContext(ctx,
		`SELECT question_id FROM answers WHERE id=$1 AND attempt_id=$2`,
		answerID, attemptID).Scan(&questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("answer %s in attempt %s: %w", answerID, attemptID, ErrNotFound)
	}
	if err != nil {
		return Attempt{}, err
	}
	var qn *Question
	for i := range z.Questions {
		if z.Questions[i].ID == questionID {
			qn = &z.Questions[i]
			break
		}
	}
	if qn == nil {
		return Attempt{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if !qn.Type.Manual() {
		// Auto-graded types cannot be overridden through this path.
		return Attempt{}, fmt.Errorf("question %s is auto-graded (%s): %w", questionID, qn.Type, ErrNotFound)
	}
	if in.Points < 0 || in.Points > qn.Points {
		return Attempt{}, fmt.Errorf("points %.1f outside [0, %.1f]: %w", in.Points, qn.Points, ErrOutOfRange)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE answers SET correct=$1, points=$2, feedback=$3, graded_by=$4, graded_at=$5 WHERE id=$6`,
		in.Correct, in.Points, in.Comment, gradedBy, s.now().Unix(), answerID); err != nil {
		return Attempt{}, err
	}

	answers, err := s.answers(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	agg := Recompute(answers, pointsByQuestion(z.Questions))
	a.PointsEarned = agg.PointsEarned
	a.MaxPoints = agg.MaxPoints
	a.Score = agg.Score
	if agg.AllResolved {
		a.Status = StatusGraded
		a.Passed = passed(z, agg)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE attempts SET status=$1, score=$2,
		points_earned=$3, max_points=$4, passed=$5 WHERE id=$6`,
		string(a.Status), a.Score, a.PointsEarned, a.MaxPoints, a.Passed, attemptID); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}

	if a.Status == StatusGraded {
		s.notifyGraded(ctx, z, a)
	}
	return a, nil
}

/* ---------------------------------- reads ---------------------------------- */

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.getAttempt(ctx, s.db, id)
}

func (s *SQLStore) GetAttemptAnswers(ctx context.Context, attemptID string) ([]Answer, error) {
	if _, err := s.getAttempt(ctx, s.db, attemptID); err != nil {
		return nil, err
	}
	return s.answers(ctx, s.db, attemptID)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	where := []string{"1=1"}
	args := []any{}
	n := 0
	add := func(cond string, v any) {
		n++
		where = append(where, fmt.Sprintf(cond, n))
		args = append(args, v)
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.StudentID != "" {
		add("student_id=$%d", opts.StudentID)
	}
	if opts.Status != "" {
		add("status=$%d", opts.Status)
	}
	order := "started_at DESC"
	switch opts.Sort {
	case "started_at", "started_at asc":
		order = "started_at ASC"
	case "completed_at desc":
		order = "completed_at DESC"
	case "completed_at", "completed_at asc":
		order = "completed_at ASC"
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	n++
	args = append(args, limit)
	limClause := fmt.Sprintf("LIMIT $%d", n)
	n++
	args = append(args, opts.Offset)
	offClause := fmt.Sprintf("OFFSET $%d", n)

	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE `+strings.Join(where, " AND ")+
		` ORDER BY `+order+" "+limClause+" "+offClause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

/* --------------------------------- internals --------------------------------- */

const attemptCols = `id, quiz_id, student_id, status, started_at, completed_at,
	time_spent_sec, score, points_earned, max_points, passed`

type rowScanner interface{ Scan(dest ...any) error }

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status string
	var started int64
	var completed sql.NullInt64
	var score sql.NullFloat64
	var passed sql.NullBool
	if err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &status, &started, &completed,
		&a.TimeSpentSec, &score, &a.PointsEarned, &a.MaxPoints, &passed); err != nil {
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	a.StartedAt = time.Unix(started, 0)
	if completed.Valid {
		t := time.Unix(completed.Int64, 0)
		a.CompletedAt = &t
	}
	if score.Valid {
		a.Score = &score.Float64
	}
	if passed.Valid {
		a.Passed = &passed.Bool
	}
	return a, nil
}

func (s *SQLStore) getAttempt(ctx context.Context, q dbtx, id string) (Attempt, error) {
	a, err := scanAttempt(q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) openAttempt(ctx context.Context, quizID, studentID string) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts
		 WHERE quiz_id=$1 AND student_id=$2 AND status=$3`,
		quizID, studentID, string(StatusInProgress)))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) answers(ctx context.Context, q dbtx, attemptID string) ([]Answer, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, question_id, value_json, correct,
		points, feedback, graded_by, graded_at FROM answers WHERE attempt_id=$1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		var a Answer
		var vj string
		var correct sql.NullBool
		var points sql.NullFloat64
		var gradedAt sql.NullInt64
		if err := rows.Scan(&a.ID, &a.QuestionID, &vj, &correct, &points, &a.Feedback, &a.GradedBy, &gradedAt); err != nil {
			return nil, err
		}
		a.AttemptID = attemptID
		if err := json.Unmarshal([]byte(vj), &a.Value); err != nil {
			return nil, err
		}
		if correct.Valid {
			a.Correct = &correct.Bool
		}
		if points.Valid {
			a.Points = &points.Float64
		}
		if gradedAt.Valid {
			t := time.Unix(gradedAt.Int64, 0)
			a.GradedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) closeTimedOut(ctx context.Context, tx *sql.Tx, a Attempt) error {
	now := s.now()
	_, err := tx.ExecContext(ctx,
		`UPDATE attempts SET status=$1, completed_at=$2, time_spent_sec=$3 WHERE id=$4`,
		string(StatusTimedOut), now.Unix(), int(now.Sub(a.StartedAt).Seconds()), a.ID)
	return err
}

func (s *SQLStore) notifyGraded(ctx context.Context, z Quiz, a Attempt) {
	if s.sink == nil {
		return
	}
	data := map[string]any{"attempt_id": a.ID, "quiz_id": z.ID}
	if a.Score != nil {
		data["score"] = *a.Score
	}
	if a.Passed != nil {
		data["passed"] = *a.Passed
	}
	s.publish(ctx, notify.Event{
		RecipientID: a.StudentID,
		Kind:        notify.KindQuizGraded,
		Subject:     z.Title,
		Data:        data,
	})
}

// publish is best-effort: a notification failure never rolls back grading.
func (s *SQLStore) publish(ctx context.Context, e notify.Event) {
	if err := s.sink.Publish(ctx, e); err != nil {
		log.Printf("notify %s to %s: %v", e.Kind, e.RecipientID, err)
	}
}

func pointsByQuestion(qs []Question) map[string]float64 {
	m := make(map[string]float64, len(qs))
	for _, q := range qs {
		m[q.ID] = q.Points
	}
	return m
}

func passed(z Quiz, agg Aggregate) *bool {
	if !agg.AllResolved || z.PassingScore == nil || agg.Score == nil {
		return nil
	}
	p := *agg.Score >= *z.PassingScore
	return &p
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
