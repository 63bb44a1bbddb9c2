package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/QaEldaniz/futureup-academy-sub000/internal/quiz"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/rbac"
)

// POST /attempts  { "quiz_id": "..." }
// Idempotent: if the caller already has an open attempt on this quiz, it is
// resumed instead of duplicated.
func StartAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuizID string `json:"quiz_id" validate:"required"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		a, questions, err := store.StartAttempt(r.Context(), req.QuizID, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, struct {
			Attempt   quiz.Attempt    `json:"attempt"`
			Questions []quiz.Question `json:"questions"`
		}{a, questions})
	}
}

// POST /attempts/{attemptID}/answers  { "question_id": "...", "value": {...} }
// Resubmitting a question replaces the prior answer while the attempt is open.
func SubmitAnswerHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		var req struct {
			QuestionID string     `json:"question_id" validate:"required"`
			Value      quiz.Value `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		ans, err := store.SubmitAnswer(r.Context(), attemptID, req.QuestionID,
			rbac.SubjectFromContext(r.Context()), req.Value)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, ans)
	}
}

// POST /attempts/{attemptID}/complete
func CompleteAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		a, err := store.CompleteAttempt(r.Context(), attemptID, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// GET /attempts?quiz_id=...&student_id=...&status=...&limit=50&offset=0
// Callers without attempt:view-all only ever see their own attempts.
func ListAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())

		qp := r.URL.Query()
		studentID := strings.TrimSpace(qp.Get("student_id"))
		if role != "admin" && role != "instructor" {
			studentID = sub
		}
		list, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			QuizID:    strings.TrimSpace(qp.Get("quiz_id")),
			StudentID: studentID,
			Status:    strings.TrimSpace(qp.Get("status")),
			Limit:     parseIntDefault(qp.Get("limit"), 50),
			Offset:    parseIntDefault(qp.Get("offset"), 0),
			Sort:      strings.TrimSpace(qp.Get("sort")),
		})
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, list)
	}
}

type resultItem struct {
	QuestionID  string            `json:"question_id"`
	Type        quiz.QuestionType `json:"type"`
	Prompt      string            `json:"prompt"`
	Value       quiz.Value        `json:"value"`
	MaxPoints   float64           `json:"max_points"`
	Correct     *bool             `json:"correct,omitempty"`
	Points      *float64          `json:"points,omitempty"`
	Explanation string            `json:"explanation,omitempty"`
}

type attemptResult struct {
	Attempt quiz.Attempt `json:"attempt"`
	Items   []resultItem `json:"items,omitempty"`
}

// GET /attempts/{attemptID} — results view. Students see their own attempts
// only; per-question correctness and explanations are revealed per the quiz's
// show_results setting, while graders always see everything.
func GetAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		grader := role == "admin" || role == "instructor"

		a, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			fail(w, err)
			return
		}
		if !grader && a.StudentID != sub {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		answers, err := store.GetAttemptAnswers(r.Context(), attemptID)
		if err != nil {
			fail(w, err)
			return
		}
		z, err := store.GetQuizAdmin(r.Context(), a.QuizID)
		if err != nil {
			fail(w, err)
			return
		}

		reveal := grader || z.ShowResults
		byQuestion := map[string]quiz.Question{}
		for _, q := range z.Questions {
			byQuestion[q.ID] = q
		}
		res := attemptResult{Attempt: a}
		for _, ans := range answers {
			q := byQuestion[ans.QuestionID]
			item := resultItem{
				QuestionID: ans.QuestionID,
				Type:       q.Type,
				Prompt:     q.Prompt,
				Value:      ans.Value,
				MaxPoints:  q.Points,
			}
			if reveal {
				item.Correct = ans.Correct
				item.Points = ans.Points
				item.Explanation = q.Explanation
			}
			res.Items = append(res.Items, item)
		}
		writeJSON(w, res)
	}
}
