package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/QaEldaniz/futureup-academy-sub000/internal/quiz"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/rbac"
)

type questionReq struct {
	ID          string        `json:"id,omitempty"`
	Type        string        `json:"type" validate:"required"`
	Prompt      string        `json:"prompt" validate:"required"`
	Options     []quiz.Option `json:"options,omitempty"`
	AnswerKey   []string      `json:"answer_key,omitempty"`
	Points      float64       `json:"points" validate:"gt=0"`
	Explanation string        `json:"explanation,omitempty"`
}

type quizReq struct {
	CourseID     string        `json:"course_id" validate:"required"`
	Title        string        `json:"title" validate:"required"`
	Description  string        `json:"description,omitempty"`
	TimeLimitMin int           `json:"time_limit_min" validate:"gte=0"`
	MaxAttempts  int           `json:"max_attempts" validate:"gte=1"`
	PassingScore *float64      `json:"passing_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	ShowResults  bool          `json:"show_results"`
	Shuffle      bool          `json:"shuffle_questions"`
	Questions    []questionReq `json:"questions" validate:"dive"`
}

func (req quizReq) toQuiz(id, ownerID string) quiz.Quiz {
	z := quiz.Quiz{
		ID:           id,
		CourseID:     req.CourseID,
		OwnerID:      ownerID,
		Title:        req.Title,
		Description:  req.Description,
		TimeLimitMin: req.TimeLimitMin,
		MaxAttempts:  req.MaxAttempts,
		PassingScore: req.PassingScore,
		ShowResults:  req.ShowResults,
		Shuffle:      req.Shuffle,
		Active:       true,
	}
	for _, q := range req.Questions {
		qid := q.ID
		if qid == "" {
			qid = uuid.NewString()
		}
		z.Questions = append(z.Questions, quiz.Question{
			ID:          qid,
			Type:        quiz.QuestionType(q.Type),
			Prompt:      q.Prompt,
			Options:     q.Options,
			AnswerKey:   q.AnswerKey,
			Points:      q.Points,
			Explanation: q.Explanation,
		})
	}
	return z
}

func decodeQuizReq(w http.ResponseWriter, r *http.Request) (quizReq, bool) {
	var req quizReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// POST /quizzes
func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeQuizReq(w, r)
		if !ok {
			return
		}
		z := req.toQuiz(uuid.NewString(), rbac.SubjectFromContext(r.Context()))
		if err := store.PutQuiz(r.Context(), z); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, z)
	}
}

// PUT /quizzes/{quizID}
func UpdateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "quizID"))
		if id == "" {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		req, ok := decodeQuizReq(w, r)
		if !ok {
			return
		}
		z := req.toQuiz(id, rbac.SubjectFromContext(r.Context()))
		if err := store.UpdateQuiz(r.Context(), z); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, z)
	}
}

// POST /quizzes/{quizID}/publish
func PublishQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "quizID"))
		if id == "" {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		z, err := store.PublishQuiz(r.Context(), id, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, z)
	}
}

// GET /quizzes/{quizID} — students get the safe view, graders the full quiz.
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "quizID"))
		role := rbac.RoleFromContext(r.Context())
		var (
			z   quiz.Quiz
			err error
		)
		if role == "instructor" || role == "admin" {
			z, err = store.GetQuizAdmin(r.Context(), id)
		} else {
			z, err = store.GetQuiz(r.Context(), id)
		}
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, z)
	}
}

// GET /quizzes?q=...&course_id=...&limit=50&offset=0
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qp := r.URL.Query()
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			Q:          strings.TrimSpace(qp.Get("q")),
			CourseID:   strings.TrimSpace(qp.Get("course_id")),
			Limit:      parseIntDefault(qp.Get("limit"), 50),
			Offset:     parseIntDefault(qp.Get("offset"), 0),
			ViewerID:   rbac.SubjectFromContext(r.Context()),
			ViewerRole: rbac.RoleFromContext(r.Context()),
		})
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, list)
	}
}
