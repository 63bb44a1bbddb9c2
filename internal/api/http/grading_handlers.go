package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/QaEldaniz/futureup-academy-sub000/internal/quiz"
	"github.com/QaEldaniz/futureup-academy-sub000/internal/rbac"
)

// GET /attempts/{attemptID}/grading — the instructor's worklist of open-text
// and code answers for one attempt.
func GetGradingItemsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		if attemptID == "" {
			http.Error(w, "attemptID required", http.StatusBadRequest)
			return
		}
		items, err := store.GetGradingItems(r.Context(), attemptID, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, items)
	}
}

type manualGradeReq struct {
	Points  float64 `json:"points_earned" validate:"gte=0"`
	Correct bool    `json:"is_correct"`
	Comment string  `json:"comment,omitempty"`
}

// POST /attempts/{attemptID}/grading/{answerID}
// Supplying the last missing judgment finalizes the attempt's score.
func ApplyManualGradeHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		answerID := strings.TrimSpace(chi.URLParam(r, "answerID"))
		if attemptID == "" || answerID == "" {
			http.Error(w, "attemptID and answerID required", http.StatusBadRequest)
			return
		}
		var req manualGradeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
			return
		}
		a, err := store.ApplyManualGrade(r.Context(), attemptID, answerID, quiz.ManualGradeInput{
			Points:  req.Points,
			Correct: req.Correct,
			Comment: req.Comment,
		}, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, a)
	}
}
