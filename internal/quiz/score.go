package quiz

import "math"

// Aggregate is the recomputed scoring snapshot for one attempt.
type Aggregate struct {
	PointsEarned float64
	MaxPoints    float64
	AllResolved  bool
	Score        *float64 // nil until every answer is resolved
}

// Recompute derives the attempt aggregate from its recorded answers.
// Only answered questions count on either side of the ratio: a skipped
// question earns nothing and adds nothing to MaxPoints. Answers awaiting
// manual grading contribute 0 earned points until resolved.
func Recompute(answers []Answer, pointsByQuestion map[string]float64) Aggregate {
	agg := Aggregate{AllResolved: true}
	for _, a := range answers {
		agg.MaxPoints += pointsByQuestion[a.QuestionID]
		if a.Correct == nil {
			agg.AllResolved = false
			continue
		}
		if a.Points != nil {
			agg.PointsEarned += *a.Points
		}
	}
	if agg.AllResolved {
		s := 0.0
		if agg.MaxPoints > 0 {
			s = round1(agg.PointsEarned / agg.MaxPoints * 100)
		}
		agg.Score = &s
	}
	return agg
}

// round1 rounds to one decimal place, standard half-away-from-zero.
func round1(x float64) float64 { return math.Round(x*10) / 10 }
