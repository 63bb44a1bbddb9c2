package grading

import "context"

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type      string
	Points    float64
	AnswerKey []string
}

// Result is the outcome of grading a single submitted answer.
// Correct and Points are nil exactly when instructor review is required.
type Result struct {
	Correct     *bool
	Points      *float64
	NeedsManual bool
}

func resolved(correct bool, points float64) Result {
	return Result{Correct: &correct, Points: &points}
}

// Strategy grades one question type. Selected is the normalized set of
// option IDs the student chose; it is empty for free-text types.
type Strategy interface {
	Grade(ctx context.Context, q Q, selected []string) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, selected []string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, selected []string) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		// Unrecognized types are never auto-resolved.
		return Result{NeedsManual: true}
	}
	return s.Grade(ctx, q, selected)
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"single-choice": choiceStrategy{},
			"true-false":    choiceStrategy{},
			"multi-select":  choiceStrategy{},
			"open-text":     manualStrategy{},
			"code":          manualStrategy{},
		},
	}
}

// choiceStrategy awards full points iff the submitted set equals the answer
// key as an order-independent set. No partial credit: a subset or superset of
// a multi-select key scores zero.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, selected []string) Result {
	if setEqual(toSet(selected), toSet(q.AnswerKey)) {
		return resolved(true, q.Points)
	}
	return resolved(false, 0)
}

// manualStrategy defers open-text and code answers to an instructor.
type manualStrategy struct{}

func (manualStrategy) Grade(_ context.Context, _ Q, _ []string) Result {
	return Result{NeedsManual: true}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
