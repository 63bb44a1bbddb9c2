package quiz

import "math/rand"

// StudentView strips grading material from a question list before it is
// served to a student: answer keys and explanations never leave the server
// while an attempt is open.
func StudentView(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	for i := range out {
		out[i].AnswerKey = nil
		out[i].Explanation = ""
	}
	return out
}

// questionView is the presentation of a quiz's questions served to a student
// inside an attempt.
func questionView(z Quiz) []Question {
	view := StudentView(z.Questions)
	if z.Shuffle {
		view = ShuffledView(view)
	}
	return view
}

// ShuffledView returns a freshly shuffled copy of the question list.
// The order is computed per call and never persisted, so two reads of the
// same open attempt may present different orders.
func ShuffledView(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
