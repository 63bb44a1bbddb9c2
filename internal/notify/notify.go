// Package notify is the engine's outbound notification boundary. Delivery
// (mail, push, in-app) belongs to an external system; the engine only emits
// events describing what happened.
package notify

import "context"

const (
	KindQuizGraded    = "quiz-graded"
	KindQuizPublished = "quiz-published"
)

type Event struct {
	RecipientID string         `json:"recipient_id"`
	Kind        string         `json:"kind"`
	Subject     string         `json:"subject"`
	Data        map[string]any `json:"data,omitempty"`
}

type Sink interface {
	Publish(ctx context.Context, e Event) error
}
