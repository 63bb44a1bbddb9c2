package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// EventLogSink appends notification events to the event_log table, where the
// external delivery worker picks them up by offset.
type EventLogSink struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventLogSink(db *sql.DB) *EventLogSink {
	return &EventLogSink{db: db, now: time.Now}
}

func (s *EventLogSink) Publish(ctx context.Context, e Event) error {
	data := "{}"
	if e.Data != nil {
		buf, err := json.Marshal(e.Data)
		if err != nil {
			return err
		}
		data = string(buf)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_log (recipient_id, kind, subject, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.RecipientID, e.Kind, e.Subject, data, s.now().Unix())
	return err
}
