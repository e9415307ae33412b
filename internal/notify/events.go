// Package notify appends lifecycle events to a durable log. Downstream
// alerting (mail, push) tails the log; the core never blocks on delivery.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/examgate/examgate/internal/exam"
)

const (
	EventAttemptSubmitted = "AttemptSubmitted"
	EventResultReleased   = "ResultReleased"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string // natural key: attempt ID
	DataJSON  string
	CreatedAt int64
}

// EventLog writes events to the event_log table. Append failures are logged
// and swallowed: notifications are best-effort and must never fail a
// lifecycle transition.
type EventLog struct {
	db     *sql.DB
	siteID string
}

func NewEventLog(db *sql.DB, siteID string) *EventLog {
	if siteID == "" {
		siteID = "local"
	}
	return &EventLog{db: db, siteID: siteID}
}

func (l *EventLog) AttemptSubmitted(ctx context.Context, a exam.Attempt) {
	l.append(ctx, EventAttemptSubmitted, a)
}

func (l *EventLog) ResultReleased(ctx context.Context, a exam.Attempt) {
	l.append(ctx, EventResultReleased, a)
}

func (l *EventLog) append(ctx context.Context, typ string, a exam.Attempt) {
	data, _ := json.Marshal(map[string]any{
		"attempt_id": a.ID,
		"exam_id":    a.ExamID,
		"user_id":    a.UserID,
		"status":     a.Status,
		"score":      a.Score,
	})
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.siteID, typ, a.ID, string(data), time.Now().Unix())
	if err != nil {
		log.Printf("event log append %s for attempt %s: %v", typ, a.ID, err)
	}
}
