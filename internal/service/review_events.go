package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/noah-isme/gema-code-review/internal/models"
)

// ReviewEvent describes a finished submission attempt.
type ReviewEvent struct {
	SessionID    string           `json:"session_id"`
	Phase        models.Phase     `json:"phase"`
	Mode         models.InputMode `json:"mode"`
	ErrorKind    models.ErrorKind `json:"error_kind,omitempty"`
	OverallScore *float64         `json:"overall_score,omitempty"`
	Attempt      int              `json:"attempt"`
	At           time.Time        `json:"at"`
}

// NewReviewEvent builds the event for a terminal snapshot.
func NewReviewEvent(snapshot models.SessionSnapshot) ReviewEvent {
	event := ReviewEvent{
		SessionID: snapshot.SessionID,
		Phase:     snapshot.Submission.Phase,
		Mode:      snapshot.Submission.Mode,
		ErrorKind: snapshot.Submission.ErrorKind,
		Attempt:   snapshot.Submission.Attempt,
		At:        snapshot.Submission.UpdatedAt.UTC(),
	}
	if snapshot.Submission.Result != nil {
		score := snapshot.Submission.Result.OverallScore
		event.OverallScore = &score
	}
	return event
}

// EventPublisher delivers review lifecycle events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event ReviewEvent) error
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSEventPublisher publishes review events on "<channelBase>.reviews".
func NewNATSEventPublisher(conn *nats.Conn, channelBase string) (EventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if strings.TrimSpace(channelBase) == "" {
		return nil, fmt.Errorf("events channel is required")
	}

	return &natsEventPublisher{
		conn:    conn,
		subject: ReviewEventSubject(channelBase),
	}, nil
}

// ReviewEventSubject converts a colon separated channel base into a NATS subject.
func ReviewEventSubject(channelBase string) string {
	return strings.ReplaceAll(strings.TrimSpace(channelBase), ":", ".") + ".reviews"
}

func (p *natsEventPublisher) Publish(ctx context.Context, event ReviewEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode review event: %w", err)
	}

	return p.conn.Publish(p.subject, payload)
}
