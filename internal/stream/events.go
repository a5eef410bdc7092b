package stream

import "time"

type EventType string

const (
	EventScoresUpdated  EventType = "scores.updated"
	EventClassification EventType = "classification.completed"
	EventSessionStopped EventType = "session.stopped"
)

type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
