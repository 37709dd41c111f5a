package events

import "time"

// Event defines the contract for all domain events.
type Event interface {
	// EventType returns the subject suffix for this event (e.g., "document.loaded").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeDocumentLoaded    = "document.loaded"
	TypeTurnCompleted     = "turn.completed"
	TypeArtifactGenerated = "artifact.generated"
)

// BaseEvent is the only Event implementation; constructors below fill it.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func DocumentLoaded(sessionID, documentID, name string, pages, figures int) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentLoaded,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"document_id": documentID,
			"name":        name,
			"pages":       pages,
			"figures":     figures,
		},
		OccurredAt: time.Now(),
	}
}

func TurnCompleted(sessionID, intent string, answerChars int) BaseEvent {
	return BaseEvent{
		Type: TypeTurnCompleted,
		Data: map[string]interface{}{
			"session_id":   sessionID,
			"intent":       intent,
			"answer_chars": answerChars,
		},
		OccurredAt: time.Now(),
	}
}

func ArtifactGenerated(sessionID, kind, format, name string, size int64) BaseEvent {
	return BaseEvent{
		Type: TypeArtifactGenerated,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"kind":       kind,
			"format":     format,
			"name":       name,
			"size":       size,
		},
		OccurredAt: time.Now(),
	}
}
