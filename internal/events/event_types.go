package events

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionIssued  EventType = "session_issued"
	EventSessionRotated EventType = "session_rotated"
	EventSessionRevoked EventType = "session_revoked"
	EventTheftDetected  EventType = "theft_detected"
)

// Event represents a session lifecycle change. Token strings are never
// carried on events.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id,omitempty"`
	DeviceID  string      `json:"device_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TheftPayload describes why a session was flagged.
type TheftPayload struct {
	Reason     string `json:"reason"`
	Credential string `json:"credential"`
}

// RevokedPayload describes why a session was revoked.
type RevokedPayload struct {
	Reason string `json:"reason"`
}

// Theft reasons.
const (
	ReasonCacheMiss        = "cache_miss"
	ReasonCacheMismatch    = "cache_mismatch"
	ReasonSubjectMismatch  = "subject_mismatch"
	ReasonAsymmetricCookie = "asymmetric_cookies"
	ReasonLogout           = "logout"
)

// NewEvent stamps an event with a ULID and the current time.
func NewEvent(eventType EventType, subjectID, deviceID string, payload interface{}) Event {
	return Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		SubjectID: subjectID,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
