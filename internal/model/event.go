package model

import "time"

const (
	EventParticipantApproved = "participant_approved"
	EventActaStatusChanged   = "acta_status_changed"
)

// ActaEvent is pushed to connected staff dashboards.
type ActaEvent struct {
	Type          string     `json:"type"`
	ActaID        string     `json:"acta_id"`
	ParticipantID string     `json:"participant_id,omitempty"`
	Status        ActaStatus `json:"status"`
	At            time.Time  `json:"at"`
}
