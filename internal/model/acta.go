package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidTransition is returned when a status change is not in the transition table.
var ErrInvalidTransition = errors.New("invalid status transition")

// ActaStatus is the lifecycle of an acta.
type ActaStatus string

const (
	ActaDraft           ActaStatus = "draft"
	ActaPendingApproval ActaStatus = "pending_approval"
	ActaApproved        ActaStatus = "approved"
	ActaSent            ActaStatus = "sent"
)

// actaTransitions holds the single allowed successor of each status.
var actaTransitions = map[ActaStatus]ActaStatus{
	ActaDraft:           ActaPendingApproval,
	ActaPendingApproval: ActaApproved,
	ActaApproved:        ActaSent,
}

func (s ActaStatus) Valid() bool {
	switch s {
	case ActaDraft, ActaPendingApproval, ActaApproved, ActaSent:
		return true
	}
	return false
}

// CanTransitionTo reports whether next directly follows s.
func (s ActaStatus) CanTransitionTo(next ActaStatus) bool {
	allowed, ok := actaTransitions[s]
	return ok && allowed == next
}

// Acta is a meeting-minutes record that needs sign-off from all of its participants.
// Actas are never deleted; they only move forward through ActaStatus.
type Acta struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string            `gorm:"type:varchar(255);not null" json:"title"`
	Content      string            `gorm:"type:text" json:"content"`
	MeetingDate  time.Time         `gorm:"type:date;not null" json:"meeting_date"`
	Location     string            `gorm:"type:varchar(255)" json:"location"`
	ProcesoID    *uuid.UUID        `gorm:"type:uuid;index" json:"proceso_id"`
	Status       ActaStatus        `gorm:"type:varchar(30);not null;default:'draft';index" json:"status"`
	CreatedBy    uuid.UUID         `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator      *User             `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	SubmittedAt  *time.Time        `json:"submitted_at"`
	ApprovedAt   *time.Time        `json:"approved_at"`
	SentAt       *time.Time        `json:"sent_at"`
	Participants []ActaParticipant `gorm:"foreignKey:ActaID" json:"participants,omitempty"`
	Documents    []ActaDocument    `gorm:"foreignKey:ActaID" json:"documents,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (a *Acta) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = ActaDraft
	}
	return nil
}

// TransitionTo moves the acta to next and stamps the matching timestamp.
func (a *Acta) TransitionTo(next ActaStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: acta %s cannot move from %s to %s", ErrInvalidTransition, a.ID, a.Status, next)
	}
	a.Status = next
	switch next {
	case ActaPendingApproval:
		a.SubmittedAt = &at
	case ActaApproved:
		a.ApprovedAt = &at
	case ActaSent:
		a.SentAt = &at
	}
	return nil
}

// IsOwnedBy reports whether userID created the acta.
func (a *Acta) IsOwnedBy(userID uuid.UUID) bool {
	return userID != uuid.Nil && a.CreatedBy == userID
}

// ActaParticipant (integrante) is a person whose approval the acta requires.
// Its ID is part of the capability signature and never changes.
type ActaParticipant struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ActaID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"acta_id"`
	FullName  string          `gorm:"type:varchar(255);not null" json:"full_name"`
	Email     string          `gorm:"type:varchar(255)" json:"email"`
	Phone     string          `gorm:"type:varchar(30)" json:"phone"`
	Position  string          `gorm:"type:varchar(120)" json:"position"`
	Ordinal   int             `gorm:"not null;default:0" json:"ordinal"`
	Approval  *ApprovalRecord `gorm:"foreignKey:ParticipantID" json:"approval,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (p *ActaParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
