package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlreadyApproved is returned when a non-pending record is approved again.
var ErrAlreadyApproved = errors.New("participant already approved this acta")

// ApprovalStatus of one participant on one acta.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
)

// ApprovalRecord exists from the moment its participant is added, pre-seeded as pending.
// The unique index keeps it one row per (acta, participant).
type ApprovalRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActaID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_approval_acta_participant" json:"acta_id"`
	ParticipantID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_approval_acta_participant" json:"participant_id"`
	Status        ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ApprovedAt    *time.Time     `json:"approved_at"`
	PhotoPath     string         `gorm:"type:varchar(512)" json:"-"`
	PhotoMime     string         `gorm:"type:varchar(100)" json:"photo_mime,omitempty"`
	Signature     string         `gorm:"type:varchar(128)" json:"-"`
	ClientIP      string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`
	UserAgent     string         `gorm:"type:varchar(512)" json:"user_agent,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (r *ApprovalRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ApprovalPending
	}
	return nil
}

// ApprovalEvidence is what the approver leaves behind on the record.
type ApprovalEvidence struct {
	PhotoPath string
	PhotoMime string
	Signature string
	ClientIP  string
	UserAgent string
}

// Approve performs the only transition, pending -> approved.
// A record that is already approved is left untouched.
func (r *ApprovalRecord) Approve(at time.Time, ev ApprovalEvidence) error {
	if r.Status != ApprovalPending {
		return ErrAlreadyApproved
	}
	r.Status = ApprovalApproved
	r.ApprovedAt = &at
	r.PhotoPath = ev.PhotoPath
	r.PhotoMime = ev.PhotoMime
	r.Signature = ev.Signature
	r.ClientIP = ev.ClientIP
	r.UserAgent = ev.UserAgent
	return nil
}

// HasPhoto reports whether evidence was captured.
func (r *ApprovalRecord) HasPhoto() bool {
	return r.PhotoPath != ""
}
