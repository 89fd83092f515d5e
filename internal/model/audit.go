package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateActa         = "CREATE_ACTA"
	ActionAddActaParticipant = "ADD_ACTA_PARTICIPANT"
	ActionSubmitActa         = "SUBMIT_ACTA"
	ActionApproveParticipant = "APPROVE_ACTA_PARTICIPANT"
	ActionActaApproved       = "ACTA_APPROVED"
	ActionActaSent           = "ACTA_SENT"
	ActionUploadActaDocument = "UPLOAD_ACTA_DOCUMENT"
	ActionRenderActaPDF      = "RENDER_ACTA_PDF"
	ActionCreateProceso      = "CREATE_PROCESO"
	ActionCreateUser         = "CREATE_USER"
)

// AuditLog tracks who did what to which entity.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for participant actions via capability link
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Actor      string     `gorm:"type:varchar(255)" json:"actor,omitempty"` // participant name when UserID is nil
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
