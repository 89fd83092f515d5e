package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActaDocument is an attachment stored in the blob store. Rows are read-only after upload.
type ActaDocument struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ActaID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"acta_id"`
	FileName    string     `gorm:"type:varchar(255);not null" json:"file_name"` // original name
	MimeType    string     `gorm:"type:varchar(100);not null" json:"mime_type"`
	StoragePath string     `gorm:"type:varchar(512);not null" json:"-"`
	Size        int64      `gorm:"not null" json:"size"`
	UploadedBy  *uuid.UUID `gorm:"type:uuid" json:"uploaded_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (d *ActaDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
