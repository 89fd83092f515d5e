package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Proceso is a collection process run on behalf of a client entity.
// Only the fields the semáforo dashboard needs live here.
type Proceso struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Radicado         string          `gorm:"type:varchar(60);uniqueIndex;not null" json:"radicado"`
	TaxpayerName     string          `gorm:"type:varchar(255);not null" json:"taxpayer_name"` // contribuyente
	TaxpayerNIT      string          `gorm:"type:varchar(30);index" json:"taxpayer_nit"`
	Tax              string          `gorm:"type:varchar(120)" json:"tax"` // impuesto
	Amount           decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`
	PrescriptionDate *time.Time      `gorm:"type:date;index" json:"prescription_date"`
	CreatedBy        *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (p *Proceso) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
