package repository

import (
	"context"

	"recaudo/internal/model"

	"gorm.io/gorm"
)

type ProcesoRepository interface {
	Create(ctx context.Context, p *model.Proceso) error
	GetByRadicado(ctx context.Context, radicado string) (*model.Proceso, error)
	ListAll(ctx context.Context) ([]model.Proceso, error)
}

type procesoRepository struct {
	db *gorm.DB
}

func NewProcesoRepository(db *gorm.DB) ProcesoRepository {
	return &procesoRepository{db: db}
}

func (r *procesoRepository) Create(ctx context.Context, p *model.Proceso) error {
	return GetDB(ctx, r.db).Create(p).Error
}

func (r *procesoRepository) GetByRadicado(ctx context.Context, radicado string) (*model.Proceso, error) {
	var p model.Proceso
	if err := GetDB(ctx, r.db).First(&p, "radicado = ?", radicado).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListAll feeds the semáforo; classification happens in the service against a reference date.
func (r *procesoRepository) ListAll(ctx context.Context) ([]model.Proceso, error) {
	var out []model.Proceso
	if err := GetDB(ctx, r.db).Order("prescription_date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
