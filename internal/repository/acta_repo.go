package repository

import (
	"context"

	"recaudo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActaFilter narrows ListActas.
type ActaFilter struct {
	Status    model.ActaStatus
	CreatedBy *uuid.UUID
	Page      int
	Limit     int
}

type ActaRepository interface {
	Create(ctx context.Context, acta *model.Acta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Acta, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Acta, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Acta, error)
	List(ctx context.Context, filter ActaFilter) ([]model.Acta, int64, error)
	UpdateStatus(ctx context.Context, acta *model.Acta) error

	CreateParticipant(ctx context.Context, p *model.ActaParticipant) error
	FindParticipant(ctx context.Context, actaID, participantID uuid.UUID) (*model.ActaParticipant, error)
	CountParticipants(ctx context.Context, actaID uuid.UUID) (int64, error)
}

type actaRepository struct {
	db *gorm.DB
}

func NewActaRepository(db *gorm.DB) ActaRepository {
	return &actaRepository{db: db}
}

func (r *actaRepository) Create(ctx context.Context, acta *model.Acta) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(acta).Error
}

func (r *actaRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Acta, error) {
	var acta model.Acta
	if err := GetDB(ctx, r.db).First(&acta, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &acta, nil
}

func (r *actaRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Acta, error) {
	var acta model.Acta
	err := GetDB(ctx, r.db).
		Preload("Creator").
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal ASC, created_at ASC") }).
		Preload("Participants.Approval").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&acta, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &acta, nil
}

// FindByIDForUpdate locks the acta row until the surrounding transaction ends. Every write
// that can change the aggregate approval state takes this lock first.
func (r *actaRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Acta, error) {
	var acta model.Acta
	if err := forUpdate(GetDB(ctx, r.db)).First(&acta, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &acta, nil
}

func (r *actaRepository) List(ctx context.Context, filter ActaFilter) ([]model.Acta, int64, error) {
	var actas []model.Acta
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.CreatedBy != nil {
			q = q.Where("created_by = ?", *filter.CreatedBy)
		}
		return q
	}

	if err := scope(db.Model(&model.Acta{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := scope(db.Preload("Creator").Preload("Participants.Approval")).
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&actas).Error; err != nil {
		return nil, 0, err
	}

	return actas, total, nil
}

// UpdateStatus persists the lifecycle columns only.
func (r *actaRepository) UpdateStatus(ctx context.Context, acta *model.Acta) error {
	return GetDB(ctx, r.db).Model(acta).Select("status", "submitted_at", "approved_at", "sent_at", "updated_at").Updates(acta).Error
}

func (r *actaRepository) CreateParticipant(ctx context.Context, p *model.ActaParticipant) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(p).Error
}

func (r *actaRepository) FindParticipant(ctx context.Context, actaID, participantID uuid.UUID) (*model.ActaParticipant, error) {
	var p model.ActaParticipant
	if err := GetDB(ctx, r.db).First(&p, "id = ? AND acta_id = ?", participantID, actaID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *actaRepository) CountParticipants(ctx context.Context, actaID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.ActaParticipant{}).Where("acta_id = ?", actaID).Count(&n).Error
	return n, err
}
