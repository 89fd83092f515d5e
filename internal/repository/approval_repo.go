package repository

import (
	"context"

	"recaudo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalRepository interface {
	Create(ctx context.Context, rec *model.ApprovalRecord) error
	FindByParticipant(ctx context.Context, actaID, participantID uuid.UUID) (*model.ApprovalRecord, error)
	FindByParticipantForUpdate(ctx context.Context, actaID, participantID uuid.UUID) (*model.ApprovalRecord, error)
	ListByActa(ctx context.Context, actaID uuid.UUID) ([]model.ApprovalRecord, error)
	CountPending(ctx context.Context, actaID uuid.UUID) (int64, error)
	Update(ctx context.Context, rec *model.ApprovalRecord) error
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, rec *model.ApprovalRecord) error {
	return GetDB(ctx, r.db).Create(rec).Error
}

func (r *approvalRepository) FindByParticipant(ctx context.Context, actaID, participantID uuid.UUID) (*model.ApprovalRecord, error) {
	var rec model.ApprovalRecord
	if err := GetDB(ctx, r.db).First(&rec, "acta_id = ? AND participant_id = ?", actaID, participantID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *approvalRepository) FindByParticipantForUpdate(ctx context.Context, actaID, participantID uuid.UUID) (*model.ApprovalRecord, error) {
	var rec model.ApprovalRecord
	if err := forUpdate(GetDB(ctx, r.db)).First(&rec, "acta_id = ? AND participant_id = ?", actaID, participantID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *approvalRepository) ListByActa(ctx context.Context, actaID uuid.UUID) ([]model.ApprovalRecord, error) {
	var recs []model.ApprovalRecord
	if err := GetDB(ctx, r.db).Where("acta_id = ?", actaID).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *approvalRepository) CountPending(ctx context.Context, actaID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.ApprovalRecord{}).
		Where("acta_id = ? AND status = ?", actaID, model.ApprovalPending).
		Count(&n).Error
	return n, err
}

// Update only ever flips a pending row; the status guard makes a stale write a no-op.
func (r *approvalRepository) Update(ctx context.Context, rec *model.ApprovalRecord) error {
	res := GetDB(ctx, r.db).Model(&model.ApprovalRecord{}).
		Where("id = ? AND status = ?", rec.ID, model.ApprovalPending).
		Updates(map[string]interface{}{
			"status":      rec.Status,
			"approved_at": rec.ApprovedAt,
			"photo_path":  rec.PhotoPath,
			"photo_mime":  rec.PhotoMime,
			"signature":   rec.Signature,
			"client_ip":   rec.ClientIP,
			"user_agent":  rec.UserAgent,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrAlreadyApproved
	}
	return nil
}
