package repository

import (
	"context"

	"recaudo/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.ActaDocument) error
	FindByID(ctx context.Context, actaID, docID uuid.UUID) (*model.ActaDocument, error)
	ListByActa(ctx context.Context, actaID uuid.UUID) ([]model.ActaDocument, error)
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.ActaDocument) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, actaID, docID uuid.UUID) (*model.ActaDocument, error) {
	var doc model.ActaDocument
	if err := GetDB(ctx, r.db).First(&doc, "id = ? AND acta_id = ?", docID, actaID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByActa(ctx context.Context, actaID uuid.UUID) ([]model.ActaDocument, error) {
	var docs []model.ActaDocument
	if err := GetDB(ctx, r.db).Where("acta_id = ?", actaID).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}
