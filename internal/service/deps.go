package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recaudo/internal/model"
	"recaudo/internal/pdf"
	"recaudo/internal/repository"
	"recaudo/internal/signer"
	"recaudo/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("recaudo/service")

// Caller is the authenticated staff identity taken from the session.
type Caller struct {
	UserID uuid.UUID
	Role   string
}

// NewCaller parses the identity carried by the auth middleware.
func NewCaller(userID, role string) (Caller, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Caller{}, fmt.Errorf("invalid user id in session: %w", err)
	}
	return Caller{UserID: id, Role: role}, nil
}

func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// CanManage holds for the acta creator and for admins.
func (c Caller) CanManage(acta *model.Acta) bool {
	return c.IsAdmin() || acta.IsOwnedBy(c.UserID)
}

// EventPublisher pushes acta events to live dashboards. Publishing must not block.
type EventPublisher interface {
	PublishActaEvent(event model.ActaEvent)
}

type noopPublisher struct{}

func (noopPublisher) PublishActaEvent(model.ActaEvent) {}

// DocumentRenderer is the PDF engine: renderDocument(data) -> bytes.
type DocumentRenderer interface {
	RenderActa(data pdf.ActaData) ([]byte, error)
}

// ActaDeps wires the acta, approval and document services.
type ActaDeps struct {
	Tx             repository.TransactionManager
	Actas          repository.ActaRepository
	Approvals      repository.ApprovalRepository
	Documents      repository.DocumentRepository
	Audit          repository.AuditRepository
	Blobs          storage.BlobStore
	Signer         *signer.Signer
	Renderer       DocumentRenderer
	Events         EventPublisher
	PublicBaseURL  string
	MaxUploadBytes int64
	Clock          func() time.Time
}

func (d ActaDeps) withDefaults() ActaDeps {
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	return d
}

func newAuditEntry(userID *uuid.UUID, actor, action, entityID, entityName string, details interface{}) *model.AuditLog {
	detailsJSON, _ := json.Marshal(details)
	return &model.AuditLog{
		UserID:     userID,
		Actor:      actor,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}
}

// writeAudit records inside whatever transaction ctx carries.
func writeAudit(ctx context.Context, repo repository.AuditRepository, entry *model.AuditLog) error {
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
