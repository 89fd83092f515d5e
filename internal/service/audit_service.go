package service

import (
	"context"

	"recaudo/internal/model"
	"recaudo/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error)
	// ActaHistory lists the trail of one acta for its creator or an admin.
	ActaHistory(ctx context.Context, actaID string, caller Caller, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo  repository.AuditRepository
	actas repository.ActaRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, actas repository.ActaRepository) AuditService {
	return &auditService{repo: repo, actas: actas}
}

// defaultPageSize matches pagination.DefaultLimit so service and HTTP defaults agree.
const defaultPageSize = 20

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	return page, limit
}

func (s *auditService) GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error) {
	page, limit = normalizePage(page, limit)
	logs, total, err := s.repo.List(ctx, "", page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toAuditResponses(logs), total, nil
}

func (s *auditService) ActaHistory(ctx context.Context, actaID string, caller Caller, page, limit int) ([]AuditLogResponse, int64, error) {
	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, 0, err
	}
	acta, err := s.actas.FindByID(ctx, id)
	if err != nil {
		return nil, 0, lookupError(err, "acta")
	}
	if !caller.CanManage(acta) {
		return nil, 0, ErrForbidden
	}

	page, limit = normalizePage(page, limit)
	logs, total, err := s.repo.List(ctx, acta.ID.String(), page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toAuditResponses(logs), total, nil
}

func toAuditResponses(logs []model.AuditLog) []AuditLogResponse {
	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		} else if l.Actor != "" {
			username = l.Actor
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return res
}
