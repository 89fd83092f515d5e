package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"recaudo/internal/model"
	"recaudo/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ActaService covers the staff side of the acta lifecycle.
type ActaService interface {
	CreateActa(ctx context.Context, req CreateActaRequest, caller Caller) (*ActaResponse, error)
	AddParticipant(ctx context.Context, actaID string, req ParticipantInput, caller Caller) (*ParticipantResponse, error)
	GetActa(ctx context.Context, actaID string, caller Caller) (*ActaResponse, error)
	ListActas(ctx context.Context, filter ActaListFilter, caller Caller) ([]ActaResponse, int64, error)
	SubmitForApproval(ctx context.Context, actaID string, caller Caller) (*SubmitActaResult, error)
	GetLinks(ctx context.Context, actaID string, caller Caller) ([]ParticipantLink, error)
	MarkSent(ctx context.Context, actaID string, caller Caller) (*ActaResponse, error)
}

type actaService struct {
	deps ActaDeps
}

func NewActaService(deps ActaDeps) ActaService {
	return &actaService{deps: deps.withDefaults()}
}

func parseMeetingDate(raw string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, validationError("meeting_date must be YYYY-MM-DD")
	}
	return d, nil
}

func newParticipant(actaID uuid.UUID, in ParticipantInput, ordinal int) (*model.ActaParticipant, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, validationError("participant full_name is required")
	}
	return &model.ActaParticipant{
		ActaID:   actaID,
		FullName: name,
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Position: strings.TrimSpace(in.Position),
		Ordinal:  ordinal,
	}, nil
}

// addParticipant stores the participant together with its pending approval record.
func (s *actaService) addParticipant(txCtx context.Context, p *model.ActaParticipant) error {
	if err := s.deps.Actas.CreateParticipant(txCtx, p); err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}
	rec := &model.ApprovalRecord{ActaID: p.ActaID, ParticipantID: p.ID, Status: model.ApprovalPending}
	if err := s.deps.Approvals.Create(txCtx, rec); err != nil {
		return fmt.Errorf("failed to seed approval record: %w", err)
	}
	p.Approval = rec
	return nil
}

func (s *actaService) CreateActa(ctx context.Context, req CreateActaRequest, caller Caller) (*ActaResponse, error) {
	ctx, span := tracer.Start(ctx, "ActaService.CreateActa")
	defer span.End()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	meetingDate, err := parseMeetingDate(req.MeetingDate)
	if err != nil {
		return nil, err
	}

	acta := &model.Acta{
		ID:          uuid.New(),
		Title:       title,
		Content:     req.Content,
		MeetingDate: meetingDate,
		Location:    strings.TrimSpace(req.Location),
		Status:      model.ActaDraft,
		CreatedBy:   caller.UserID,
	}
	if req.ProcesoID != "" {
		pid, err := uuid.Parse(req.ProcesoID)
		if err != nil {
			return nil, validationError("proceso_id is not a valid id")
		}
		acta.ProcesoID = &pid
	}

	participants := make([]*model.ActaParticipant, 0, len(req.Participants))
	for i, in := range req.Participants {
		p, err := newParticipant(acta.ID, in, i+1)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	err = s.deps.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.deps.Actas.Create(txCtx, acta); err != nil {
			return fmt.Errorf("failed to create acta: %w", err)
		}
		for _, p := range participants {
			if err := s.addParticipant(txCtx, p); err != nil {
				return err
			}
		}
		return writeAudit(txCtx, s.deps.Audit, newAuditEntry(&caller.UserID, "", model.ActionCreateActa, acta.ID.String(), acta.Title, map[string]interface{}{
			"participants": len(participants),
			"meeting_date": req.MeetingDate,
		}))
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("acta.id", acta.ID.String()))
	log.Printf("[acta] created %s by %s with %d participants", acta.ID, caller.UserID, len(participants))
	return s.load(ctx, acta.ID)
}

func (s *actaService) AddParticipant(ctx context.Context, actaID string, req ParticipantInput, caller Caller) (*ParticipantResponse, error) {
	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, err
	}

	var participant *model.ActaParticipant
	err = s.deps.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		acta, err := s.deps.Actas.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupError(err, "acta")
		}
		if !caller.CanManage(acta) {
			return ErrForbidden
		}
		// The signed set is fixed once links go out.
		if acta.Status != model.ActaDraft {
			return fmt.Errorf("%w: participants can only be added while the acta is a draft", ErrInvalidTransition)
		}
		count, err := s.deps.Actas.CountParticipants(txCtx, id)
		if err != nil {
			return err
		}
		participant, err = newParticipant(id, req, int(count)+1)
		if err != nil {
			return err
		}
		if err := s.addParticipant(txCtx, participant); err != nil {
			return err
		}
		return writeAudit(txCtx, s.deps.Audit, newAuditEntry(&caller.UserID, "", model.ActionAddActaParticipant, acta.ID.String(), acta.Title, map[string]interface{}{
			"participant_id": participant.ID.String(),
			"full_name":      participant.FullName,
		}))
	})
	if err != nil {
		return nil, err
	}

	resp := toParticipantResponse(*participant)
	return &resp, nil
}

func (s *actaService) GetActa(ctx context.Context, actaID string, caller Caller) (*ActaResponse, error) {
	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, err
	}
	acta, err := s.deps.Actas.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, lookupError(err, "acta")
	}
	if !caller.CanManage(acta) {
		return nil, ErrForbidden
	}
	resp := toActaResponse(*acta)
	return &resp, nil
}

// ListActas shows admins every acta and everyone else their own.
func (s *actaService) ListActas(ctx context.Context, filter ActaListFilter, caller Caller) ([]ActaResponse, int64, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	repoFilter := repository.ActaFilter{Page: filter.Page, Limit: filter.Limit}
	if filter.Status != "" {
		status := model.ActaStatus(filter.Status)
		if !status.Valid() {
			return nil, 0, validationError("unknown status %q", filter.Status)
		}
		repoFilter.Status = status
	}
	if !caller.IsAdmin() {
		uid := caller.UserID
		repoFilter.CreatedBy = &uid
	}

	actas, total, err := s.deps.Actas.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ActaResponse, 0, len(actas))
	for _, a := range actas {
		responses = append(responses, toActaResponse(a))
	}
	return responses, total, nil
}

func (s *actaService) SubmitForApproval(ctx context.Context, actaID string, caller Caller) (*SubmitActaResult, error) {
	ctx, span := tracer.Start(ctx, "ActaService.SubmitForApproval")
	defer span.End()

	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("acta.id", id.String()))

	now := s.deps.Clock()
	err = s.deps.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		acta, err := s.deps.Actas.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupError(err, "acta")
		}
		if !caller.CanManage(acta) {
			return ErrForbidden
		}
		count, err := s.deps.Actas.CountParticipants(txCtx, id)
		if err != nil {
			return err
		}
		if count == 0 {
			return validationError("an acta needs at least one participant before it is submitted")
		}
		if err := acta.TransitionTo(model.ActaPendingApproval, now); err != nil {
			return err
		}
		if err := s.deps.Actas.UpdateStatus(txCtx, acta); err != nil {
			return fmt.Errorf("failed to update acta status: %w", err)
		}
		return writeAudit(txCtx, s.deps.Audit, newAuditEntry(&caller.UserID, "", model.ActionSubmitActa, acta.ID.String(), acta.Title, map[string]interface{}{
			"participants": count,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.deps.Events.PublishActaEvent(model.ActaEvent{
		Type:   model.EventActaStatusChanged,
		ActaID: id.String(),
		Status: model.ActaPendingApproval,
		At:     now,
	})

	acta, err := s.deps.Actas.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, lookupError(err, "acta")
	}
	return &SubmitActaResult{Acta: toActaResponse(*acta), Links: s.buildLinks(acta)}, nil
}

// GetLinks regenerates the capability links. They are deterministic, so re-issuing is safe.
func (s *actaService) GetLinks(ctx context.Context, actaID string, caller Caller) ([]ParticipantLink, error) {
	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, err
	}
	acta, err := s.deps.Actas.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, lookupError(err, "acta")
	}
	if !caller.CanManage(acta) {
		return nil, ErrForbidden
	}
	if acta.Status == model.ActaDraft {
		return nil, fmt.Errorf("%w: links are issued once the acta is submitted", ErrInvalidTransition)
	}
	return s.buildLinks(acta), nil
}

func (s *actaService) buildLinks(acta *model.Acta) []ParticipantLink {
	links := make([]ParticipantLink, 0, len(acta.Participants))
	for _, p := range acta.Participants {
		status := string(model.ApprovalPending)
		if p.Approval != nil {
			status = string(p.Approval.Status)
		}
		link := ParticipantLink{
			ParticipantID:  p.ID.String(),
			FullName:       p.FullName,
			Email:          p.Email,
			ApprovalStatus: status,
			ApprovalURL:    s.deps.Signer.ApprovalLink(s.deps.PublicBaseURL, acta.ID.String(), p.ID.String()),
			Documents:      s.documentLinks(acta, p.ID),
		}
		links = append(links, link)
	}
	return links
}

func (s *actaService) documentLinks(acta *model.Acta, participantID uuid.UUID) []DocumentLinkResponse {
	out := make([]DocumentLinkResponse, 0, len(acta.Documents))
	for _, d := range acta.Documents {
		out = append(out, DocumentLinkResponse{
			DocumentID: d.ID.String(),
			FileName:   d.FileName,
			URL:        s.deps.Signer.DocumentLink(s.deps.PublicBaseURL, acta.ID.String(), participantID.String(), d.ID.String()),
		})
	}
	return out
}

func (s *actaService) MarkSent(ctx context.Context, actaID string, caller Caller) (*ActaResponse, error) {
	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, err
	}

	now := s.deps.Clock()
	err = s.deps.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		acta, err := s.deps.Actas.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupError(err, "acta")
		}
		if !caller.CanManage(acta) {
			return ErrForbidden
		}
		if err := acta.TransitionTo(model.ActaSent, now); err != nil {
			return err
		}
		if err := s.deps.Actas.UpdateStatus(txCtx, acta); err != nil {
			return fmt.Errorf("failed to update acta status: %w", err)
		}
		return writeAudit(txCtx, s.deps.Audit, newAuditEntry(&caller.UserID, "", model.ActionActaSent, acta.ID.String(), acta.Title, nil))
	})
	if err != nil {
		return nil, err
	}

	s.deps.Events.PublishActaEvent(model.ActaEvent{
		Type:   model.EventActaStatusChanged,
		ActaID: id.String(),
		Status: model.ActaSent,
		At:     now,
	})
	return s.load(ctx, id)
}

func (s *actaService) load(ctx context.Context, id uuid.UUID) (*ActaResponse, error) {
	acta, err := s.deps.Actas.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, lookupError(err, "acta")
	}
	resp := toActaResponse(*acta)
	return &resp, nil
}
