package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"strings"

	"recaudo/internal/model"
	"recaudo/internal/signer"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// --- DTOs ---

// LinkParams are the three query parameters of a capability link.
type LinkParams struct {
	ActaID        string `form:"acta"`
	ParticipantID string `form:"integrante"`
	Signature     string `form:"firma"`
}

type SubmitApprovalRequest struct {
	LinkParams
	Photo     []byte
	PhotoMime string
	ClientIP  string
	UserAgent string
}

// ApprovalView is what the public approval page renders.
type ApprovalView struct {
	ActaID           string                 `json:"acta_id"`
	ActaTitle        string                 `json:"acta_title"`
	ActaContent      string                 `json:"acta_content"`
	MeetingDate      string                 `json:"meeting_date"`
	Location         string                 `json:"location"`
	ActaStatus       string                 `json:"acta_status"`
	ParticipantID    string                 `json:"participant_id"`
	ParticipantName  string                 `json:"participant_name"`
	Status           string                 `json:"status"`
	AlreadyApproved  bool                   `json:"already_approved"`
	ApprovedAt       *string                `json:"approved_at"`
	HasPhoto         bool                   `json:"has_photo"`
	ParticipantCount int                    `json:"participant_count"`
	ApprovedCount    int                    `json:"approved_count"`
	Documents        []DocumentLinkResponse `json:"documents"`
}

// --- Interface ---

// ApprovalService is the public, link-authenticated side of the approval flow.
type ApprovalService interface {
	GetLinkState(ctx context.Context, params LinkParams) (*ApprovalView, error)
	// SubmitApproval returns ErrAlreadyApproved together with the current view when the
	// participant had approved before.
	SubmitApproval(ctx context.Context, req SubmitApprovalRequest) (*ApprovalView, error)
}

type approvalService struct {
	deps ActaDeps
}

func NewApprovalService(deps ActaDeps) ApprovalService {
	return &approvalService{deps: deps.withDefaults()}
}

// resolveLink checks, in order: acta exists, participant belongs to it, signature matches.
func (s *approvalService) resolveLink(ctx context.Context, params LinkParams) (*model.Acta, *model.ActaParticipant, error) {
	actaID, err := parseID(params.ActaID, "acta")
	if err != nil {
		return nil, nil, err
	}
	participantID, err := parseID(params.ParticipantID, "participant")
	if err != nil {
		return nil, nil, err
	}

	acta, err := s.deps.Actas.FindByIDWithRelations(ctx, actaID)
	if err != nil {
		return nil, nil, lookupError(err, "acta")
	}
	participant, err := s.deps.Actas.FindParticipant(ctx, actaID, participantID)
	if err != nil {
		return nil, nil, lookupError(err, "participant")
	}
	if !s.deps.Signer.Verify(signer.KindApproval, params.ActaID, params.ParticipantID, "", params.Signature) {
		return nil, nil, ErrInvalidSignature
	}
	return acta, participant, nil
}

func (s *approvalService) GetLinkState(ctx context.Context, params LinkParams) (*ApprovalView, error) {
	acta, participant, err := s.resolveLink(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.view(acta, participant.ID), nil
}

func (s *approvalService) SubmitApproval(ctx context.Context, req SubmitApprovalRequest) (*ApprovalView, error) {
	ctx, span := tracer.Start(ctx, "ApprovalService.SubmitApproval")
	defer span.End()

	acta, participant, err := s.resolveLink(ctx, req.LinkParams)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("acta.id", acta.ID.String()),
		attribute.String("participant.id", participant.ID.String()),
	)

	record, err := s.deps.Approvals.FindByParticipant(ctx, acta.ID, participant.ID)
	if err != nil {
		return nil, lookupError(err, "approval record")
	}
	if record.Status != model.ApprovalPending {
		return s.view(acta, participant.ID), ErrAlreadyApproved
	}
	if acta.Status != model.ActaPendingApproval {
		return nil, ErrActaNotOpen
	}

	photoPath, photoMime, err := s.storeEvidence(ctx, acta.ID, participant.ID, req.Photo, req.PhotoMime)
	if err != nil {
		return nil, err
	}

	now := s.deps.Clock()
	transitioned := false
	err = s.deps.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		// The acta row lock serializes approvals of the same acta, so exactly one
		// transaction sees the pending count reach zero.
		locked, err := s.deps.Actas.FindByIDForUpdate(txCtx, acta.ID)
		if err != nil {
			return lookupError(err, "acta")
		}
		rec, err := s.deps.Approvals.FindByParticipantForUpdate(txCtx, acta.ID, participant.ID)
		if err != nil {
			return lookupError(err, "approval record")
		}
		if err := rec.Approve(now, model.ApprovalEvidence{
			PhotoPath: photoPath,
			PhotoMime: photoMime,
			Signature: req.Signature,
			ClientIP:  req.ClientIP,
			UserAgent: req.UserAgent,
		}); err != nil {
			return err
		}
		if locked.Status != model.ActaPendingApproval {
			return ErrActaNotOpen
		}
		if err := s.deps.Approvals.Update(txCtx, rec); err != nil {
			return err
		}
		if err := writeAudit(txCtx, s.deps.Audit, newAuditEntry(nil, participant.FullName, model.ActionApproveParticipant, acta.ID.String(), acta.Title, map[string]interface{}{
			"participant_id": participant.ID.String(),
			"has_photo":      photoPath != "",
			"client_ip":      req.ClientIP,
		})); err != nil {
			return err
		}

		pending, err := s.deps.Approvals.CountPending(txCtx, acta.ID)
		if err != nil {
			return fmt.Errorf("failed to count pending approvals: %w", err)
		}
		if pending > 0 {
			return nil
		}
		if err := locked.TransitionTo(model.ActaApproved, now); err != nil {
			return err
		}
		if err := s.deps.Actas.UpdateStatus(txCtx, locked); err != nil {
			return fmt.Errorf("failed to update acta status: %w", err)
		}
		transitioned = true
		return writeAudit(txCtx, s.deps.Audit, newAuditEntry(nil, participant.FullName, model.ActionActaApproved, acta.ID.String(), acta.Title, map[string]interface{}{
			"closing_participant_id": participant.ID.String(),
		}))
	})
	if err != nil {
		if photoPath != "" {
			log.Printf("[approval] evidence %s left unreferenced after failed approval: %v", photoPath, err)
		}
		if errors.Is(err, ErrAlreadyApproved) {
			return s.reload(ctx, acta.ID, participant.ID, err)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log.Printf("[approval] participant %s approved acta %s", participant.ID, acta.ID)
	s.deps.Events.PublishActaEvent(model.ActaEvent{
		Type:          model.EventParticipantApproved,
		ActaID:        acta.ID.String(),
		ParticipantID: participant.ID.String(),
		Status:        model.ActaPendingApproval,
		At:            now,
	})
	if transitioned {
		log.Printf("[approval] acta %s fully approved", acta.ID)
		s.deps.Events.PublishActaEvent(model.ActaEvent{
			Type:   model.EventActaStatusChanged,
			ActaID: acta.ID.String(),
			Status: model.ActaApproved,
			At:     now,
		})
	}
	return s.reload(ctx, acta.ID, participant.ID, nil)
}

// storeEvidence validates and writes the optional photo. Each attempt gets its own path so
// a concurrent duplicate can never overwrite evidence already referenced by a record.
// The sniffed type is what gets stored; a declared type must at least be an image.
func (s *approvalService) storeEvidence(ctx context.Context, actaID, participantID uuid.UUID, data []byte, declared string) (string, string, error) {
	if len(data) == 0 {
		return "", "", nil
	}
	if int64(len(data)) > s.deps.MaxUploadBytes {
		return "", "", validationError("photo exceeds %d bytes", s.deps.MaxUploadBytes)
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", "", validationError("photo must be an image, got %s", detected.String())
	}
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		if !strings.HasPrefix(mediaType, "image/") {
			return "", "", validationError("photo declared as %s", mediaType)
		}
		if !detected.Is(mediaType) {
			log.Printf("[approval] photo for participant %s declared %s, stored as %s", participantID, mediaType, detected.String())
		}
	}

	path := fmt.Sprintf("actas/%s/aprobaciones/%s/%s%s", actaID, participantID, uuid.New(), detected.Extension())
	if err := s.deps.Blobs.Write(ctx, path, data); err != nil {
		return "", "", fmt.Errorf("failed to store approval photo: %w", err)
	}
	return path, detected.String(), nil
}

func (s *approvalService) reload(ctx context.Context, actaID, participantID uuid.UUID, cause error) (*ApprovalView, error) {
	acta, err := s.deps.Actas.FindByIDWithRelations(ctx, actaID)
	if err != nil {
		return nil, lookupError(err, "acta")
	}
	return s.view(acta, participantID), cause
}

func (s *approvalService) view(acta *model.Acta, participantID uuid.UUID) *ApprovalView {
	v := &ApprovalView{
		ActaID:           acta.ID.String(),
		ActaTitle:        acta.Title,
		ActaContent:      acta.Content,
		MeetingDate:      acta.MeetingDate.UTC().Format("2006-01-02"),
		Location:         acta.Location,
		ActaStatus:       string(acta.Status),
		ParticipantID:    participantID.String(),
		Status:           string(model.ApprovalPending),
		ParticipantCount: len(acta.Participants),
		Documents:        make([]DocumentLinkResponse, 0, len(acta.Documents)),
	}
	for _, p := range acta.Participants {
		if p.Approval != nil && p.Approval.Status == model.ApprovalApproved {
			v.ApprovedCount++
		}
		if p.ID != participantID {
			continue
		}
		v.ParticipantName = p.FullName
		if p.Approval != nil {
			v.Status = string(p.Approval.Status)
			v.AlreadyApproved = p.Approval.Status == model.ApprovalApproved
			v.ApprovedAt = formatTime(p.Approval.ApprovedAt)
			v.HasPhoto = p.Approval.HasPhoto()
		}
	}
	for _, d := range acta.Documents {
		v.Documents = append(v.Documents, DocumentLinkResponse{
			DocumentID: d.ID.String(),
			FileName:   d.FileName,
			URL:        s.deps.Signer.DocumentLink(s.deps.PublicBaseURL, acta.ID.String(), participantID.String(), d.ID.String()),
		})
	}
	return v
}
