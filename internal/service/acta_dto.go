package service

import (
	"time"

	"recaudo/internal/model"
)

// --- DTOs ---

type ParticipantInput struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Position string `json:"position"`
}

type CreateActaRequest struct {
	Title        string             `json:"title" binding:"required"`
	Content      string             `json:"content"`
	MeetingDate  string             `json:"meeting_date" binding:"required"` // YYYY-MM-DD
	Location     string             `json:"location"`
	ProcesoID    string             `json:"proceso_id"`
	Participants []ParticipantInput `json:"participants" binding:"dive"`
}

type ActaListFilter struct {
	Status string
	Page   int
	Limit  int
}

type ParticipantResponse struct {
	ID             string  `json:"id"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Position       string  `json:"position"`
	Ordinal        int     `json:"ordinal"`
	ApprovalStatus string  `json:"approval_status"`
	ApprovedAt     *string `json:"approved_at"`
	HasPhoto       bool    `json:"has_photo"`
}

type DocumentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

type ActaResponse struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Content          string                `json:"content"`
	MeetingDate      string                `json:"meeting_date"`
	Location         string                `json:"location"`
	ProcesoID        *string               `json:"proceso_id"`
	Status           string                `json:"status"`
	CreatedBy        string                `json:"created_by"`
	CreatorName      string                `json:"creator_name"`
	SubmittedAt      *string               `json:"submitted_at"`
	ApprovedAt       *string               `json:"approved_at"`
	SentAt           *string               `json:"sent_at"`
	ParticipantCount int                   `json:"participant_count"`
	ApprovedCount    int                   `json:"approved_count"`
	Participants     []ParticipantResponse `json:"participants,omitempty"`
	Documents        []DocumentResponse    `json:"documents,omitempty"`
	CreatedAt        string                `json:"created_at"`
}

type DocumentLinkResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	URL        string `json:"url"`
}

// ParticipantLink is what staff distribute to each integrante.
type ParticipantLink struct {
	ParticipantID  string                 `json:"participant_id"`
	FullName       string                 `json:"full_name"`
	Email          string                 `json:"email"`
	ApprovalStatus string                 `json:"approval_status"`
	ApprovalURL    string                 `json:"approval_url"`
	Documents      []DocumentLinkResponse `json:"documents"`
}

type SubmitActaResult struct {
	Acta  ActaResponse      `json:"acta"`
	Links []ParticipantLink `json:"links"`
}

// --- Helpers ---

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toParticipantResponse(p model.ActaParticipant) ParticipantResponse {
	resp := ParticipantResponse{
		ID:             p.ID.String(),
		FullName:       p.FullName,
		Email:          p.Email,
		Phone:          p.Phone,
		Position:       p.Position,
		Ordinal:        p.Ordinal,
		ApprovalStatus: string(model.ApprovalPending),
	}
	if p.Approval != nil {
		resp.ApprovalStatus = string(p.Approval.Status)
		resp.ApprovedAt = formatTime(p.Approval.ApprovedAt)
		resp.HasPhoto = p.Approval.HasPhoto()
	}
	return resp
}

func toDocumentResponse(d model.ActaDocument) DocumentResponse {
	return DocumentResponse{
		ID:        d.ID.String(),
		FileName:  d.FileName,
		MimeType:  d.MimeType,
		Size:      d.Size,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}

func toActaResponse(a model.Acta) ActaResponse {
	resp := ActaResponse{
		ID:               a.ID.String(),
		Title:            a.Title,
		Content:          a.Content,
		MeetingDate:      a.MeetingDate.UTC().Format("2006-01-02"),
		Location:         a.Location,
		Status:           string(a.Status),
		CreatedBy:        a.CreatedBy.String(),
		SubmittedAt:      formatTime(a.SubmittedAt),
		ApprovedAt:       formatTime(a.ApprovedAt),
		SentAt:           formatTime(a.SentAt),
		ParticipantCount: len(a.Participants),
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
	if a.ProcesoID != nil {
		s := a.ProcesoID.String()
		resp.ProcesoID = &s
	}
	if a.Creator != nil {
		resp.CreatorName = a.Creator.FullName
		if resp.CreatorName == "" {
			resp.CreatorName = a.Creator.Username
		}
	}
	for _, p := range a.Participants {
		pr := toParticipantResponse(p)
		if pr.ApprovalStatus == string(model.ApprovalApproved) {
			resp.ApprovedCount++
		}
		resp.Participants = append(resp.Participants, pr)
	}
	for _, d := range a.Documents {
		resp.Documents = append(resp.Documents, toDocumentResponse(d))
	}
	return resp
}
