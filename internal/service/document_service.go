package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"recaudo/internal/model"
	"recaudo/internal/pdf"
	"recaudo/internal/signer"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Artifact is a file ready to stream back to the client.
type Artifact struct {
	Content     []byte
	ContentType string
	FileName    string
	Inline      bool
	Digest      string
}

type UploadDocumentRequest struct {
	FileName     string
	DeclaredMime string
	Data         []byte
}

// DocumentLinkParams identify one document for one participant.
type DocumentLinkParams struct {
	ActaID        string `form:"acta"`
	ParticipantID string `form:"integrante"`
	DocumentID    string `form:"doc"`
	Signature     string `form:"firma"`
}

// DocumentService is the retrieval gateway for acta documents, approval photos and the
// rendered PDF.
type DocumentService interface {
	UploadDocument(ctx context.Context, actaID string, req UploadDocumentRequest, caller Caller) (*DocumentResponse, error)
	GetDocument(ctx context.Context, actaID, documentID string, caller Caller) (*Artifact, error)
	GetDocumentWithLink(ctx context.Context, params DocumentLinkParams) (*Artifact, error)
	GetEvidencePhoto(ctx context.Context, actaID, participantID string, caller Caller) (*Artifact, error)
	GetEvidencePhotoWithLink(ctx context.Context, params LinkParams) (*Artifact, error)
	RenderActaPDF(ctx context.Context, actaID string, caller Caller) (*Artifact, error)
}

type documentService struct {
	deps ActaDeps
}

func NewDocumentService(deps ActaDeps) DocumentService {
	return &documentService{deps: deps.withDefaults()}
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '/' {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." {
		return "documento"
	}
	return name
}

func (s *documentService) UploadDocument(ctx context.Context, actaID string, req UploadDocumentRequest, caller Caller) (*DocumentResponse, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.UploadDocument")
	defer span.End()

	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, err
	}
	acta, err := s.deps.Actas.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "acta")
	}
	if !caller.CanManage(acta) {
		return nil, ErrForbidden
	}
	if len(req.Data) == 0 {
		return nil, validationError("file is empty")
	}
	if int64(len(req.Data)) > s.deps.MaxUploadBytes {
		return nil, validationError("file exceeds %d bytes", s.deps.MaxUploadBytes)
	}

	detected := mimetype.Detect(req.Data)
	mime := req.DeclaredMime
	if mime == "" || mime == "application/octet-stream" {
		mime = detected.String()
	}
	fileName := sanitizeFileName(req.FileName)
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = detected.Extension()
	}

	doc := &model.ActaDocument{
		ID:         uuid.New(),
		ActaID:     acta.ID,
		FileName:   fileName,
		MimeType:   mime,
		Size:       int64(len(req.Data)),
		UploadedBy: &caller.UserID,
	}
	doc.StoragePath = fmt.Sprintf("actas/%s/documentos/%s%s", acta.ID, doc.ID, ext)
	span.SetAttributes(attribute.String("document.id", doc.ID.String()))

	if err := s.deps.Blobs.Write(ctx, doc.StoragePath, req.Data); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	err = s.deps.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.deps.Documents.Create(txCtx, doc); err != nil {
			return fmt.Errorf("failed to create document record: %w", err)
		}
		return writeAudit(txCtx, s.deps.Audit, newAuditEntry(&caller.UserID, "", model.ActionUploadActaDocument, acta.ID.String(), acta.Title, map[string]interface{}{
			"document_id": doc.ID.String(),
			"file_name":   doc.FileName,
			"size":        doc.Size,
		}))
	})
	if err != nil {
		log.Printf("[document] blob %s left unreferenced: %v", doc.StoragePath, err)
		return nil, err
	}

	resp := toDocumentResponse(*doc)
	return &resp, nil
}

// authorizeStaff loads the acta and checks the caller may read its files.
func (s *documentService) authorizeStaff(ctx context.Context, actaID string, caller Caller) (*model.Acta, error) {
	id, err := parseID(actaID, "acta")
	if err != nil {
		return nil, err
	}
	acta, err := s.deps.Actas.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "acta")
	}
	if !caller.CanManage(acta) {
		return nil, ErrForbidden
	}
	return acta, nil
}

func (s *documentService) GetDocument(ctx context.Context, actaID, documentID string, caller Caller) (*Artifact, error) {
	acta, err := s.authorizeStaff(ctx, actaID, caller)
	if err != nil {
		return nil, err
	}
	return s.loadDocument(ctx, acta.ID, documentID)
}

// GetDocumentWithLink checks the signature before touching storage or the database.
func (s *documentService) GetDocumentWithLink(ctx context.Context, params DocumentLinkParams) (*Artifact, error) {
	if !s.deps.Signer.Verify(signer.KindDocument, params.ActaID, params.ParticipantID, params.DocumentID, params.Signature) {
		return nil, ErrInvalidSignature
	}
	actaID, err := parseID(params.ActaID, "acta")
	if err != nil {
		return nil, err
	}
	participantID, err := parseID(params.ParticipantID, "participant")
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Actas.FindParticipant(ctx, actaID, participantID); err != nil {
		return nil, lookupError(err, "participant")
	}
	return s.loadDocument(ctx, actaID, params.DocumentID)
}

func (s *documentService) loadDocument(ctx context.Context, actaID uuid.UUID, documentID string) (*Artifact, error) {
	docID, err := parseID(documentID, "document")
	if err != nil {
		return nil, err
	}
	doc, err := s.deps.Documents.FindByID(ctx, actaID, docID)
	if err != nil {
		return nil, lookupError(err, "document")
	}
	data, err := s.readBlob(ctx, doc.StoragePath)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Content:     data,
		ContentType: doc.MimeType,
		FileName:    doc.FileName,
		Inline:      strings.HasPrefix(doc.MimeType, "image/") || doc.MimeType == "application/pdf",
	}, nil
}

func (s *documentService) GetEvidencePhoto(ctx context.Context, actaID, participantID string, caller Caller) (*Artifact, error) {
	acta, err := s.authorizeStaff(ctx, actaID, caller)
	if err != nil {
		return nil, err
	}
	pid, err := parseID(participantID, "participant")
	if err != nil {
		return nil, err
	}
	return s.loadPhoto(ctx, acta.ID, pid)
}

// GetEvidencePhotoWithLink lets a participant see the photo they left, using their approval link.
func (s *documentService) GetEvidencePhotoWithLink(ctx context.Context, params LinkParams) (*Artifact, error) {
	if !s.deps.Signer.Verify(signer.KindApproval, params.ActaID, params.ParticipantID, "", params.Signature) {
		return nil, ErrInvalidSignature
	}
	actaID, err := parseID(params.ActaID, "acta")
	if err != nil {
		return nil, err
	}
	pid, err := parseID(params.ParticipantID, "participant")
	if err != nil {
		return nil, err
	}
	return s.loadPhoto(ctx, actaID, pid)
}

func (s *documentService) loadPhoto(ctx context.Context, actaID, participantID uuid.UUID) (*Artifact, error) {
	rec, err := s.deps.Approvals.FindByParticipant(ctx, actaID, participantID)
	if err != nil {
		return nil, lookupError(err, "approval record")
	}
	if !rec.HasPhoto() {
		return nil, fmt.Errorf("approval photo: %w", ErrNotFound)
	}
	data, err := s.readBlob(ctx, rec.PhotoPath)
	if err != nil {
		return nil, err
	}
	mime := rec.PhotoMime
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	return &Artifact{
		Content:     data,
		ContentType: mime,
		FileName:    "foto-" + participantID.String() + filepath.Ext(rec.PhotoPath),
		Inline:      true,
	}, nil
}

// readBlob hides storage details from callers: a missing or unreadable file is a ReadFailure.
func (s *documentService) readBlob(ctx context.Context, path string) ([]byte, error) {
	data, err := s.deps.Blobs.Read(ctx, path)
	if err != nil {
		log.Printf("[document] failed to read blob %s: %v", path, err)
		return nil, ErrReadFailure
	}
	return data, nil
}

func (s *documentService) RenderActaPDF(ctx context.Context, actaID string, caller Caller) (*Artifact, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.RenderActaPDF")
	defer span.End()

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
	if s.deps.Renderer == nil {
		return nil, fmt.Errorf("no document renderer configured")
	}

	now := s.deps.Clock()
	data := toActaData(acta, now)
	content, err := s.deps.Renderer.RenderActa(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render acta %s: %w", acta.ID, err)
	}
	digest := pdf.Digest(data)
	span.SetAttributes(attribute.String("acta.id", acta.ID.String()), attribute.String("acta.digest", digest))

	// Rendering is a read; the audit entry is best effort.
	if err := s.deps.Audit.Log(ctx, newAuditEntry(&caller.UserID, "", model.ActionRenderActaPDF, acta.ID.String(), acta.Title, map[string]interface{}{
		"digest": digest,
	})); err != nil {
		log.Printf("[document] failed to audit pdf render of %s: %v", acta.ID, err)
	}

	return &Artifact{
		Content:     content,
		ContentType: "application/pdf",
		FileName:    fmt.Sprintf("acta-%s-%s.pdf", acta.ID, now.Format("2006-01-02")),
		Inline:      false,
		Digest:      digest,
	}, nil
}

func toActaData(acta *model.Acta, generatedAt time.Time) pdf.ActaData {
	data := pdf.ActaData{
		ID:          acta.ID.String(),
		Title:       acta.Title,
		Content:     acta.Content,
		Location:    acta.Location,
		MeetingDate: acta.MeetingDate.UTC(),
		Status:      string(acta.Status),
		GeneratedAt: generatedAt,
	}
	if acta.Creator != nil {
		data.CreatorName = acta.Creator.FullName
		if data.CreatorName == "" {
			data.CreatorName = acta.Creator.Username
		}
	}
	for _, p := range acta.Participants {
		line := pdf.ParticipantLine{
			ID:       p.ID.String(),
			FullName: p.FullName,
			Position: p.Position,
			Status:   string(model.ApprovalPending),
		}
		if p.Approval != nil {
			line.Status = string(p.Approval.Status)
			line.ApprovedAt = p.Approval.ApprovedAt
			line.HasPhoto = p.Approval.HasPhoto()
		}
		data.Participants = append(data.Participants, line)
	}
	return data
}
