package service

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"recaudo/internal/model"
	"recaudo/internal/pdf"
	"recaudo/internal/signer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func (h *harness) upload(t *testing.T, actaID string) *DocumentResponse {
	t.Helper()
	doc, err := h.documents.UploadDocument(context.Background(), actaID, UploadDocumentRequest{
		FileName:     "informe.pdf",
		DeclaredMime: "application/pdf",
		Data:         pdfBytes,
	}, callerOf(h.creator))
	require.NoError(t, err)
	return doc
}

func TestUploadAndGetDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta := h.draftActa(t, "Ana")

	_, err := h.documents.UploadDocument(ctx, acta.ID, UploadDocumentRequest{FileName: "x.pdf", Data: pdfBytes}, callerOf(h.other))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.documents.UploadDocument(ctx, acta.ID, UploadDocumentRequest{FileName: "x.pdf"}, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrValidation)

	doc := h.upload(t, acta.ID)
	assert.Equal(t, "informe.pdf", doc.FileName)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.EqualValues(t, len(pdfBytes), doc.Size)

	for _, caller := range []Caller{callerOf(h.creator), callerOf(h.admin)} {
		art, err := h.documents.GetDocument(ctx, acta.ID, doc.ID, caller)
		require.NoError(t, err)
		assert.Equal(t, pdfBytes, art.Content)
		assert.Equal(t, "application/pdf", art.ContentType)
	}

	_, err = h.documents.GetDocument(ctx, acta.ID, doc.ID, callerOf(h.other))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.documents.GetDocument(ctx, acta.ID, "2f1b7c43-54c6-4c3b-9a55-2b8f3c1e0d11", callerOf(h.creator))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionUploadActaDocument))
}

func TestUploadDocument_SanitizesName(t *testing.T) {
	h := newHarness(t)
	acta := h.draftActa(t, "Ana")

	doc, err := h.documents.UploadDocument(context.Background(), acta.ID, UploadDocumentRequest{
		FileName: "../../etc/\"acta\".pdf",
		Data:     pdfBytes,
	}, callerOf(h.creator))
	require.NoError(t, err)
	assert.Equal(t, "acta.pdf", doc.FileName)
	assert.Equal(t, "application/pdf", doc.MimeType, "sniffed when nothing is declared")
}

func TestGetDocumentWithLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft := h.draftActa(t, "Ana")
	doc := h.upload(t, draft.ID)
	res, err := h.actas.SubmitForApproval(ctx, draft.ID, callerOf(h.creator))
	require.NoError(t, err)

	require.Len(t, res.Links, 1)
	require.Len(t, res.Links[0].Documents, 1)
	u, err := url.Parse(res.Links[0].Documents[0].URL)
	require.NoError(t, err)
	q := u.Query()
	params := DocumentLinkParams{ActaID: q.Get("acta"), ParticipantID: q.Get("integrante"), DocumentID: q.Get("doc"), Signature: q.Get("firma")}
	assert.Equal(t, doc.ID, params.DocumentID)

	art, err := h.documents.GetDocumentWithLink(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, art.Content)

	approvalSig := h.deps.Signer.Sign(signer.KindApproval, params.ActaID, params.ParticipantID, "")
	bad := params
	bad.Signature = approvalSig
	_, err = h.documents.GetDocumentWithLink(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidSignature, "approval signature does not open documents")

	bad = params
	bad.DocumentID = "2f1b7c43-54c6-4c3b-9a55-2b8f3c1e0d11"
	_, err = h.documents.GetDocumentWithLink(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidSignature, "signature is bound to the document id")

	bad.Signature = h.deps.Signer.Sign(signer.KindDocument, bad.ActaID, bad.ParticipantID, bad.DocumentID)
	_, err = h.documents.GetDocumentWithLink(ctx, bad)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvidencePhoto(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana", "Beto")
	ana, beto := links["Ana"], links["Beto"]

	_, err := h.documents.GetEvidencePhoto(ctx, acta.ID, ana.ParticipantID, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrNotFound, "pending record has no photo")

	_, err = h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: ana, Photo: pngBytes})
	require.NoError(t, err)
	_, err = h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: beto})
	require.NoError(t, err)

	art, err := h.documents.GetEvidencePhoto(ctx, acta.ID, ana.ParticipantID, callerOf(h.creator))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, art.Content)
	assert.Equal(t, "image/png", art.ContentType)
	assert.True(t, art.Inline)

	_, err = h.documents.GetEvidencePhoto(ctx, acta.ID, ana.ParticipantID, callerOf(h.other))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.documents.GetEvidencePhoto(ctx, acta.ID, beto.ParticipantID, callerOf(h.admin))
	assert.ErrorIs(t, err, ErrNotFound, "approved without photo")

	art, err = h.documents.GetEvidencePhotoWithLink(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, art.Content)
	_, err = h.documents.GetEvidencePhotoWithLink(ctx, LinkParams{ActaID: ana.ActaID, ParticipantID: ana.ParticipantID, Signature: beto.Signature})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var rec model.ApprovalRecord
	require.NoError(t, h.db.First(&rec, "participant_id = ?", ana.ParticipantID).Error)
	require.NoError(t, os.Remove(filepath.Join(h.storageDir, filepath.FromSlash(rec.PhotoPath))))
	_, err = h.documents.GetEvidencePhoto(ctx, acta.ID, ana.ParticipantID, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrReadFailure)
}

func TestRenderActaPDF(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana", "Beto")
	for _, p := range links {
		_, err := h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: p, Photo: pngBytes})
		require.NoError(t, err)
	}

	art, err := h.documents.RenderActaPDF(ctx, acta.ID, callerOf(h.creator))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(art.Content, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", art.ContentType)
	assert.Regexp(t, regexp.MustCompile(`^acta-`+acta.ID+`-2024-06-01\.pdf$`), art.FileName)
	assert.Len(t, art.Digest, 64)

	stored, err := h.deps.Actas.FindByIDWithRelations(ctx, mustUUID(t, acta.ID))
	require.NoError(t, err)
	assert.Equal(t, pdf.Digest(toActaData(stored, h.deps.Clock())), art.Digest)

	_, err = h.documents.RenderActaPDF(ctx, acta.ID, callerOf(h.other))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionRenderActaPDF))
}
