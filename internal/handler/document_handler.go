package handler

import (
	"errors"
	"io"
	"net/http"

	"recaudo/internal/middleware"
	"recaudo/internal/model"
	"recaudo/internal/service"
	"recaudo/pkg/response"

	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	documentService service.DocumentService
	auth            *middleware.Auth
	maxUpload       int64
}

func NewDocumentHandler(documentService service.DocumentService, auth *middleware.Auth, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, auth: auth, maxUpload: maxUpload}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/actas")
	group.Use(h.auth.RequireRole(model.StaffRoles...))
	{
		group.POST("/:id/documents", h.UploadDocument)
		group.GET("/:id/documents/:docId", h.GetDocument)
		group.GET("/:id/participants/:participantId/photo", h.GetEvidencePhoto)
		group.GET("/:id/pdf", h.RenderPDF)
	}
}

// readUpload pulls the named multipart file into memory, capped at limit bytes.
func readUpload(c *gin.Context, field string, limit int64) (data []byte, name, contentType string, err error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", "", err
	}
	if fh.Size > limit {
		return nil, "", "", errTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", "", err
	}
	if int64(len(data)) > limit {
		return nil, "", "", errTooLarge
	}
	return data, fh.Filename, fh.Header.Get("Content-Type"), nil
}

var errTooLarge = errors.New("file too large")

// UploadDocument handles POST /api/actas/:id/documents
// @Summary      Attach a document
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true  "Acta ID"
// @Param        file  formData  file    true  "Document"
// @Success      201   {object}  response.Response{data=service.DocumentResponse}
// @Failure      400   {object}  response.Response
// @Failure      413   {object}  response.Response
// @Router       /api/actas/{id}/documents [post]
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))

	data, name, contentType, err := readUpload(c, "file", h.maxUpload)
	if errors.Is(err, errTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, response.Error(http.StatusRequestEntityTooLarge, "File too large"))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "file is required"))
		return
	}

	doc, err := h.documentService.UploadDocument(c.Request.Context(), c.Param("id"), service.UploadDocumentRequest{
		FileName:     name,
		DeclaredMime: contentType,
		Data:         data,
	}, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// GetDocument handles GET /api/actas/:id/documents/:docId
// @Summary      Download a document
// @Tags         documents
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id     path  string  true  "Acta ID"
// @Param        docId  path  string  true  "Document ID"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /api/actas/{id}/documents/{docId} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	art, err := h.documentService.GetDocument(c.Request.Context(), c.Param("id"), c.Param("docId"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	writeArtifact(c, art)
}

// GetEvidencePhoto handles GET /api/actas/:id/participants/:participantId/photo
// @Summary      Approval photo
// @Tags         documents
// @Produce      image/jpeg,image/png
// @Security     BearerAuth
// @Param        id             path  string  true  "Acta ID"
// @Param        participantId  path  string  true  "Participant ID"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /api/actas/{id}/participants/{participantId}/photo [get]
func (h *DocumentHandler) GetEvidencePhoto(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	art, err := h.documentService.GetEvidencePhoto(c.Request.Context(), c.Param("id"), c.Param("participantId"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	writeArtifact(c, art)
}

// RenderPDF handles GET /api/actas/:id/pdf
// @Summary      Render acta PDF
// @Description  The X-Acta-Digest header carries a SHA-256 over the acta content and its approval lines, not over the PDF bytes
// @Tags         documents
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  string  true  "Acta ID"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /api/actas/{id}/pdf [get]
func (h *DocumentHandler) RenderPDF(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	art, err := h.documentService.RenderActaPDF(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	writeArtifact(c, art)
}
