package handler

import (
	"errors"
	"net/http"

	"recaudo/internal/service"
	"recaudo/pkg/response"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the signed links handed to participants. No session is required;
// the HMAC signature in the query string is the credential.
type PublicHandler struct {
	approvalService service.ApprovalService
	documentService service.DocumentService
	maxUpload       int64
}

func NewPublicHandler(approvalService service.ApprovalService, documentService service.DocumentService, maxUpload int64) *PublicHandler {
	return &PublicHandler{approvalService: approvalService, documentService: documentService, maxUpload: maxUpload}
}

func (h *PublicHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/public/actas")
	{
		group.GET("/aprobar", h.GetApproval)
		group.POST("/aprobar", h.SubmitApproval)
		group.GET("/documento", h.GetDocument)
		group.GET("/foto", h.GetPhoto)
	}
}

// GetApproval handles GET /public/actas/aprobar
// @Summary      Approval page state
// @Tags         public
// @Produce      json
// @Param        acta        query     string  true  "Acta ID"
// @Param        integrante  query     string  true  "Participant ID"
// @Param        firma       query     string  true  "Signature"
// @Success      200         {object}  response.Response{data=service.ApprovalView}
// @Failure      404         {object}  response.Response
// @Router       /public/actas/aprobar [get]
func (h *PublicHandler) GetApproval(c *gin.Context) {
	var params service.LinkParams
	if err := c.ShouldBindQuery(&params); err != nil {
		writeError(c, service.ErrNotFound)
		return
	}
	view, err := h.approvalService.GetLinkState(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// SubmitApproval handles POST /public/actas/aprobar
// @Summary      Approve an acta
// @Description  Records the participant's approval. Approving twice returns the existing approval.
// @Tags         public
// @Accept       multipart/form-data
// @Produce      json
// @Param        acta        query     string  false  "Acta ID (or form field)"
// @Param        integrante  query     string  false  "Participant ID (or form field)"
// @Param        firma       query     string  false  "Signature (or form field)"
// @Param        foto        formData  file    false  "Evidence photo"
// @Success      200         {object}  response.Response{data=service.ApprovalView}
// @Failure      404         {object}  response.Response
// @Failure      409         {object}  response.Response
// @Router       /public/actas/aprobar [post]
func (h *PublicHandler) SubmitApproval(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))

	params, ok := submitLinkParams(c)
	if !ok {
		writeError(c, service.ErrNotFound)
		return
	}
	req := service.SubmitApprovalRequest{
		LinkParams: params,
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}

	if _, err := c.FormFile("foto"); err == nil {
		data, _, contentType, err := readUpload(c, "foto", h.maxUpload)
		if errors.Is(err, errTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response.Error(http.StatusRequestEntityTooLarge, "Photo too large"))
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid photo"))
			return
		}
		req.Photo, req.PhotoMime = data, contentType
	}

	view, err := h.approvalService.SubmitApproval(c.Request.Context(), req)
	if errors.Is(err, service.ErrAlreadyApproved) && view != nil {
		c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, view, "Already approved"))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, view, "Approval recorded"))
}

// submitLinkParams reads the link fields from the query string, which is where the signed
// link carries them, and falls back to form fields for clients that post them in the body.
func submitLinkParams(c *gin.Context) (service.LinkParams, bool) {
	var params service.LinkParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return params, false
	}
	var form service.LinkParams
	if err := c.ShouldBind(&form); err != nil {
		return params, false
	}
	if params.ActaID == "" {
		params.ActaID = form.ActaID
	}
	if params.ParticipantID == "" {
		params.ParticipantID = form.ParticipantID
	}
	if params.Signature == "" {
		params.Signature = form.Signature
	}
	return params, true
}

// GetDocument handles GET /public/actas/documento
// @Summary      Download a document through a participant link
// @Tags         public
// @Produce      octet-stream
// @Param        acta        query  string  true  "Acta ID"
// @Param        integrante  query  string  true  "Participant ID"
// @Param        doc         query  string  true  "Document ID"
// @Param        firma       query  string  true  "Signature"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /public/actas/documento [get]
func (h *PublicHandler) GetDocument(c *gin.Context) {
	var params service.DocumentLinkParams
	if err := c.ShouldBindQuery(&params); err != nil {
		writeError(c, service.ErrNotFound)
		return
	}
	art, err := h.documentService.GetDocumentWithLink(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	writeArtifact(c, art)
}

// GetPhoto handles GET /public/actas/foto
// @Summary      Participant's own approval photo
// @Tags         public
// @Produce      image/jpeg,image/png
// @Param        acta        query  string  true  "Acta ID"
// @Param        integrante  query  string  true  "Participant ID"
// @Param        firma       query  string  true  "Signature"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /public/actas/foto [get]
func (h *PublicHandler) GetPhoto(c *gin.Context) {
	var params service.LinkParams
	if err := c.ShouldBindQuery(&params); err != nil {
		writeError(c, service.ErrNotFound)
		return
	}
	art, err := h.documentService.GetEvidencePhotoWithLink(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	writeArtifact(c, art)
}
