package handler

import (
	"net/http"

	"recaudo/internal/middleware"
	"recaudo/internal/model"
	"recaudo/internal/service"
	"recaudo/pkg/pagination"
	"recaudo/pkg/response"

	"github.com/gin-gonic/gin"
)

type ActaHandler struct {
	actaService  service.ActaService
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewActaHandler(actaService service.ActaService, auditService service.AuditService, auth *middleware.Auth) *ActaHandler {
	return &ActaHandler{actaService: actaService, auditService: auditService, auth: auth}
}

func (h *ActaHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/actas")
	group.Use(h.auth.RequireRole(model.StaffRoles...))
	{
		group.POST("", h.CreateActa)
		group.GET("", h.ListActas)
		group.GET("/:id", h.GetActa)
		group.POST("/:id/participants", h.AddParticipant)
		group.POST("/:id/submit", h.SubmitForApproval)
		group.GET("/:id/links", h.GetLinks)
		group.POST("/:id/sent", h.MarkSent)
		group.GET("/:id/history", h.History)
	}
}

// CreateActa handles POST /api/actas
// @Summary      Create acta
// @Description  Creates a draft acta with its participants. Every participant starts with a pending approval.
// @Tags         actas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateActaRequest  true  "Acta"
// @Success      201      {object}  response.Response{data=service.ActaResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/actas [post]
func (h *ActaHandler) CreateActa(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req service.CreateActaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	acta, err := h.actaService.CreateActa(c.Request.Context(), req, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, acta))
}

// ListActas handles GET /api/actas
// @Summary      List actas
// @Description  Admins see every acta, other staff only the ones they created
// @Tags         actas
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "draft, pending_approval, approved or sent"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/actas [get]
func (h *ActaHandler) ListActas(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	actas, total, err := h.actaService.ListActas(c.Request.Context(), service.ActaListFilter{
		Status: c.Query("status"),
		Page:   p.Page,
		Limit:  p.Limit,
	}, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, actas, total, p.Page, p.Limit))
}

// GetActa handles GET /api/actas/:id
// @Summary      Get acta
// @Tags         actas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Acta ID"
// @Success      200  {object}  response.Response{data=service.ActaResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/actas/{id} [get]
func (h *ActaHandler) GetActa(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	acta, err := h.actaService.GetActa(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, acta))
}

// AddParticipant handles POST /api/actas/:id/participants
// @Summary      Add participant
// @Description  Only allowed while the acta is a draft
// @Tags         actas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Acta ID"
// @Param        payload  body      service.ParticipantInput  true  "Participant"
// @Success      201      {object}  response.Response{data=service.ParticipantResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/actas/{id}/participants [post]
func (h *ActaHandler) AddParticipant(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req service.ParticipantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	p, err := h.actaService.AddParticipant(c.Request.Context(), c.Param("id"), req, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, p))
}

// SubmitForApproval handles POST /api/actas/:id/submit
// @Summary      Submit acta for approval
// @Description  Moves a draft to pending_approval and returns one signed approval link per participant
// @Tags         actas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Acta ID"
// @Success      200  {object}  response.Response{data=service.SubmitActaResult}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/actas/{id}/submit [post]
func (h *ActaHandler) SubmitForApproval(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	res, err := h.actaService.SubmitForApproval(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetLinks handles GET /api/actas/:id/links
// @Summary      Participant links
// @Tags         actas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Acta ID"
// @Success      200  {object}  response.Response{data=[]service.ParticipantLink}
// @Router       /api/actas/{id}/links [get]
func (h *ActaHandler) GetLinks(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	links, err := h.actaService.GetLinks(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, links))
}

// MarkSent handles POST /api/actas/:id/sent
// @Summary      Mark acta as sent
// @Tags         actas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Acta ID"
// @Success      200  {object}  response.Response{data=service.ActaResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/actas/{id}/sent [post]
func (h *ActaHandler) MarkSent(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	acta, err := h.actaService.MarkSent(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, acta))
}

// History handles GET /api/actas/:id/history
// @Summary      Acta audit trail
// @Tags         actas
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Acta ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/actas/{id}/history [get]
func (h *ActaHandler) History(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	logs, total, err := h.auditService.ActaHistory(c.Request.Context(), c.Param("id"), caller, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, total, p.Page, p.Limit))
}
