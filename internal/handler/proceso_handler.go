package handler

import (
	"net/http"
	"time"

	"recaudo/internal/middleware"
	"recaudo/internal/model"
	"recaudo/internal/service"
	"recaudo/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProcesoHandler struct {
	procesoService service.ProcesoService
	auth           *middleware.Auth
	now            func() time.Time
}

func NewProcesoHandler(procesoService service.ProcesoService, auth *middleware.Auth) *ProcesoHandler {
	return &ProcesoHandler{procesoService: procesoService, auth: auth, now: time.Now}
}

func (h *ProcesoHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/procesos")
	{
		group.POST("", h.auth.RequireRole(model.RoleAdmin, model.RoleManager), h.CreateProceso)
		group.GET("/semaforo", h.auth.RequireRole(model.StaffRoles...), h.ListSemaforo)
		group.GET("/semaforo/resumen", h.auth.RequireRole(model.StaffRoles...), h.Summary)
	}
}

// referenceDate reads ?fecha=YYYY-MM-DD as a local calendar day, defaulting to today.
func (h *ProcesoHandler) referenceDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("fecha")
	if raw == "" {
		return h.now(), true
	}
	ref, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "fecha must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return ref, true
}

// CreateProceso handles POST /api/procesos
// @Summary      Register a collection process
// @Tags         procesos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateProcesoRequest  true  "Proceso"
// @Success      201      {object}  response.Response{data=service.ProcesoResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/procesos [post]
func (h *ProcesoHandler) CreateProceso(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req service.CreateProcesoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	p, err := h.procesoService.CreateProceso(c.Request.Context(), req, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, p))
}

// ListSemaforo handles GET /api/procesos/semaforo
// @Summary      Prioritized processes
// @Description  Processes classified by days left until prescription, most urgent first
// @Tags         procesos
// @Produce      json
// @Security     BearerAuth
// @Param        fecha  query     string  false  "Reference date YYYY-MM-DD (default today)"
// @Param        nivel  query     string  false  "red, yellow, green or none"
// @Success      200    {object}  response.Response{data=[]service.ProcesoResponse}
// @Failure      400    {object}  response.Response
// @Router       /api/procesos/semaforo [get]
func (h *ProcesoHandler) ListSemaforo(c *gin.Context) {
	ref, ok := h.referenceDate(c)
	if !ok {
		return
	}
	list, err := h.procesoService.ListPrioritized(c.Request.Context(), ref, c.Query("nivel"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, list))
}

// Summary handles GET /api/procesos/semaforo/resumen
// @Summary      Semaforo totals
// @Tags         procesos
// @Produce      json
// @Security     BearerAuth
// @Param        fecha  query     string  false  "Reference date YYYY-MM-DD (default today)"
// @Success      200    {object}  response.Response{data=service.SemaforoSummary}
// @Router       /api/procesos/semaforo/resumen [get]
func (h *ProcesoHandler) Summary(c *gin.Context) {
	ref, ok := h.referenceDate(c)
	if !ok {
		return
	}
	summary, err := h.procesoService.Summary(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
