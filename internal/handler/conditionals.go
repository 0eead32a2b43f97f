package handler

import (
	"net/http"

	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/service"

	"github.com/gin-gonic/gin"
)

type ConditionalsHandler struct {
	svc     service.ConditionalService
	reports service.ReportService
}

func NewConditionalsHandler(svc service.ConditionalService, reports service.ReportService) *ConditionalsHandler {
	return &ConditionalsHandler{svc: svc, reports: reports}
}

// Create godoc
// @Summary Registra un condicional y reserva el stock
// @Tags conditionals
// @Accept json
// @Param body body dto.CreateConditionalRequest true "Condicional"
// @Success 201 {object} dto.CreatedResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/conditionals [put]
func (h *ConditionalsHandler) Create(c *gin.Context) {
	var req dto.CreateConditionalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	id, err := h.svc.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreatedResponse{ID: id})
}

func (h *ConditionalsHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PatchStatus godoc
// @Summary Devuelve o cancela un condicional pendiente
// @Tags conditionals
// @Param id path int true "Condicional"
// @Param body body dto.PatchConditionalRequest true "Nuevo estado"
// @Success 204
// @Failure 409 {object} apierror.APIError
// @Router /v1/conditionals/{id} [patch]
func (h *ConditionalsHandler) PatchStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.PatchConditionalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.PatchStatus(c.Request.Context(), actorID(c), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// List answers JSON, or a PDF report with ?format=pdf.
func (h *ConditionalsHandler) List(c *gin.Context) {
	var f dto.ConditionalFilter
	if !bindQuery(c, &f) {
		return
	}
	if f.Format == "pdf" {
		r, err := h.reports.ConditionalsReport(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		sendReport(c, r)
		return
	}
	resp, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConditionalsHandler) PDF(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	r, err := h.reports.ConditionalReceipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendReport(c, r)
}
