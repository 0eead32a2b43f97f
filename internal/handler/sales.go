package handler

import (
	"net/http"

	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/service"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct {
	svc     service.SaleService
	reports service.ReportService
}

func NewSalesHandler(svc service.SaleService, reports service.ReportService) *SalesHandler {
	return &SalesHandler{svc: svc, reports: reports}
}

// Create godoc
// @Summary Registra una venta con sus pagos
// @Tags sales
// @Accept json
// @Param body body dto.CreateSaleRequest true "Venta"
// @Success 201 {object} dto.CreatedResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/sales [put]
func (h *SalesHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
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

func (h *SalesHandler) Get(c *gin.Context) {
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

// Cancel godoc
// @Summary Cancela una venta y devuelve el stock
// @Tags sales
// @Param id path int true "Venta"
// @Success 204
// @Failure 409 {object} apierror.APIError
// @Router /v1/sales/{id} [delete]
func (h *SalesHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), actorID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SalesHandler) List(c *gin.Context) {
	var f dto.SaleFilter
	if !bindQuery(c, &f) {
		return
	}
	if f.Format == "pdf" {
		r, err := h.reports.SalesReport(c.Request.Context(), f)
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

func (h *SalesHandler) PDF(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	r, err := h.reports.SaleReceipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendReport(c, r)
}

// EmailReceipt queues the receipt PDF for the client's mail.
func (h *SalesHandler) EmailReceipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.reports.EmailSaleReceipt(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

func (h *SalesHandler) PaymentMethods(c *gin.Context) {
	resp, err := h.svc.PaymentMethods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
