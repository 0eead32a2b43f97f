package handler

import (
	"net/http"
	"strconv"

	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/service"

	"github.com/gin-gonic/gin"
)

// ProductIDHeader reports the product id after an update, which changes
// when an immutable product is forked.
const ProductIDHeader = "X-Product-ID"

type ProductsHandler struct{ svc service.CatalogService }

func NewProductsHandler(svc service.CatalogService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// Create godoc
// @Summary Crea un producto con sus variaciones
// @Tags products
// @Accept json
// @Param body body dto.ProductRequest true "Producto"
// @Success 201 {object} dto.CreatedResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/products [put]
func (h *ProductsHandler) Create(c *gin.Context) {
	var req dto.ProductRequest
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

// Update godoc
// @Summary Actualiza un producto; un producto inmutable con nuevo codigo o nombre se bifurca
// @Tags products
// @Accept json
// @Param id path int true "Producto"
// @Param body body dto.ProductRequest true "Producto"
// @Success 204 "X-Product-ID carries the id the product lives under"
// @Failure 404 {object} apierror.APIError "missing or already deleted"
// @Router /v1/products/{id} [patch]
func (h *ProductsHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	newID, err := h.svc.Update(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header(ProductIDHeader, strconv.FormatInt(newID, 10))
	c.Status(http.StatusNoContent)
}

// Delete godoc
// @Summary Elimina un producto; si ya fue vendido o reservado solo se desactiva
// @Tags products
// @Param id path int true "Producto"
// @Success 204
// @Failure 404 {object} apierror.APIError "missing or already deleted"
// @Router /v1/products/{id} [delete]
func (h *ProductsHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actorID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProductsHandler) GetByCode(c *gin.Context) {
	resp, err := h.svc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) List(c *gin.Context) {
	var f dto.ProductFilter
	if !bindQuery(c, &f) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) Info(c *gin.Context) {
	resp, err := h.svc.Info(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type pageQuery struct {
	Limit  int `form:"limit,default=50" validate:"min=0,max=500"`
	Offset int `form:"offset"           validate:"min=0"`
}

func (h *ProductsHandler) Movements(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var page pageQuery
	if !bindQuery(c, &page) {
		return
	}
	movements, total, err := h.svc.Movements(c.Request.Context(), id, page.Limit, page.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "movements": movements})
}
