package handler

import (
	"net/http"

	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/service"

	"github.com/gin-gonic/gin"
)

// ── Clients ──────────────────────────────────────────────────────────────────

type ClientsHandler struct{ svc service.ClientService }

func NewClientsHandler(svc service.ClientService) *ClientsHandler {
	return &ClientsHandler{svc: svc}
}

func (h *ClientsHandler) Create(c *gin.Context) {
	var req dto.CreateClientRequest
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

func (h *ClientsHandler) Get(c *gin.Context) {
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

func (h *ClientsHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateClientRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientsHandler) List(c *gin.Context) {
	var f dto.ClientFilter
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

// ── Employees ────────────────────────────────────────────────────────────────

type EmployeesHandler struct{ svc service.EmployeeService }

func NewEmployeesHandler(svc service.EmployeeService) *EmployeesHandler {
	return &EmployeesHandler{svc: svc}
}

func (h *EmployeesHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EmployeesHandler) Get(c *gin.Context) {
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

// Update godoc
// @Summary Cambia estado, permiso de ingreso o comision de un empleado
// @Tags employees
// @Param id path int true "Empleado"
// @Param body body dto.UpdateEmployeeRequest true "Cambios"
// @Success 200 {object} dto.EmployeeResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/employees/{id} [patch]
func (h *EmployeesHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateEmployeeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EmployeesHandler) Sales(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var f dto.EmployeeSalesFilter
	if !bindQuery(c, &f) {
		return
	}
	resp, err := h.svc.Sales(c.Request.Context(), id, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EmployeesHandler) Summary(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var f dto.EmployeeSalesFilter
	if !bindQuery(c, &f) {
		return
	}
	resp, err := h.svc.Summary(c.Request.Context(), id, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Users ────────────────────────────────────────────────────────────────────

type UsersHandler struct{ svc service.UserService }

func NewUsersHandler(svc service.UserService) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// Register godoc
// @Summary Registro publico de un empleado; queda pendiente hasta que un admin lo apruebe
// @Tags users
// @Param body body dto.RegisterUserRequest true "Datos del usuario"
// @Success 201 {object} dto.CreatedResponse
// @Failure 409 {object} apierror.APIError "correo o CPF en uso"
// @Failure 422 {object} apierror.APIError
// @Router /v1/users [put]
func (h *UsersHandler) Register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if !bindAndValidate(c, &req) {
		return
	}
	id, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreatedResponse{ID: id})
}

func (h *UsersHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UsersHandler) Pending(c *gin.Context) {
	resp, err := h.svc.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UsersHandler) Get(c *gin.Context) {
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

// Approve godoc
// @Summary Aprueba un registro pendiente y crea el empleado con comision 0.03
// @Tags users
// @Param id path int true "Usuario"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError "ya aprobado"
// @Router /v1/users/pending/{id} [patch]
func (h *UsersHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Approve(c.Request.Context(), actorID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Deny godoc
// @Summary Rechaza y elimina un registro pendiente
// @Tags users
// @Param id path int true "Usuario"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError "ya aprobado"
// @Router /v1/users/pending/{id} [delete]
func (h *UsersHandler) Deny(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Deny(c.Request.Context(), actorID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
