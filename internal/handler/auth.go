package handler

import (
	"net/http"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Login de usuario
// @Description Credenciales en Authorization: Basic base64(mail:password)
// @Tags auth
// @Produce json
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	mail, password, ok := c.Request.BasicAuth()
	if !ok || mail == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Credenciales requeridas"))
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), mail, password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh godoc
// @Summary Renueva el token y revoca el anterior
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} dto.LoginResponse
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	resp, err := h.svc.Refresh(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Revoca el token actual
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /v1/auth/logout [delete]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
