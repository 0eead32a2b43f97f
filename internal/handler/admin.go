package handler

import (
	"context"
	"net/http"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/service"
	"github.com/VCalixtoR/gestaomt-back/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type EventsHandler struct{ svc service.EventService }

func NewEventsHandler(svc service.EventService) *EventsHandler { return &EventsHandler{svc: svc} }

func (h *EventsHandler) List(c *gin.Context) {
	var f dto.EventFilter
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

// CacheInvalidator drops cached reference data.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type AdminHandler struct {
	refs CacheInvalidator
	dlq  DeadLetterReader
}

func NewAdminHandler(refs CacheInvalidator, dlq DeadLetterReader) *AdminHandler {
	return &AdminHandler{refs: refs, dlq: dlq}
}

// InvalidateCache godoc
// @Summary Descarta las tablas de referencia en cache
// @Tags admin
// @Security BearerAuth
// @Success 204
// @Router /v1/admin/cache/invalidate [post]
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	if err := h.refs.Invalidate(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	log.Info().Int64("user_id", actorID(c)).Msg("reference cache invalidated")
	c.Status(http.StatusNoContent)
}

// DeadLetterReader exposes the parked job failures.
type DeadLetterReader interface {
	Counts(ctx context.Context) (map[string]int64, error)
	Recent(ctx context.Context, source string, n int64) ([]worker.DeadLetter, error)
}

type dlqQuery struct {
	Source string `form:"source"`
	Limit  int64  `form:"limit,default=20" validate:"min=1,max=200"`
}

// DeadLetters godoc
// @Summary Trabajos fallidos por cola; con ?source= incluye los ultimos
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /v1/admin/dlq [get]
func (h *AdminHandler) DeadLetters(c *gin.Context) {
	var q dlqQuery
	if !bindQuery(c, &q) {
		return
	}
	counts, err := h.dlq.Counts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"counts": counts}
	if q.Source != "" {
		recent, err := h.dlq.Recent(c.Request.Context(), q.Source, q.Limit)
		if err != nil {
			respondError(c, apierror.Validationf("Cola desconocida: %s", q.Source))
			return
		}
		resp["entries"] = recent
	}
	c.JSON(http.StatusOK, resp)
}
