package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/services"
	"github.com/ltg-uic/beaconsync/internal/types"
)

type RuntimeHandler struct {
	log      *logger.Logger
	main     services.Target
	terminal services.Target
	runtime  *services.RuntimeService
}

func NewRuntimeHandler(log *logger.Logger, main, terminal services.Target, runtime *services.RuntimeService) *RuntimeHandler {
	return &RuntimeHandler{
		log:      log.With("handler", "RuntimeHandler"),
		main:     main,
		terminal: terminal,
		runtime:  runtime,
	}
}

// targetFor maps the :store path segment to a store handle.
func (h *RuntimeHandler) targetFor(c *gin.Context) (services.Target, bool) {
	switch c.Param("store") {
	case "main":
		return h.main, true
	case "terminal":
		return h.terminal, true
	default:
		RespondError(c, http.StatusNotFound, "unknown_store", errors.New("store must be main or terminal"))
		return services.Target{}, false
	}
}

// GET /api/stores/:store/runtime
func (h *RuntimeHandler) Get(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	rt, err := h.runtime.Current(c.Request.Context(), t)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "runtime_read", err)
		return
	}
	if rt == nil {
		rt = &types.Runtime{ID: types.RuntimeID}
	}
	RespondOK(c, rt)
}

type runtimeUpdateRequest struct {
	SectionName  *string `json:"sectionName"`
	GroupIndex   *int    `json:"groupIndex"`
	SpeciesIndex *int    `json:"speciesIndex"`
	Action       *string `json:"action"`
}

// PUT /api/stores/:store/runtime
func (h *RuntimeHandler) Update(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	var req runtimeUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	upd := services.RuntimeUpdate{
		SectionName:  req.SectionName,
		GroupIndex:   req.GroupIndex,
		SpeciesIndex: req.SpeciesIndex,
	}
	if req.Action != nil {
		action := types.ActionType(*req.Action)
		upd.Action = &action
	}
	if err := h.runtime.Update(c.Request.Context(), t, upd); err != nil {
		RespondError(c, http.StatusInternalServerError, "runtime_update", err)
		return
	}
	rt, err := h.runtime.Current(c.Request.Context(), t)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "runtime_read", err)
		return
	}
	RespondOK(c, rt)
}
