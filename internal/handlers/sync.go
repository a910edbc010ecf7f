package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/services"
	"github.com/ltg-uic/beaconsync/internal/session"
	"github.com/ltg-uic/beaconsync/internal/types"
)

// SyncHandler exposes the bus-facing operations: push local edits, report
// terminal presence, and trigger full-state re-queries.
type SyncHandler struct {
	log          *logger.Logger
	session      *session.Session
	main         services.Target
	terminal     services.Target
	observations *services.ObservationService
	dispatch     *services.Dispatcher
}

func NewSyncHandler(log *logger.Logger, sess *session.Session, main, terminal services.Target, observations *services.ObservationService, dispatch *services.Dispatcher) *SyncHandler {
	return &SyncHandler{
		log:          log.With("handler", "SyncHandler"),
		session:      sess,
		main:         main,
		terminal:     terminal,
		observations: observations,
		dispatch:     dispatch,
	}
}

type syncRequest struct {
	SpeciesIndex *int   `json:"speciesIndex" binding:"required"`
	Condition    string `json:"condition"`
	Action       string `json:"action"`
	Place        string `json:"place"`
}

// POST /api/sync/observation
func (h *SyncHandler) SyncObservation(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	action := types.ActionOther
	if req.Action != "" {
		action = types.ActionType(req.Action)
	}
	err := h.observations.Sync(c.Request.Context(), h.main, h.main, *req.SpeciesIndex, req.Condition, action, req.Place)
	if err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type enterTerminalRequest struct {
	SpeciesIndex *int   `json:"speciesIndex" binding:"required"`
	Condition    string `json:"condition"`
	Place        string `json:"place"`
}

// POST /api/terminal/enter
func (h *SyncHandler) EnterTerminal(c *gin.Context) {
	var req enterTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	err := h.observations.EnterTerminal(c.Request.Context(), h.main, h.terminal, *req.SpeciesIndex, req.Condition, req.Place)
	if err != nil {
		respondEditError(c, err)
		return
	}
	if err := h.observations.RequestSpeciesNotes(c.Request.Context(), h.terminal); err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type clearTerminalRequest struct {
	Condition string `json:"condition"`
}

// POST /api/terminal/clear
func (h *SyncHandler) ClearTerminal(c *gin.Context) {
	var req clearTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.observations.ClearTerminal(c.Request.Context(), h.main, h.terminal, req.Condition); err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type forceSyncRequest struct {
	GroupIndex *int `json:"groupIndex" binding:"required"`
}

// POST /api/sync/force
func (h *SyncHandler) ForceSync(c *gin.Context) {
	var req forceSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	h.dispatch.ForceSync(*req.GroupIndex)
	c.Status(http.StatusAccepted)
}

// POST /api/sync/refresh/group
func (h *SyncHandler) RefreshGroupNotes(c *gin.Context) {
	if err := h.observations.RequestGroupNotes(c.Request.Context(), h.main); err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// POST /api/sync/refresh/species
func (h *SyncHandler) RefreshSpeciesNotes(c *gin.Context) {
	if err := h.observations.RequestSpeciesNotes(c.Request.Context(), h.terminal); err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type experimentRequest struct {
	Ecosystem     *int     `json:"ecosystem" binding:"required"`
	Question      string   `json:"question" binding:"required"`
	Manipulations string   `json:"manipulations"`
	Reasoning     string   `json:"reasoning"`
	Results       string   `json:"results"`
	Conclusions   string   `json:"conclusions"`
	Figures       []string `json:"figures"`
}

// PUT /api/experiments
func (h *SyncHandler) SaveExperiment(c *gin.Context) {
	var req experimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	err := h.observations.SaveExperiment(c.Request.Context(), h.main, types.ExperimentPayload{
		Ecosystem:     req.Ecosystem,
		Question:      req.Question,
		Manipulations: req.Manipulations,
		Reasoning:     req.Reasoning,
		Results:       req.Results,
		Conclusions:   req.Conclusions,
		Figures:       req.Figures,
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "experiment_save", err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GET /api/experiments
func (h *SyncHandler) ListExperiments(c *gin.Context) {
	experiments, err := h.main.Repos.Experiments.All(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "experiment_list", err)
		return
	}
	RespondOK(c, experiments)
}

// POST /api/experiments/refresh
func (h *SyncHandler) RefreshExperiments(c *gin.Context) {
	h.dispatch.QueryAllExperiments()
	c.Status(http.StatusAccepted)
}

// DELETE /api/experiments
func (h *SyncHandler) DeleteExperiments(c *gin.Context) {
	if err := h.observations.DeleteExperiments(c.Request.Context(), h.main); err != nil {
		RespondError(c, http.StatusInternalServerError, "experiment_wipe", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// PUT /api/session/mode
func (h *SyncHandler) SetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	h.session.SetMode(session.Mode(req.Mode))
	RespondOK(c, gin.H{"mode": h.session.Mode()})
}

// GET /api/session
func (h *SyncHandler) GetSession(c *gin.Context) {
	RespondOK(c, gin.H{
		"mode":  h.session.Mode(),
		"login": h.session.Login(),
	})
}
