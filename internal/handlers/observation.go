package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/services"
)

type ObservationHandler struct {
	log          *logger.Logger
	main         services.Target
	terminal     services.Target
	observations *services.ObservationService
}

func NewObservationHandler(log *logger.Logger, main, terminal services.Target, observations *services.ObservationService) *ObservationHandler {
	return &ObservationHandler{
		log:          log.With("handler", "ObservationHandler"),
		main:         main,
		terminal:     terminal,
		observations: observations,
	}
}

func (h *ObservationHandler) targetFor(c *gin.Context) (services.Target, bool) {
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

func speciesIndexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("speciesIndex"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_species_index", err)
		return 0, false
	}
	return index, true
}

func respondEditError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoRuntime), errors.Is(err, services.ErrNoObservation):
		RespondError(c, http.StatusConflict, "no_edit_target", err)
	default:
		RespondError(c, http.StatusInternalServerError, "edit_failed", err)
	}
}

// GET /api/stores/:store/observations
func (h *ObservationHandler) List(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	observations, err := t.Repos.Observations.All(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "observation_list", err)
		return
	}
	for _, observation := range observations {
		if err := t.Repos.Observations.Preload(c.Request.Context(), nil, observation); err != nil {
			RespondError(c, http.StatusInternalServerError, "observation_list", err)
			return
		}
	}
	RespondOK(c, observations)
}

type relationshipRequest struct {
	RelationshipType string   `json:"relationshipType" binding:"required"`
	ToSpeciesIndex   *int     `json:"toSpeciesIndex" binding:"required"`
	EcosystemIndex   *int     `json:"ecosystemIndex"`
	Note             string   `json:"note"`
	Attachments      []string `json:"attachments"`
}

// POST /api/stores/:store/observations/:speciesIndex/relationships
func (h *ObservationHandler) AddRelationship(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	speciesIndex, ok := speciesIndexParam(c)
	if !ok {
		return
	}
	var req relationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	err := h.observations.AddRelationship(c.Request.Context(), t, speciesIndex, services.RelationshipInput{
		RelationshipType: req.RelationshipType,
		ToSpeciesIndex:   *req.ToSpeciesIndex,
		EcosystemIndex:   req.EcosystemIndex,
		Note:             req.Note,
		Attachments:      req.Attachments,
	})
	if err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/stores/:store/observations/:speciesIndex/relationships
func (h *ObservationHandler) DeleteRelationship(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	speciesIndex, ok := speciesIndexParam(c)
	if !ok {
		return
	}
	relationshipType := c.Query("relationshipType")
	toSpeciesIndex, err := strconv.Atoi(c.Query("toSpeciesIndex"))
	if relationshipType == "" || err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", errors.New("relationshipType and toSpeciesIndex are required"))
		return
	}

	if err := h.observations.DeleteRelationship(c.Request.Context(), t, speciesIndex, relationshipType, toSpeciesIndex); err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type preferenceRequest struct {
	Type         string `json:"type" binding:"required"`
	Value        string `json:"value"`
	HabitatIndex *int   `json:"habitatIndex" binding:"required"`
}

// POST /api/stores/:store/observations/:speciesIndex/preferences
func (h *ObservationHandler) AddPreference(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	speciesIndex, ok := speciesIndexParam(c)
	if !ok {
		return
	}
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	err := h.observations.AddPreference(c.Request.Context(), t, speciesIndex, services.PreferenceInput{
		Type:         req.Type,
		Value:        req.Value,
		HabitatIndex: *req.HabitatIndex,
	})
	if err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/stores/:store/observations/:speciesIndex/preferences
func (h *ObservationHandler) DeletePreference(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	speciesIndex, ok := speciesIndexParam(c)
	if !ok {
		return
	}
	habitatIndex, err := strconv.Atoi(c.Query("habitatIndex"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", errors.New("habitatIndex is required"))
		return
	}

	if err := h.observations.DeletePreference(c.Request.Context(), t, speciesIndex, habitatIndex); err != nil {
		respondEditError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/stores/:store/observations
func (h *ObservationHandler) DeleteAll(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	if err := h.observations.DeleteAllObservations(c.Request.Context(), t); err != nil {
		RespondError(c, http.StatusInternalServerError, "observation_wipe", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/stores/:store/channels
func (h *ObservationHandler) DeleteChannels(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	if err := h.observations.DeleteChannels(c.Request.Context(), t); err != nil {
		RespondError(c, http.StatusInternalServerError, "channel_wipe", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/stores/:store/userdata wipes everything a session wrote:
// observations with children, experiments, and channel records.
func (h *ObservationHandler) DeleteUserData(c *gin.Context) {
	t, ok := h.targetFor(c)
	if !ok {
		return
	}
	if err := h.observations.DeleteAllUserData(c.Request.Context(), t); err != nil {
		RespondError(c, http.StatusInternalServerError, "userdata_wipe", err)
		return
	}
	c.Status(http.StatusNoContent)
}
