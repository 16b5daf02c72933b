package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openadmit/admissions-api/internal/models"
	"github.com/openadmit/admissions-api/internal/service"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
	"github.com/openadmit/admissions-api/pkg/response"
)

// WaitlistHandler exposes the waitlist queue and position-management endpoints.
type WaitlistHandler struct {
	waitlist *service.WaitlistService
	queue    *service.QueueService
	exports  *service.ExportService
}

// NewWaitlistHandler constructs WaitlistHandler. The export service may be nil
// when exports are disabled.
func NewWaitlistHandler(waitlist *service.WaitlistService, queue *service.QueueService, exports *service.ExportService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist, queue: queue, exports: exports}
}

// GetQueue godoc
// @Summary Staff waitlist queue
// @Tags Waitlist
// @Produce json
// @Param schoolId query string false "Filter by school"
// @Param program query string false "Filter by program"
// @Success 200 {object} response.Envelope
// @Router /waitlist [get]
func (h *WaitlistHandler) GetQueue(c *gin.Context) {
	filter := models.WaitlistFilter{
		SchoolID: c.Query("schoolId"),
		Program:  c.Query("program"),
	}
	view, err := h.queue.GetQueue(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// GetParentView godoc
// @Summary Parent-facing waitlist view
// @Tags Waitlist
// @Produce json
// @Param email query string false "Parent email (staff only)"
// @Success 200 {object} response.Envelope
// @Router /waitlist/parent-view [get]
func (h *WaitlistHandler) GetParentView(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	email := claims.Email
	if override := c.Query("email"); override != "" {
		if !claims.IsStaff() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot view another family's waitlist"))
			return
		}
		email = override
	}

	entries, err := h.queue.GetParentView(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Enqueue godoc
// @Summary Add a lead to a waitlist partition
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param payload body service.EnqueueRequest true "Enqueue payload"
// @Success 201 {object} response.Envelope
// @Router /waitlist [post]
func (h *WaitlistHandler) Enqueue(c *gin.Context) {
	var req service.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.waitlist.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

type reorderRequest struct {
	Position int `json:"position" binding:"required"`
}

// Reorder godoc
// @Summary Move an entry to a new position within its partition
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body reorderRequest true "Target position"
// @Success 204
// @Router /waitlist/{id}/position [put]
func (h *WaitlistHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.waitlist.Reorder(c.Request.Context(), c.Param("id"), req.Position); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus godoc
// @Summary Transition an entry's status
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body statusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Router /waitlist/{id}/status [put]
func (h *WaitlistHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status := models.WaitlistStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	entry, err := h.waitlist.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// patchRequest keeps raw JSON per field so "absent" and "null" stay
// distinguishable after decoding.
type patchRequest struct {
	Notes         json.RawMessage `json:"notes"`
	PriorityScore json.RawMessage `json:"priority_score"`
	UIScore       json.RawMessage `json:"ui_score"`
	OfferDate     json.RawMessage `json:"offer_date"`
}

// Patch godoc
// @Summary Partially update an entry
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body object true "Patch payload (notes, priority_score, ui_score, offer_date)"
// @Success 200 {object} response.Envelope
// @Router /waitlist/{id} [patch]
func (h *WaitlistHandler) Patch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	patch, err := buildPatch(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if patch.Empty() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "patch carries no recognized fields"))
		return
	}

	entry, err := h.waitlist.UpdateFields(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Export godoc
// @Summary Download the staff queue as CSV or PDF
// @Tags Waitlist
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Param schoolId query string false "Filter by school"
// @Param program query string false "Filter by program"
// @Success 200
// @Router /waitlist/export [get]
func (h *WaitlistHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	filter := models.WaitlistFilter{
		SchoolID: c.Query("schoolId"),
		Program:  c.Query("program"),
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	result, err := h.exports.ExportQueue(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func buildPatch(req patchRequest) (models.WaitlistPatch, error) {
	var patch models.WaitlistPatch

	if len(req.Notes) > 0 {
		patch.Notes.Valid = true
		if !isJSONNull(req.Notes) {
			var notes string
			if err := json.Unmarshal(req.Notes, &notes); err != nil {
				return patch, appErrors.Clone(appErrors.ErrValidation, "notes must be a string or null")
			}
			patch.Notes.Value = &notes
		}
	}

	if len(req.PriorityScore) > 0 {
		if isJSONNull(req.PriorityScore) {
			return patch, appErrors.Clone(appErrors.ErrValidation, "priority_score cannot be null")
		}
		var score int
		if err := json.Unmarshal(req.PriorityScore, &score); err != nil {
			return patch, appErrors.Clone(appErrors.ErrValidation, "priority_score must be an integer")
		}
		patch.PriorityScore.Valid = true
		patch.PriorityScore.Value = score
	} else if len(req.UIScore) > 0 {
		if isJSONNull(req.UIScore) {
			return patch, appErrors.Clone(appErrors.ErrValidation, "ui_score cannot be null")
		}
		var ui int
		if err := json.Unmarshal(req.UIScore, &ui); err != nil {
			return patch, appErrors.Clone(appErrors.ErrValidation, "ui_score must be an integer")
		}
		if ui < 1 || ui > 10 {
			return patch, appErrors.Clone(appErrors.ErrValidation, "ui_score must be between 1 and 10")
		}
		patch.PriorityScore.Valid = true
		patch.PriorityScore.Value = service.FromUIScore(ui)
	}

	if len(req.OfferDate) > 0 {
		patch.OfferDate.Valid = true
		if !isJSONNull(req.OfferDate) {
			var raw string
			if err := json.Unmarshal(req.OfferDate, &raw); err != nil {
				return patch, appErrors.Clone(appErrors.ErrValidation, "offer_date must be an RFC 3339 timestamp or null")
			}
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return patch, appErrors.Clone(appErrors.ErrValidation, "offer_date must be an RFC 3339 timestamp or null")
			}
			patch.OfferDate.Value = &parsed
		}
	}

	return patch, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
