package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadmit/admissions-api/internal/middleware"
	"github.com/openadmit/admissions-api/internal/models"
	"github.com/openadmit/admissions-api/internal/service"
)

type stubQueueEntries struct {
	detailed []models.WaitlistEntryDetail
	byParent []models.WaitlistEntryDetail
	gotEmail string
}

func (s *stubQueueEntries) ListActiveDetailed(ctx context.Context, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, error) {
	return s.detailed, nil
}

func (s *stubQueueEntries) ListActiveByParentEmail(ctx context.Context, parentEmail string) ([]models.WaitlistEntryDetail, error) {
	s.gotEmail = parentEmail
	return s.byParent, nil
}

func setClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, claims)
		c.Next()
	}
}

func newQueueRouter(entries *stubQueueEntries, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	queue := service.NewQueueService(entries, nil, nil, nil, nil, nil)
	h := NewWaitlistHandler(nil, queue, nil)

	r := gin.New()
	r.Use(setClaims(claims))
	r.GET("/waitlist", h.GetQueue)
	r.GET("/waitlist/parent-view", h.GetParentView)
	r.GET("/waitlist/export", h.Export)
	return r
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-1", Email: "staff@example.com", Role: models.RoleStaff}
}

func parentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-2", Email: "fam@example.com", Role: models.RoleParent}
}

func TestGetQueueHandler(t *testing.T) {
	entries := &stubQueueEntries{detailed: []models.WaitlistEntryDetail{{
		WaitlistEntry: models.WaitlistEntry{
			ID: "w-1", LeadID: "lead-1", SchoolID: "sch-1", Program: "Pre-K",
			WaitlistPosition: 1, PriorityScore: 80, Status: models.WaitlistStatusWaitlisted,
			CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		ChildName: "Ada", ParentName: "Grace", ParentEmail: "grace@example.com",
	}}}
	r := newQueueRouter(entries, staffClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/waitlist", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data struct {
			Entries []struct {
				ID            string `json:"id"`
				PriorityLabel string `json:"priority_label"`
				Status        string `json:"status"`
			} `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Entries, 1)
	assert.Equal(t, "w-1", envelope.Data.Entries[0].ID)
	assert.Equal(t, "High", envelope.Data.Entries[0].PriorityLabel)
	assert.Equal(t, "Waitlisted", envelope.Data.Entries[0].Status)
}

func TestGetParentViewUsesCallerEmail(t *testing.T) {
	entries := &stubQueueEntries{}
	r := newQueueRouter(entries, parentClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/waitlist/parent-view", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fam@example.com", entries.gotEmail)
}

func TestGetParentViewForbidsOverrideForParents(t *testing.T) {
	entries := &stubQueueEntries{}
	r := newQueueRouter(entries, parentClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/waitlist/parent-view?email=other@example.com", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetParentViewStaffOverride(t *testing.T) {
	entries := &stubQueueEntries{}
	r := newQueueRouter(entries, staffClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/waitlist/parent-view?email=Other@Example.com", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "other@example.com", entries.gotEmail)
}

func TestExportDisabled(t *testing.T) {
	r := newQueueRouter(&stubQueueEntries{}, staffClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/waitlist/export?format=csv", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuildPatchTriState(t *testing.T) {
	decode := func(t *testing.T, body string) patchRequest {
		t.Helper()
		var req patchRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req))
		return req
	}

	t.Run("absent fields stay untagged", func(t *testing.T) {
		patch, err := buildPatch(decode(t, `{"notes": "call back"}`))
		require.NoError(t, err)
		require.True(t, patch.Notes.Valid)
		assert.Equal(t, "call back", *patch.Notes.Value)
		assert.False(t, patch.PriorityScore.Valid)
		assert.False(t, patch.OfferDate.Valid)
	})

	t.Run("explicit null clears notes", func(t *testing.T) {
		patch, err := buildPatch(decode(t, `{"notes": null}`))
		require.NoError(t, err)
		assert.True(t, patch.Notes.Valid)
		assert.Nil(t, patch.Notes.Value)
	})

	t.Run("priority score cannot be null", func(t *testing.T) {
		_, err := buildPatch(decode(t, `{"priority_score": null}`))
		assert.Error(t, err)
	})

	t.Run("ui score converts to storage scale", func(t *testing.T) {
		patch, err := buildPatch(decode(t, `{"ui_score": 7}`))
		require.NoError(t, err)
		require.True(t, patch.PriorityScore.Valid)
		assert.Equal(t, 70, patch.PriorityScore.Value)
	})

	t.Run("priority score wins over ui score", func(t *testing.T) {
		patch, err := buildPatch(decode(t, `{"priority_score": 42, "ui_score": 7}`))
		require.NoError(t, err)
		assert.Equal(t, 42, patch.PriorityScore.Value)
	})

	t.Run("ui score out of range", func(t *testing.T) {
		_, err := buildPatch(decode(t, `{"ui_score": 11}`))
		assert.Error(t, err)
	})

	t.Run("offer date set and cleared", func(t *testing.T) {
		patch, err := buildPatch(decode(t, `{"offer_date": "2026-03-01T09:00:00Z"}`))
		require.NoError(t, err)
		require.True(t, patch.OfferDate.Valid)
		require.NotNil(t, patch.OfferDate.Value)
		assert.Equal(t, 2026, patch.OfferDate.Value.Year())

		patch, err = buildPatch(decode(t, `{"offer_date": null}`))
		require.NoError(t, err)
		assert.True(t, patch.OfferDate.Valid)
		assert.Nil(t, patch.OfferDate.Value)
	})

	t.Run("malformed offer date", func(t *testing.T) {
		_, err := buildPatch(decode(t, `{"offer_date": "tomorrow"}`))
		assert.Error(t, err)
	})

	t.Run("empty body yields empty patch", func(t *testing.T) {
		patch, err := buildPatch(decode(t, `{}`))
		require.NoError(t, err)
		assert.True(t, patch.Empty())
	})
}

func TestPatchHandlerRejectsEmptyPatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWaitlistHandler(nil, nil, nil)
	r := gin.New()
	r.PATCH("/waitlist/:id", h.Patch)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/waitlist/w-1", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
