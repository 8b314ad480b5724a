package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fieldsafe/ptw/internal/config"
	"github.com/fieldsafe/ptw/internal/middleware"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/fieldsafe/ptw/internal/ptw/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPermitRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	cfg := &config.Config{}
	services := service.NewServices(repos, nil, cfg, nil, zap.NewNop())
	h := NewPermitHandler(services.Permit, services.Export)

	r := testutil.SetupRouter()
	permits := testutil.AuthGroup(r, "/api/v1/permits")
	permits.POST("", h.Create)
	permits.GET("/:id", h.Get)
	permits.PUT("/:id/gates", h.UpdateGates)
	permits.POST("/:id/submit", h.Submit)
	permits.POST("/:id/approve", middleware.RequireRole("approver"), h.Approve)
	permits.POST("/:id/reject", middleware.RequireRole("approver"), h.Reject)
	permits.POST("/:id/gas-tests", h.AddGasTest)
	permits.GET("/:id/audit", h.ListAudit)
	permits.GET("/:id/export", h.Export)

	testutil.SeedTestUser(t, db, "req-1", "Requester One", []string{entity.RoleRequester})
	testutil.SeedTestUser(t, db, "app-1", "Approver One", []string{entity.RoleApprover})
	testutil.SeedTestLocation(t, db, "loc-1", "A-01", "Tank Farm")
	testutil.SeedTestContractor(t, db, "con-1", "C-01", "Acme Industrial")

	return r, db
}

func TestPermitHappyPath(t *testing.T) {
	r, _ := setupPermitRouter(t)
	requester := testutil.RequesterToken("req-1")
	approver := testutil.ApproverToken("app-1")

	now := time.Now()
	w := testutil.DoRequest(r, "POST", "/api/v1/permits", map[string]interface{}{
		"type":              entity.PermitTypeHotWork,
		"description":       "Welding repair on line 4",
		"location_id":       "loc-1",
		"contractor_id":     "con-1",
		"work_entity":       "Maintenance",
		"emergency_contact": "+90 555 000 0000",
		"personnel": []map[string]interface{}{
			{"name": "A. Demir", "role": "welder"},
		},
		"valid_from":  now.Add(-time.Hour).Format(time.RFC3339),
		"valid_until": now.Add(7 * time.Hour).Format(time.RFC3339),
	}, requester)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	permitID := data["id"].(string)
	assert.Equal(t, "draft", data["status"])
	// hot work forces the atmospheric test flag
	assert.Equal(t, true, data["on_site_test_required"])

	base := "/api/v1/permits/" + permitID

	w = testutil.DoRequest(r, "PUT", base+"/gates", map[string]interface{}{
		"hazards_identified":   true,
		"controls_implemented": true,
		"ppe_identified":       true,
		"equipment_identified": true,
	}, requester)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.DoRequest(r, "POST", base+"/submit", nil, requester)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])

	// requester cannot approve
	w = testutil.DoRequest(r, "POST", base+"/approve", nil, requester)
	require.Equal(t, http.StatusForbidden, w.Code)

	// window already open, approval goes straight to active
	w = testutil.DoRequest(r, "POST", base+"/approve", nil, approver)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, "active", data["status"])

	w = testutil.DoRequest(r, "POST", base+"/gas-tests", map[string]interface{}{
		"oxygen": 20.9,
		"lel":    0.1,
		"result": "safe",
	}, requester)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = testutil.DoRequest(r, "GET", base+"/audit", nil, requester)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(r, "GET", base+"/export?format=csv", nil, requester)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
}

func TestPermitSubmitWithoutGates(t *testing.T) {
	r, db := setupPermitRouter(t)
	requester := testutil.RequesterToken("req-1")

	p := testutil.SeedTestPermit(t, db, &entity.Permit{
		ID:          "p-nogates",
		Type:        entity.PermitTypeColdWork,
		Description: "x",
		LocationID:  "loc-1", ContractorID: "con-1",
		WorkEntity: "x", EmergencyContact: "x",
		RequestedBy: "req-1",
	})

	w := testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/permits/%s/submit", p.ID), nil, requester)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	resp := testutil.ParseResponse(w)
	assert.EqualValues(t, 42200, resp["code"])
}

func TestPermitRejectNeedsReason(t *testing.T) {
	r, db := setupPermitRouter(t)
	approver := testutil.ApproverToken("app-1")

	testutil.SeedTestPermit(t, db, &entity.Permit{
		ID:          "p-rej",
		Type:        entity.PermitTypeColdWork,
		Description: "x",
		LocationID:  "loc-1", ContractorID: "con-1",
		WorkEntity: "x", EmergencyContact: "x",
		RequestedBy: "req-1",
		Status:      entity.PermitStatusPending,
	})

	w := testutil.DoRequest(r, "POST", "/api/v1/permits/p-rej/reject", nil, approver)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = testutil.DoRequest(r, "POST", "/api/v1/permits/p-rej/reject",
		map[string]interface{}{"reason": "crew not briefed"}, approver)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	assert.Equal(t, "rejected", data["status"])
	assert.Equal(t, "crew not briefed", data["rejection_reason"])
}

func TestPermitGetNotFound(t *testing.T) {
	r, _ := setupPermitRouter(t)

	w := testutil.DoRequest(r, "GET", "/api/v1/permits/missing", nil, testutil.AdminToken())
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := testutil.ParseResponse(w)
	assert.EqualValues(t, 40400, resp["code"])
}

func TestPermitRequiresAuth(t *testing.T) {
	r, _ := setupPermitRouter(t)

	w := testutil.DoRequest(r, "GET", "/api/v1/permits/whatever", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
