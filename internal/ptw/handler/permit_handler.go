package handler

import (
	"fmt"

	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/fieldsafe/ptw/internal/ptw/workflow"
	"github.com/gin-gonic/gin"
)

// PermitHandler permit lifecycle endpoints
type PermitHandler struct {
	svc       *service.PermitService
	exportSvc *service.ExportService
}

// NewPermitHandler creates the permit handler
func NewPermitHandler(svc *service.PermitService, exportSvc *service.ExportService) *PermitHandler {
	return &PermitHandler{svc: svc, exportSvc: exportSvc}
}

// Create opens a new draft permit
// POST /api/v1/permits
func (h *PermitHandler) Create(c *gin.Context) {
	var req service.CreatePermitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	permit, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, permit)
}

// List returns a filtered permit page
// GET /api/v1/permits
func (h *PermitHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"keyword":       c.Query("keyword"),
		"status":        c.Query("status"),
		"type":          c.Query("type"),
		"risk_level":    c.Query("risk_level"),
		"location_id":   c.Query("location_id"),
		"contractor_id": c.Query("contractor_id"),
		"requested_by":  c.Query("requested_by"),
	}
	result, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// Get returns one permit with children and computed fields
// GET /api/v1/permits/:id
func (h *PermitHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, detail)
}

// Update edits a draft permit
// PUT /api/v1/permits/:id
func (h *PermitHandler) Update(c *gin.Context) {
	var req service.UpdatePermitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	permit, err := h.svc.Update(c.Request.Context(), c.Param("id"), GetActor(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, permit)
}

// UpdateGates toggles the preparation gates
// PUT /api/v1/permits/:id/gates
func (h *PermitHandler) UpdateGates(c *gin.Context) {
	var req service.UpdateGatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	permit, err := h.svc.UpdateGates(c.Request.Context(), c.Param("id"), GetActor(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, permit)
}

// ApproveDepartment records the affected-department sign-off
// POST /api/v1/permits/:id/department-approval
func (h *PermitHandler) ApproveDepartment(c *gin.Context) {
	if err := h.svc.ApproveDepartment(c.Request.Context(), c.Param("id"), GetActor(c)); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// transition runs one lifecycle event and returns the updated permit.
func (h *PermitHandler) transition(c *gin.Context, event workflow.Event, reason string) {
	permit, err := h.svc.Transition(c.Request.Context(), c.Param("id"), event, GetActor(c), reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, permit)
}

// Submit draft -> pending
// POST /api/v1/permits/:id/submit
func (h *PermitHandler) Submit(c *gin.Context) {
	h.transition(c, workflow.EventSubmit, "")
}

// Approve pending -> approved/active
// POST /api/v1/permits/:id/approve
func (h *PermitHandler) Approve(c *gin.Context) {
	h.transition(c, workflow.EventApprove, "")
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject pending -> rejected, reason required
// POST /api/v1/permits/:id/reject
func (h *PermitHandler) Reject(c *gin.Context) {
	var req rejectRequest
	// tolerate an empty body, the policy rejects a missing reason
	_ = c.ShouldBindJSON(&req)
	h.transition(c, workflow.EventReject, req.Reason)
}

// EngineeringApprove engineering_review -> pending
// POST /api/v1/permits/:id/engineering-approve
func (h *PermitHandler) EngineeringApprove(c *gin.Context) {
	h.transition(c, workflow.EventEngineeringApprove, "")
}

// RequestClosure flags the permit for closure
// POST /api/v1/permits/:id/request-closure
func (h *PermitHandler) RequestClosure(c *gin.Context) {
	h.transition(c, workflow.EventRequestClosure, "")
}

// ApproveClosure active/approved -> completed
// POST /api/v1/permits/:id/approve-closure
func (h *PermitHandler) ApproveClosure(c *gin.Context) {
	h.transition(c, workflow.EventApproveClosure, "")
}

// Cancel any open state -> cancelled
// POST /api/v1/permits/:id/cancel
func (h *PermitHandler) Cancel(c *gin.Context) {
	h.transition(c, workflow.EventCancel, "")
}

// ============================================================
// Child records
// ============================================================

// AddDocument attaches a document reference
// POST /api/v1/permits/:id/documents
func (h *PermitHandler) AddDocument(c *gin.Context) {
	var req service.AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	doc, err := h.svc.AddDocument(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, doc)
}

// AddSignature attaches a captured signature
// POST /api/v1/permits/:id/signatures
func (h *PermitHandler) AddSignature(c *gin.Context) {
	var req service.AddSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sig, err := h.svc.AddSignature(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, sig)
}

// AddGasTest records an atmospheric measurement
// POST /api/v1/permits/:id/gas-tests
func (h *PermitHandler) AddGasTest(c *gin.Context) {
	var req service.AddGasTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	test, err := h.svc.AddGasTest(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, test)
}

// AddChecklistRecord records a completed checklist item
// POST /api/v1/permits/:id/checklist
func (h *PermitHandler) AddChecklistRecord(c *gin.Context) {
	var req service.AddChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rec, err := h.svc.AddChecklistRecord(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, rec)
}

// AddHandover records a shift handover
// POST /api/v1/permits/:id/handovers
func (h *PermitHandler) AddHandover(c *gin.Context) {
	var req service.AddHandoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	handover, err := h.svc.AddHandover(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, handover)
}

// AddCertificate attaches a supporting certificate
// POST /api/v1/permits/:id/certificates
func (h *PermitHandler) AddCertificate(c *gin.Context) {
	var req service.AddCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cert, err := h.svc.AddCertificate(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, cert)
}

// ListAudit returns the permit audit trail
// GET /api/v1/permits/:id/audit
func (h *PermitHandler) ListAudit(c *gin.Context) {
	entries, err := h.svc.ListAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": entries})
}

// Export renders a permit snapshot
// GET /api/v1/permits/:id/export?format=xlsx|csv|pdf
func (h *PermitHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "xlsx")
	var (
		result *service.ExportResult
		err    error
	)
	switch format {
	case "xlsx":
		result, err = h.exportSvc.ExportXLSX(c.Request.Context(), c.Param("id"))
	case "csv":
		result, err = h.exportSvc.ExportCSV(c.Request.Context(), c.Param("id"))
	case "pdf":
		result, err = h.exportSvc.ExportPDF(c.Request.Context(), c.Param("id"))
	default:
		BadRequest(c, "unsupported export format: "+format)
		return
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(200, result.ContentType, result.Data)
}
