package handler

import (
	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/gin-gonic/gin"
)

// DirectoryHandler location and contractor directory endpoints
type DirectoryHandler struct {
	svc *service.DirectoryService
}

// NewDirectoryHandler creates the directory handler
func NewDirectoryHandler(svc *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{svc: svc}
}

// ListLocations returns a paginated location page
// GET /api/v1/locations
func (h *DirectoryHandler) ListLocations(c *gin.Context) {
	page, pageSize := GetPagination(c)
	result, err := h.svc.ListLocations(c.Request.Context(), page, pageSize, c.Query("q"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// GetLocation returns one location
// GET /api/v1/locations/:id
func (h *DirectoryHandler) GetLocation(c *gin.Context) {
	loc, err := h.svc.GetLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, loc)
}

// CreateLocation adds a location
// POST /api/v1/locations
func (h *DirectoryHandler) CreateLocation(c *gin.Context) {
	var req service.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	loc, err := h.svc.CreateLocation(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, loc)
}

// UpdateLocation edits a location
// PUT /api/v1/locations/:id
func (h *DirectoryHandler) UpdateLocation(c *gin.Context) {
	var req service.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	loc, err := h.svc.UpdateLocation(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, loc)
}

// ListContractors returns a paginated contractor page
// GET /api/v1/contractors
func (h *DirectoryHandler) ListContractors(c *gin.Context) {
	page, pageSize := GetPagination(c)
	result, err := h.svc.ListContractors(c.Request.Context(), page, pageSize, c.Query("q"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// GetContractor returns one contractor
// GET /api/v1/contractors/:id
func (h *DirectoryHandler) GetContractor(c *gin.Context) {
	contractor, err := h.svc.GetContractor(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, contractor)
}

// CreateContractor adds a contractor
// POST /api/v1/contractors
func (h *DirectoryHandler) CreateContractor(c *gin.Context) {
	var req service.CreateContractorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	contractor, err := h.svc.CreateContractor(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, contractor)
}

// UpdateContractor edits a contractor
// PUT /api/v1/contractors/:id
func (h *DirectoryHandler) UpdateContractor(c *gin.Context) {
	var req service.UpdateContractorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	contractor, err := h.svc.UpdateContractor(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, contractor)
}
