package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/fieldsafe/ptw/internal/ptw/workflow"
	"go.uber.org/zap"
)

// PermitService permit lifecycle and child records
type PermitService struct {
	permitRepo     *repository.PermitRepository
	locationRepo   *repository.LocationRepository
	contractorRepo *repository.ContractorRepository
	publisher      Publisher
	logger         *zap.Logger
}

// NewPermitService creates the permit service
func NewPermitService(permitRepo *repository.PermitRepository, locationRepo *repository.LocationRepository, contractorRepo *repository.ContractorRepository, pub Publisher, logger *zap.Logger) *PermitService {
	return &PermitService{
		permitRepo:     permitRepo,
		locationRepo:   locationRepo,
		contractorRepo: contractorRepo,
		publisher:      pub,
		logger:         logger,
	}
}

var validPermitTypes = map[string]bool{
	entity.PermitTypeHotWork:          true,
	entity.PermitTypeColdWork:         true,
	entity.PermitTypeElectrical:       true,
	entity.PermitTypeConfinedSpace:    true,
	entity.PermitTypeWorkingAtHeights: true,
	entity.PermitTypeMobileCrane:      true,
	entity.PermitTypeExcavation:       true,
}

var validRiskLevels = map[string]bool{
	entity.RiskLevelLow:    true,
	entity.RiskLevelMedium: true,
	entity.RiskLevelHigh:   true,
}

// CreatePermitRequest new permit payload
type CreatePermitRequest struct {
	Type               string               `json:"type" binding:"required"`
	SubType            string               `json:"sub_type"`
	WorkType           string               `json:"work_type"`
	RiskLevel          string               `json:"risk_level"`
	Description        string               `json:"description" binding:"required"`
	LocationID         string               `json:"location_id" binding:"required"`
	ContractorID       string               `json:"contractor_id" binding:"required"`
	WorkEntity         string               `json:"work_entity" binding:"required"`
	EmergencyContact   string               `json:"emergency_contact" binding:"required"`
	Personnel          entity.PersonnelList `json:"personnel"`
	Hazards            entity.StringArray   `json:"hazards"`
	HazardsOther       string               `json:"hazards_other"`
	Precautions        entity.StringArray   `json:"precautions"`
	PrecautionsOther   string               `json:"precautions_other"`
	PPE                entity.StringArray   `json:"ppe"`
	PPEOther           string               `json:"ppe_other"`
	OnSiteTestRequired bool                 `json:"on_site_test_required"`
	ValidFrom          time.Time            `json:"valid_from" binding:"required"`
	ValidUntil         time.Time            `json:"valid_until" binding:"required"`
}

// UpdatePermitRequest permit edit payload; nil fields are untouched
type UpdatePermitRequest struct {
	SubType            *string               `json:"sub_type"`
	WorkType           *string               `json:"work_type"`
	RiskLevel          *string               `json:"risk_level"`
	Description        *string               `json:"description"`
	LocationID         *string               `json:"location_id"`
	ContractorID       *string               `json:"contractor_id"`
	WorkEntity         *string               `json:"work_entity"`
	EmergencyContact   *string               `json:"emergency_contact"`
	Personnel          *entity.PersonnelList `json:"personnel"`
	Hazards            *entity.StringArray   `json:"hazards"`
	HazardsOther       *string               `json:"hazards_other"`
	Precautions        *entity.StringArray   `json:"precautions"`
	PrecautionsOther   *string               `json:"precautions_other"`
	PPE                *entity.StringArray   `json:"ppe"`
	PPEOther           *string               `json:"ppe_other"`
	OnSiteTestRequired *bool                 `json:"on_site_test_required"`
	ValidFrom          *time.Time            `json:"valid_from"`
	ValidUntil         *time.Time            `json:"valid_until"`
}

// lockedFields returns the names of non-safety-payload fields an update
// touches. While pending only the safety payload may change.
func lockedFields(req *UpdatePermitRequest) []string {
	var locked []string
	if req.SubType != nil {
		locked = append(locked, "sub_type")
	}
	if req.WorkType != nil {
		locked = append(locked, "work_type")
	}
	if req.RiskLevel != nil {
		locked = append(locked, "risk_level")
	}
	if req.Description != nil {
		locked = append(locked, "description")
	}
	if req.LocationID != nil {
		locked = append(locked, "location_id")
	}
	if req.ContractorID != nil {
		locked = append(locked, "contractor_id")
	}
	if req.WorkEntity != nil {
		locked = append(locked, "work_entity")
	}
	if req.EmergencyContact != nil {
		locked = append(locked, "emergency_contact")
	}
	if req.ValidFrom != nil {
		locked = append(locked, "valid_from")
	}
	if req.ValidUntil != nil {
		locked = append(locked, "valid_until")
	}
	return locked
}

// UpdateGatesRequest preparation gate toggles, draft only
type UpdateGatesRequest struct {
	HazardsIdentified   *bool `json:"hazards_identified"`
	ControlsImplemented *bool `json:"controls_implemented"`
	PPEIdentified       *bool `json:"ppe_identified"`
	EquipmentIdentified *bool `json:"equipment_identified"`
}

// PermitDetail permit plus the computed lifecycle fields
type PermitDetail struct {
	*entity.Permit
	EffectiveStatus string `json:"effective_status"`
	ReadyToWork     bool   `json:"ready_to_work"`
}

// Create validates and stores a new draft permit.
func (s *PermitService) Create(ctx context.Context, userID string, req *CreatePermitRequest) (*entity.Permit, error) {
	if !validPermitTypes[req.Type] {
		return nil, apperr.Validation("unknown permit type", "type")
	}
	riskLevel := req.RiskLevel
	if riskLevel == "" {
		riskLevel = entity.RiskLevelMedium
	}
	if !validRiskLevels[riskLevel] {
		return nil, apperr.Validation("unknown risk level", "risk_level")
	}
	if !req.ValidUntil.After(req.ValidFrom) {
		return nil, apperr.Validation("valid_until must be after valid_from", "valid_from", "valid_until")
	}
	if len(req.Personnel) == 0 {
		return nil, apperr.Validation("at least one worker must be listed", "personnel")
	}
	if _, err := s.locationRepo.FindByID(ctx, req.LocationID); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.Validation("location does not exist", "location_id")
		}
		return nil, err
	}
	if _, err := s.contractorRepo.FindByID(ctx, req.ContractorID); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.Validation("contractor does not exist", "contractor_id")
		}
		return nil, err
	}

	// The atmospheric test flag is forced on for confined or hot work and
	// can never be disabled by the requester.
	onSiteTest := req.OnSiteTestRequired
	if entity.RequiresAtmosphericTest(req.Type, req.WorkType) {
		onSiteTest = true
	}

	number, err := s.permitRepo.GenerateNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate permit number: %w", err)
	}

	permit := &entity.Permit{
		ID:                 generateID(),
		Number:             number,
		Type:               req.Type,
		SubType:            req.SubType,
		WorkType:           req.WorkType,
		RiskLevel:          riskLevel,
		Description:        req.Description,
		LocationID:         req.LocationID,
		ContractorID:       req.ContractorID,
		WorkEntity:         req.WorkEntity,
		EmergencyContact:   req.EmergencyContact,
		Personnel:          req.Personnel,
		Hazards:            req.Hazards,
		HazardsOther:       req.HazardsOther,
		Precautions:        req.Precautions,
		PrecautionsOther:   req.PrecautionsOther,
		PPE:                req.PPE,
		PPEOther:           req.PPEOther,
		OnSiteTestRequired: onSiteTest,
		Status:             entity.PermitStatusDraft,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		RequestedBy:        userID,
	}

	if err := s.permitRepo.Create(ctx, permit); err != nil {
		return nil, fmt.Errorf("create permit: %w", err)
	}

	s.addAudit(ctx, permit.ID, entity.AuditCreated, "", entity.PermitStatusDraft, userID, nil)
	s.publisher.PublishPermitEvent(permit.ID, entity.AuditCreated, permit.Status)

	return permit, nil
}

// Get loads a permit with children and the computed fields.
func (s *PermitService) Get(ctx context.Context, id string) (*PermitDetail, error) {
	permit, err := s.permitRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("permit")
		}
		return nil, err
	}
	checked, err := s.permitRepo.ListCheckedItems(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &PermitDetail{
		Permit:          permit,
		EffectiveStatus: permit.EffectiveStatus(now),
		ReadyToWork:     workflow.ReadyToWork(permit, checked, now),
	}, nil
}

// List returns a filtered permit page with effective statuses.
func (s *PermitService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) (map[string]interface{}, error) {
	permits, total, err := s.permitRepo.List(ctx, page, pageSize, filters)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	items := make([]PermitDetail, 0, len(permits))
	for i := range permits {
		items = append(items, PermitDetail{
			Permit:          &permits[i],
			EffectiveStatus: permits[i].EffectiveStatus(now),
		})
	}
	return map[string]interface{}{
		"permits": items,
		"total":   total,
	}, nil
}

// Update edits permit fields. Drafts are fully editable, pending permits
// accept safety payload changes only, and later statuses are locked.
func (s *PermitService) Update(ctx context.Context, id string, actor workflow.Actor, req *UpdatePermitRequest) (*entity.Permit, error) {
	permit, err := s.permitRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("permit")
		}
		return nil, err
	}
	// Fields lock progressively: everything is editable while draft, only
	// the safety payload while pending, nothing afterwards.
	switch permit.Status {
	case entity.PermitStatusDraft:
	case entity.PermitStatusPending:
		if locked := lockedFields(req); len(locked) > 0 {
			return nil, apperr.PolicyViolation("field_locked",
				fmt.Sprintf("only the safety payload is editable while pending (locked: %s)",
					strings.Join(locked, ", ")))
		}
	default:
		return nil, apperr.PolicyViolation("permit_locked",
			fmt.Sprintf("permit in status %q cannot be edited", permit.Status))
	}
	if actor.ID != permit.RequestedBy && !hasRole(actor, entity.RoleAdmin) {
		return nil, apperr.Forbidden("only the creator can edit this permit")
	}

	if req.SubType != nil {
		permit.SubType = *req.SubType
	}
	if req.WorkType != nil {
		permit.WorkType = *req.WorkType
	}
	if req.RiskLevel != nil {
		if !validRiskLevels[*req.RiskLevel] {
			return nil, apperr.Validation("unknown risk level", "risk_level")
		}
		permit.RiskLevel = *req.RiskLevel
	}
	if req.Description != nil {
		permit.Description = *req.Description
	}
	if req.LocationID != nil {
		if _, err := s.locationRepo.FindByID(ctx, *req.LocationID); err != nil {
			return nil, apperr.Validation("location does not exist", "location_id")
		}
		permit.LocationID = *req.LocationID
	}
	if req.ContractorID != nil {
		if _, err := s.contractorRepo.FindByID(ctx, *req.ContractorID); err != nil {
			return nil, apperr.Validation("contractor does not exist", "contractor_id")
		}
		permit.ContractorID = *req.ContractorID
	}
	if req.WorkEntity != nil {
		permit.WorkEntity = *req.WorkEntity
	}
	if req.EmergencyContact != nil {
		permit.EmergencyContact = *req.EmergencyContact
	}
	if req.Personnel != nil {
		permit.Personnel = *req.Personnel
	}
	if req.Hazards != nil {
		permit.Hazards = *req.Hazards
	}
	if req.HazardsOther != nil {
		permit.HazardsOther = *req.HazardsOther
	}
	if req.Precautions != nil {
		permit.Precautions = *req.Precautions
	}
	if req.PrecautionsOther != nil {
		permit.PrecautionsOther = *req.PrecautionsOther
	}
	if req.PPE != nil {
		permit.PPE = *req.PPE
	}
	if req.PPEOther != nil {
		permit.PPEOther = *req.PPEOther
	}
	if req.OnSiteTestRequired != nil {
		permit.OnSiteTestRequired = *req.OnSiteTestRequired
	}
	if req.ValidFrom != nil {
		permit.ValidFrom = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		permit.ValidUntil = *req.ValidUntil
	}
	if !permit.ValidUntil.After(permit.ValidFrom) {
		return nil, apperr.Validation("valid_until must be after valid_from", "valid_from", "valid_until")
	}

	// re-apply the atmospheric test override after edits
	if entity.RequiresAtmosphericTest(permit.Type, permit.WorkType) {
		permit.OnSiteTestRequired = true
	}

	if err := s.permitRepo.Update(ctx, permit); err != nil {
		return nil, fmt.Errorf("update permit: %w", err)
	}

	s.addAudit(ctx, permit.ID, entity.AuditUpdated, permit.Status, permit.Status, actor.ID, nil)
	s.publisher.PublishPermitEvent(permit.ID, entity.AuditUpdated, permit.Status)

	return permit, nil
}

// UpdateGates toggles preparation gates on a draft permit.
func (s *PermitService) UpdateGates(ctx context.Context, id string, actor workflow.Actor, req *UpdateGatesRequest) (*entity.Permit, error) {
	permit, err := s.permitRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("permit")
		}
		return nil, err
	}
	if permit.Status != entity.PermitStatusDraft {
		return nil, apperr.PolicyViolation("permit_locked",
			"preparation gates can only change while the permit is a draft")
	}
	if actor.ID != permit.RequestedBy && !hasRole(actor, entity.RoleAdmin) {
		return nil, apperr.Forbidden("only the creator can edit this permit")
	}

	fields := map[string]interface{}{}
	if req.HazardsIdentified != nil {
		permit.HazardsIdentified = *req.HazardsIdentified
		fields["hazards_identified"] = *req.HazardsIdentified
	}
	if req.ControlsImplemented != nil {
		permit.ControlsImplemented = *req.ControlsImplemented
		fields["controls_implemented"] = *req.ControlsImplemented
	}
	if req.PPEIdentified != nil {
		permit.PPEIdentified = *req.PPEIdentified
		fields["ppe_identified"] = *req.PPEIdentified
	}
	if req.EquipmentIdentified != nil {
		permit.EquipmentIdentified = *req.EquipmentIdentified
		fields["equipment_identified"] = *req.EquipmentIdentified
	}
	if len(fields) == 0 {
		return permit, nil
	}

	if err := s.permitRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update gates: %w", err)
	}
	return permit, nil
}

// ApproveDepartment records the affected-department sign-off.
func (s *PermitService) ApproveDepartment(ctx context.Context, id string, actor workflow.Actor) error {
	permit, err := s.permitRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("permit")
		}
		return err
	}
	if entity.IsTerminal(permit.Status) {
		return apperr.PolicyViolation("permit_closed", "permit is already closed")
	}
	if err := s.permitRepo.UpdateFields(ctx, id, map[string]interface{}{
		"affected_dept_approved": true,
	}); err != nil {
		return fmt.Errorf("approve department: %w", err)
	}
	s.addAudit(ctx, id, entity.AuditDeptApproved, permit.Status, permit.Status, actor.ID, nil)
	s.publisher.PublishPermitEvent(id, entity.AuditDeptApproved, permit.Status)
	return nil
}

// Transition fires one lifecycle event. The policy decides the target
// status; the repository commits it with a compare-and-swap so a racing
// transition surfaces as a conflict rather than a lost update.
func (s *PermitService) Transition(ctx context.Context, id string, event workflow.Event, actor workflow.Actor, reason string) (*entity.Permit, error) {
	permit, err := s.permitRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("permit")
		}
		return nil, err
	}

	now := time.Now()
	decision, err := workflow.Decide(workflow.Input{
		Permit: permit,
		Event:  event,
		Actor:  actor,
		Now:    now,
		Reason: reason,
	})
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, permit, decision, actor, now); err != nil {
		return nil, err
	}

	// A freshly submitted engineering-review permit with short notice is
	// routed for specialist sign-off in the same request.
	if event == workflow.EventSubmit && entity.RequiresEngineeringReview(permit.Type) &&
		permit.ValidFrom.Sub(now) < entity.EngineeringNoticePeriod {
		permit.Status = decision.ToStatus
		routing, err := workflow.Decide(workflow.Input{
			Permit: permit,
			Event:  workflow.EventRouteEngineering,
			Actor:  workflow.System,
			Now:    now,
		})
		if err == nil {
			if err := s.commit(ctx, permit, routing, workflow.System, now); err != nil {
				return nil, err
			}
		}
	}

	updated, err := s.permitRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// commit applies one policy decision: CAS status update, field side
// effects, audit entry, event publish.
func (s *PermitService) commit(ctx context.Context, permit *entity.Permit, decision *workflow.Decision, actor workflow.Actor, now time.Time) error {
	extra := map[string]interface{}{}
	var detail entity.JSONB

	switch decision.AuditAction {
	case entity.AuditApproved:
		extra["approved_by"] = actor.ID
		extra["approved_at"] = now
	case entity.AuditRejected:
		extra["rejection_reason"] = decision.RejectionReason
		detail = entity.JSONB{"reason": decision.RejectionReason}
	case entity.AuditClosureApproved:
		extra["completed_at"] = now
		extra["closure_approved_by"] = actor.ID
	}
	if decision.MarkClosureRequested {
		extra["closure_requested"] = true
	}

	actorID := actor.ID
	if actorID == "" {
		actorID = "system"
	}
	audit := &entity.PermitAudit{
		ID:         generateID(),
		PermitID:   permit.ID,
		Action:     decision.AuditAction,
		FromStatus: decision.FromStatus,
		ToStatus:   decision.ToStatus,
		ActorID:    actorID,
		Detail:     detail,
	}

	err := s.permitRepo.TransitionStatus(ctx, permit.ID, decision.FromStatus, decision.ToStatus, extra, audit)
	if err != nil {
		switch err {
		case repository.ErrConflict:
			return apperr.Conflict("permit was modified by a concurrent transition")
		case repository.ErrNotFound:
			return apperr.NotFound("permit")
		}
		return fmt.Errorf("commit transition: %w", err)
	}

	s.logger.Info("permit transition",
		zap.String("permit_id", permit.ID),
		zap.String("action", decision.AuditAction),
		zap.String("from", decision.FromStatus),
		zap.String("to", decision.ToStatus),
		zap.String("actor", actorID))
	s.publisher.PublishPermitEvent(permit.ID, decision.AuditAction, decision.ToStatus)
	return nil
}

// ListAudit returns the permit audit trail.
func (s *PermitService) ListAudit(ctx context.Context, permitID string) ([]entity.PermitAudit, error) {
	if _, err := s.permitRepo.FindByID(ctx, permitID); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("permit")
		}
		return nil, err
	}
	return s.permitRepo.ListAudit(ctx, permitID)
}

func (s *PermitService) addAudit(ctx context.Context, permitID, action, from, to, actorID string, detail entity.JSONB) {
	audit := &entity.PermitAudit{
		ID:         generateID(),
		PermitID:   permitID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		Detail:     detail,
	}
	if err := s.permitRepo.AddAudit(ctx, audit); err != nil {
		s.logger.Warn("failed to write audit entry",
			zap.String("permit_id", permitID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func hasRole(actor workflow.Actor, role string) bool {
	for _, r := range actor.Roles {
		if r == role || r == entity.RoleAdmin {
			return true
		}
	}
	return false
}
