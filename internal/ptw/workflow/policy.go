// Package workflow holds the permit lifecycle policy. The transition table
// lives here and nowhere else; services never hand-check statuses. Decide is
// pure: it inspects the permit and the actor and returns the transition to
// commit, leaving persistence and side effects to the caller.
package workflow

import (
	"fmt"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
)

// Event lifecycle event name
type Event string

const (
	EventSubmit             Event = "submit"
	EventRouteEngineering   Event = "route_engineering"
	EventEngineeringApprove Event = "engineering_approve"
	EventApprove            Event = "approve"
	EventReject             Event = "reject"
	EventRequestClosure     Event = "request_closure"
	EventApproveClosure     Event = "approve_closure"
	EventCancel             Event = "cancel"
)

// Actor the user attempting the transition. A zero ID marks the system
// actor used for automatic routing.
type Actor struct {
	ID    string
	Roles []string
}

// System actor for transitions the service applies on its own.
var System = Actor{}

func (a Actor) isSystem() bool {
	return a.ID == ""
}

func (a Actor) hasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == entity.RoleAdmin {
			return true
		}
	}
	return false
}

// Input transition request
type Input struct {
	Permit *entity.Permit
	Event  Event
	Actor  Actor
	Now    time.Time
	// Reason is required for reject.
	Reason string
}

// Decision committed transition. The service persists ToStatus with a
// compare-and-swap on FromStatus and applies the flagged field changes.
type Decision struct {
	FromStatus string
	ToStatus   string
	// AuditAction names the audit-log entry to record.
	AuditAction string
	// MarkClosureRequested sets the closure flag without changing status.
	MarkClosureRequested bool
	// RejectionReason is persisted for reject.
	RejectionReason string
}

// openStates statuses from which cancel is allowed
var openStates = map[string]bool{
	entity.PermitStatusDraft:             true,
	entity.PermitStatusPending:           true,
	entity.PermitStatusEngineeringReview: true,
	entity.PermitStatusApproved:          true,
	entity.PermitStatusActive:            true,
}

// Decide evaluates one lifecycle event against the current permit state.
// It checks, in order: that the state/event pair is defined, that the actor
// holds a role allowed to fire it, and that every guard passes.
func Decide(in Input) (*Decision, error) {
	p := in.Permit
	switch in.Event {
	case EventSubmit:
		if p.Status != entity.PermitStatusDraft {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !in.Actor.isSystem() && in.Actor.ID != p.RequestedBy && !in.Actor.hasRole(entity.RoleAdmin) {
			return nil, apperr.Forbidden("only the creator can submit this permit")
		}
		if !p.HazardsIdentified || !p.ControlsImplemented || !p.PPEIdentified || !p.EquipmentIdentified {
			return nil, apperr.PolicyViolation("preparation_incomplete",
				"all four preparation gates must be confirmed before submitting")
		}
		return &Decision{
			FromStatus:  entity.PermitStatusDraft,
			ToStatus:    entity.PermitStatusPending,
			AuditAction: entity.AuditSubmitted,
		}, nil

	case EventRouteEngineering:
		if p.Status != entity.PermitStatusPending {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !entity.RequiresEngineeringReview(p.Type) {
			return nil, apperr.PolicyViolation("engineering_review_not_required",
				"permit type does not require engineering review")
		}
		if p.ValidFrom.Sub(in.Now) >= entity.EngineeringNoticePeriod {
			return nil, apperr.PolicyViolation("notice_period_met",
				"lead time meets the engineering notice period")
		}
		return &Decision{
			FromStatus:  entity.PermitStatusPending,
			ToStatus:    entity.PermitStatusEngineeringReview,
			AuditAction: entity.AuditRoutedEngineering,
		}, nil

	case EventEngineeringApprove:
		if p.Status != entity.PermitStatusEngineeringReview {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !in.Actor.hasRole(entity.RoleAdmin) {
			return nil, apperr.Forbidden("engineering approval requires admin role")
		}
		return &Decision{
			FromStatus:  entity.PermitStatusEngineeringReview,
			ToStatus:    entity.PermitStatusPending,
			AuditAction: entity.AuditEngineeringApproved,
		}, nil

	case EventApprove:
		if p.Status != entity.PermitStatusPending {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !in.Actor.hasRole(entity.RoleApprover) {
			return nil, apperr.Forbidden("approval requires approver role")
		}
		to := entity.PermitStatusApproved
		if !in.Now.Before(p.ValidFrom) {
			to = entity.PermitStatusActive
		}
		return &Decision{
			FromStatus:  entity.PermitStatusPending,
			ToStatus:    to,
			AuditAction: entity.AuditApproved,
		}, nil

	case EventReject:
		if p.Status != entity.PermitStatusPending && p.Status != entity.PermitStatusEngineeringReview {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !in.Actor.hasRole(entity.RoleApprover) {
			return nil, apperr.Forbidden("rejection requires approver role")
		}
		if in.Reason == "" {
			return nil, apperr.PolicyViolation("rejection_reason_required",
				"a rejection reason must be provided")
		}
		return &Decision{
			FromStatus:      p.Status,
			ToStatus:        entity.PermitStatusRejected,
			AuditAction:     entity.AuditRejected,
			RejectionReason: in.Reason,
		}, nil

	case EventRequestClosure:
		if p.Status != entity.PermitStatusActive && p.Status != entity.PermitStatusApproved {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !in.Actor.hasRole(entity.RoleApprover) {
			return nil, apperr.Forbidden("closure request requires approver role")
		}
		return &Decision{
			FromStatus:           p.Status,
			ToStatus:             p.Status,
			AuditAction:          entity.AuditClosureRequested,
			MarkClosureRequested: true,
		}, nil

	case EventApproveClosure:
		if p.Status != entity.PermitStatusActive && p.Status != entity.PermitStatusApproved {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !in.Actor.hasRole(entity.RoleAdmin) {
			return nil, apperr.Forbidden("closure approval requires admin role")
		}
		if !p.ClosureRequested {
			return nil, apperr.PolicyViolation("closure_not_requested",
				"closure must be requested before it can be approved")
		}
		return &Decision{
			FromStatus:  p.Status,
			ToStatus:    entity.PermitStatusCompleted,
			AuditAction: entity.AuditClosureApproved,
		}, nil

	case EventCancel:
		if !openStates[p.Status] {
			return nil, transitionErr(p.Status, in.Event)
		}
		if !in.Actor.isSystem() && in.Actor.ID != p.RequestedBy && !in.Actor.hasRole(entity.RoleApprover) {
			return nil, apperr.Forbidden("only the creator or an approver can cancel this permit")
		}
		return &Decision{
			FromStatus:  p.Status,
			ToStatus:    entity.PermitStatusCancelled,
			AuditAction: entity.AuditCancelled,
		}, nil
	}
	return nil, apperr.InvalidTransition(fmt.Sprintf("unknown event %q", in.Event))
}

func transitionErr(status string, event Event) error {
	return apperr.InvalidTransition(fmt.Sprintf("event %q is not allowed in status %q", event, status))
}

// ReadyToWork reports whether work may proceed under the permit right now:
// effective status active, affected department sign-off in place, and every
// mandatory checklist item for the permit type recorded.
func ReadyToWork(p *entity.Permit, checkedItems []string, now time.Time) bool {
	if p.EffectiveStatus(now) != entity.PermitStatusActive {
		return false
	}
	if !p.AffectedDeptApproved {
		return false
	}
	checked := make(map[string]bool, len(checkedItems))
	for _, item := range checkedItems {
		checked[item] = true
	}
	for _, item := range entity.MandatoryChecklist(p.Type) {
		if !checked[item] {
			return false
		}
	}
	return true
}
