package workflow

import (
	"testing"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator  = Actor{ID: "user-1", Roles: []string{entity.RoleRequester}}
	stranger = Actor{ID: "user-2", Roles: []string{entity.RoleRequester}}
	approver = Actor{ID: "user-3", Roles: []string{entity.RoleApprover}}
	admin    = Actor{ID: "user-4", Roles: []string{entity.RoleAdmin}}
)

func draftPermit() *entity.Permit {
	now := time.Now()
	return &entity.Permit{
		ID:                  "p-1",
		Type:                entity.PermitTypeColdWork,
		Status:              entity.PermitStatusDraft,
		RequestedBy:         creator.ID,
		ValidFrom:           now.Add(24 * time.Hour),
		ValidUntil:          now.Add(32 * time.Hour),
		HazardsIdentified:   true,
		ControlsImplemented: true,
		PPEIdentified:       true,
		EquipmentIdentified: true,
	}
}

func TestSubmitRequiresAllGates(t *testing.T) {
	gates := []func(*entity.Permit){
		func(p *entity.Permit) { p.HazardsIdentified = false },
		func(p *entity.Permit) { p.ControlsImplemented = false },
		func(p *entity.Permit) { p.PPEIdentified = false },
		func(p *entity.Permit) { p.EquipmentIdentified = false },
	}
	for i, clear := range gates {
		p := draftPermit()
		clear(p)
		_, err := Decide(Input{Permit: p, Event: EventSubmit, Actor: creator, Now: time.Now()})
		require.Error(t, err, "gate %d", i)
		assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))
	}

	p := draftPermit()
	d, err := Decide(Input{Permit: p, Event: EventSubmit, Actor: creator, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusDraft, d.FromStatus)
	assert.Equal(t, entity.PermitStatusPending, d.ToStatus)
	assert.Equal(t, entity.AuditSubmitted, d.AuditAction)
}

func TestSubmitOnlyByCreator(t *testing.T) {
	p := draftPermit()

	_, err := Decide(Input{Permit: p, Event: EventSubmit, Actor: stranger, Now: time.Now()})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// admin may submit on the creator's behalf
	_, err = Decide(Input{Permit: p, Event: EventSubmit, Actor: admin, Now: time.Now()})
	assert.NoError(t, err)
}

func TestSubmitFromNonDraftIsInvalid(t *testing.T) {
	for _, status := range []string{
		entity.PermitStatusPending,
		entity.PermitStatusActive,
		entity.PermitStatusCompleted,
		entity.PermitStatusRejected,
		entity.PermitStatusCancelled,
	} {
		p := draftPermit()
		p.Status = status
		_, err := Decide(Input{Permit: p, Event: EventSubmit, Actor: creator, Now: time.Now()})
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition), "status %s", status)
	}
}

func TestStateCheckPrecedesRoleCheck(t *testing.T) {
	// A stranger submitting a completed permit sees the transition error,
	// not the permission error.
	p := draftPermit()
	p.Status = entity.PermitStatusCompleted
	_, err := Decide(Input{Permit: p, Event: EventSubmit, Actor: stranger, Now: time.Now()})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
}

func TestRouteEngineeringShortNotice(t *testing.T) {
	now := time.Now()

	p := draftPermit()
	p.Type = entity.PermitTypeMobileCrane
	p.Status = entity.PermitStatusPending
	p.ValidFrom = now.Add(24 * time.Hour) // under the 72h notice period

	d, err := Decide(Input{Permit: p, Event: EventRouteEngineering, Actor: System, Now: now})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusEngineeringReview, d.ToStatus)
	assert.Equal(t, entity.AuditRoutedEngineering, d.AuditAction)
}

func TestRouteEngineeringSufficientNotice(t *testing.T) {
	now := time.Now()

	p := draftPermit()
	p.Type = entity.PermitTypeMobileCrane
	p.Status = entity.PermitStatusPending
	p.ValidFrom = now.Add(96 * time.Hour)

	_, err := Decide(Input{Permit: p, Event: EventRouteEngineering, Actor: System, Now: now})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))
}

func TestRouteEngineeringWrongType(t *testing.T) {
	now := time.Now()

	p := draftPermit()
	p.Status = entity.PermitStatusPending
	p.ValidFrom = now.Add(time.Hour)

	_, err := Decide(Input{Permit: p, Event: EventRouteEngineering, Actor: System, Now: now})
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))
}

func TestEngineeringApproveReturnsToPending(t *testing.T) {
	p := draftPermit()
	p.Status = entity.PermitStatusEngineeringReview

	_, err := Decide(Input{Permit: p, Event: EventEngineeringApprove, Actor: approver, Now: time.Now()})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	d, err := Decide(Input{Permit: p, Event: EventEngineeringApprove, Actor: admin, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusPending, d.ToStatus)
}

func TestApproveBeforeWindowYieldsApproved(t *testing.T) {
	now := time.Now()
	p := draftPermit()
	p.Status = entity.PermitStatusPending
	p.ValidFrom = now.Add(6 * time.Hour)

	d, err := Decide(Input{Permit: p, Event: EventApprove, Actor: approver, Now: now})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusApproved, d.ToStatus)
}

func TestApproveInsideWindowYieldsActive(t *testing.T) {
	now := time.Now()
	p := draftPermit()
	p.Status = entity.PermitStatusPending
	p.ValidFrom = now.Add(-time.Hour)
	p.ValidUntil = now.Add(7 * time.Hour)

	d, err := Decide(Input{Permit: p, Event: EventApprove, Actor: approver, Now: now})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusActive, d.ToStatus)
}

func TestApproveRequiresApproverRole(t *testing.T) {
	p := draftPermit()
	p.Status = entity.PermitStatusPending

	_, err := Decide(Input{Permit: p, Event: EventApprove, Actor: creator, Now: time.Now()})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestRejectRequiresReason(t *testing.T) {
	p := draftPermit()
	p.Status = entity.PermitStatusPending

	_, err := Decide(Input{Permit: p, Event: EventReject, Actor: approver, Now: time.Now()})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	d, err := Decide(Input{Permit: p, Event: EventReject, Actor: approver, Now: time.Now(), Reason: "incomplete isolation plan"})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusRejected, d.ToStatus)
	assert.Equal(t, "incomplete isolation plan", d.RejectionReason)
}

func TestRejectFromEngineeringReview(t *testing.T) {
	p := draftPermit()
	p.Status = entity.PermitStatusEngineeringReview

	d, err := Decide(Input{Permit: p, Event: EventReject, Actor: approver, Now: time.Now(), Reason: "crane too close to overhead lines"})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusEngineeringReview, d.FromStatus)
	assert.Equal(t, entity.PermitStatusRejected, d.ToStatus)
}

func TestClosureFlow(t *testing.T) {
	p := draftPermit()
	p.Status = entity.PermitStatusActive

	// closure must be requested before it can be approved
	_, err := Decide(Input{Permit: p, Event: EventApproveClosure, Actor: admin, Now: time.Now()})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	d, err := Decide(Input{Permit: p, Event: EventRequestClosure, Actor: approver, Now: time.Now()})
	require.NoError(t, err)
	assert.True(t, d.MarkClosureRequested)
	assert.Equal(t, d.FromStatus, d.ToStatus)

	p.ClosureRequested = true
	d, err = Decide(Input{Permit: p, Event: EventApproveClosure, Actor: admin, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusCompleted, d.ToStatus)
}

func TestApproveClosureRequiresAdmin(t *testing.T) {
	p := draftPermit()
	p.Status = entity.PermitStatusActive
	p.ClosureRequested = true

	_, err := Decide(Input{Permit: p, Event: EventApproveClosure, Actor: approver, Now: time.Now()})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestCancelFromOpenStates(t *testing.T) {
	for _, status := range []string{
		entity.PermitStatusDraft,
		entity.PermitStatusPending,
		entity.PermitStatusEngineeringReview,
		entity.PermitStatusApproved,
		entity.PermitStatusActive,
	} {
		p := draftPermit()
		p.Status = status
		d, err := Decide(Input{Permit: p, Event: EventCancel, Actor: creator, Now: time.Now()})
		require.NoError(t, err, "status %s", status)
		assert.Equal(t, entity.PermitStatusCancelled, d.ToStatus)
	}

	for _, status := range []string{
		entity.PermitStatusCompleted,
		entity.PermitStatusRejected,
		entity.PermitStatusCancelled,
	} {
		p := draftPermit()
		p.Status = status
		_, err := Decide(Input{Permit: p, Event: EventCancel, Actor: creator, Now: time.Now()})
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition), "status %s", status)
	}
}

func TestCancelForbiddenForStranger(t *testing.T) {
	p := draftPermit()
	p.Status = entity.PermitStatusPending

	_, err := Decide(Input{Permit: p, Event: EventCancel, Actor: stranger, Now: time.Now()})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = Decide(Input{Permit: p, Event: EventCancel, Actor: approver, Now: time.Now()})
	assert.NoError(t, err)
}

func TestReadyToWork(t *testing.T) {
	now := time.Now()
	p := draftPermit()
	p.Type = entity.PermitTypeHotWork
	p.Status = entity.PermitStatusActive
	p.ValidFrom = now.Add(-time.Hour)
	p.ValidUntil = now.Add(7 * time.Hour)
	p.AffectedDeptApproved = true

	all := entity.MandatoryChecklist(entity.PermitTypeHotWork)
	assert.True(t, ReadyToWork(p, all, now))

	// one checklist item missing
	assert.False(t, ReadyToWork(p, all[:len(all)-1], now))

	// department sign-off missing
	p.AffectedDeptApproved = false
	assert.False(t, ReadyToWork(p, all, now))
	p.AffectedDeptApproved = true

	// expired window
	assert.False(t, ReadyToWork(p, all, p.ValidUntil.Add(time.Minute)))

	// not yet active
	p.Status = entity.PermitStatusApproved
	assert.False(t, ReadyToWork(p, all, now))
}
