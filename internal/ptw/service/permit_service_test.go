package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/fieldsafe/ptw/internal/ptw/testutil"
	"github.com/fieldsafe/ptw/internal/ptw/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type permitFixture struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *PermitService
}

func setupPermitService(t *testing.T) *permitFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewPermitService(repos.Permit, repos.Location, repos.Contractor, NopPublisher{}, zap.NewNop())

	testutil.SeedTestUser(t, db, "req-1", "Requester One", []string{entity.RoleRequester})
	testutil.SeedTestUser(t, db, "app-1", "Approver One", []string{entity.RoleApprover})
	testutil.SeedTestLocation(t, db, "loc-1", "A-01", "Tank Farm")
	testutil.SeedTestContractor(t, db, "con-1", "C-01", "Acme Industrial")

	return &permitFixture{db: db, repos: repos, svc: svc}
}

func validCreateRequest() *CreatePermitRequest {
	now := time.Now()
	return &CreatePermitRequest{
		Type:             entity.PermitTypeColdWork,
		Description:      "Pump overhaul in pit 3",
		LocationID:       "loc-1",
		ContractorID:     "con-1",
		WorkEntity:       "Maintenance",
		EmergencyContact: "+90 555 000 0000",
		Personnel:        entity.PersonnelList{{Name: "A. Demir", Role: "fitter"}},
		ValidFrom:        now.Add(-time.Hour),
		ValidUntil:       now.Add(7 * time.Hour),
	}
}

func TestCreateValidation(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()

	req := validCreateRequest()
	req.Type = "juggling"
	_, err := f.svc.Create(ctx, "req-1", req)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	req = validCreateRequest()
	req.ValidUntil = req.ValidFrom
	_, err = f.svc.Create(ctx, "req-1", req)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	req = validCreateRequest()
	req.LocationID = "no-such-location"
	_, err = f.svc.Create(ctx, "req-1", req)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	req = validCreateRequest()
	req.Personnel = nil
	_, err = f.svc.Create(ctx, "req-1", req)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateNumberFormat(t *testing.T) {
	f := setupPermitService(t)

	permit, err := f.svc.Create(context.Background(), "req-1", validCreateRequest())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^PTW-\d{4}-\d{4}$`), permit.Number)
	assert.Equal(t, entity.PermitStatusDraft, permit.Status)
	assert.Equal(t, entity.RiskLevelMedium, permit.RiskLevel)
}

func TestCreateForcesAtmosphericTest(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()

	req := validCreateRequest()
	req.Type = entity.PermitTypeConfinedSpace
	req.OnSiteTestRequired = false
	permit, err := f.svc.Create(ctx, "req-1", req)
	require.NoError(t, err)
	assert.True(t, permit.OnSiteTestRequired)

	// Turkish work-type label on an otherwise plain permit
	req = validCreateRequest()
	req.WorkType = "Ateşli İşler"
	req.OnSiteTestRequired = false
	permit, err = f.svc.Create(ctx, "req-1", req)
	require.NoError(t, err)
	assert.True(t, permit.OnSiteTestRequired)
}

func TestAtmosphericOverrideSurvivesUpdate(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()

	req := validCreateRequest()
	req.Type = entity.PermitTypeHotWork
	permit, err := f.svc.Create(ctx, "req-1", req)
	require.NoError(t, err)

	off := false
	updated, err := f.svc.Update(ctx, permit.ID, workflow.Actor{ID: "req-1"}, &UpdatePermitRequest{
		OnSiteTestRequired: &off,
	})
	require.NoError(t, err)
	assert.True(t, updated.OnSiteTestRequired)
}

func TestUpdateFieldLocksByStatus(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	creator := workflow.Actor{ID: "req-1"}

	pending := testutil.SeedTestPermit(t, f.db, &entity.Permit{
		ID:          "p-pending",
		Type:        entity.PermitTypeColdWork,
		Description: "x",
		LocationID:  "loc-1", ContractorID: "con-1",
		WorkEntity: "x", EmergencyContact: "x",
		RequestedBy: "req-1",
		Status:      entity.PermitStatusPending,
	})

	// validity window and core fields lock once the permit leaves draft
	desc := "new description"
	_, err := f.svc.Update(ctx, pending.ID, creator, &UpdatePermitRequest{Description: &desc})
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	later := time.Now().Add(48 * time.Hour)
	_, err = f.svc.Update(ctx, pending.ID, creator, &UpdatePermitRequest{ValidUntil: &later})
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	// the safety payload stays editable while pending
	hazards := entity.StringArray{"hydrogen sulfide"}
	crew := entity.PersonnelList{{Name: "B. Kaya", Role: "standby"}}
	updated, err := f.svc.Update(ctx, pending.ID, creator, &UpdatePermitRequest{
		Hazards:   &hazards,
		Personnel: &crew,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StringArray{"hydrogen sulfide"}, updated.Hazards)
	require.Len(t, updated.Personnel, 1)
	assert.Equal(t, "B. Kaya", updated.Personnel[0].Name)

	active := testutil.SeedTestPermit(t, f.db, &entity.Permit{
		ID:          "p-active",
		Type:        entity.PermitTypeColdWork,
		Description: "x",
		LocationID:  "loc-1", ContractorID: "con-1",
		WorkEntity: "x", EmergencyContact: "x",
		RequestedBy: "req-1",
		Status:      entity.PermitStatusActive,
	})

	// nothing is editable once active, safety payload included
	_, err = f.svc.Update(ctx, active.ID, creator, &UpdatePermitRequest{
		Hazards: &hazards,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))
}

func setGates(t *testing.T, f *permitFixture, id string) {
	t.Helper()
	on := true
	_, err := f.svc.UpdateGates(context.Background(), id, workflow.Actor{ID: "req-1"}, &UpdateGatesRequest{
		HazardsIdentified:   &on,
		ControlsImplemented: &on,
		PPEIdentified:       &on,
		EquipmentIdentified: &on,
	})
	require.NoError(t, err)
}

func TestSubmitBlockedUntilGatesSet(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()

	permit, err := f.svc.Create(ctx, "req-1", validCreateRequest())
	require.NoError(t, err)

	creator := workflow.Actor{ID: "req-1", Roles: []string{entity.RoleRequester}}
	_, err = f.svc.Transition(ctx, permit.ID, workflow.EventSubmit, creator, "")
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	setGates(t, f, permit.ID)
	updated, err := f.svc.Transition(ctx, permit.ID, workflow.EventSubmit, creator, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusPending, updated.Status)
}

func TestFullLifecycle(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	creator := workflow.Actor{ID: "req-1", Roles: []string{entity.RoleRequester}}
	approver := workflow.Actor{ID: "app-1", Roles: []string{entity.RoleApprover}}
	admin := workflow.Actor{ID: "adm-1", Roles: []string{entity.RoleAdmin}}

	permit, err := f.svc.Create(ctx, "req-1", validCreateRequest())
	require.NoError(t, err)
	setGates(t, f, permit.ID)

	p, err := f.svc.Transition(ctx, permit.ID, workflow.EventSubmit, creator, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusPending, p.Status)

	// window already open, approval activates immediately
	p, err = f.svc.Transition(ctx, permit.ID, workflow.EventApprove, approver, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusActive, p.Status)
	require.NotNil(t, p.ApprovedBy)
	assert.Equal(t, "app-1", *p.ApprovedBy)

	p, err = f.svc.Transition(ctx, permit.ID, workflow.EventRequestClosure, approver, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusActive, p.Status)
	assert.True(t, p.ClosureRequested)

	p, err = f.svc.Transition(ctx, permit.ID, workflow.EventApproveClosure, admin, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusCompleted, p.Status)
	assert.NotNil(t, p.CompletedAt)

	audit, err := f.svc.ListAudit(ctx, permit.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(audit))
	for _, a := range audit {
		actions = append(actions, a.Action)
	}
	assert.Contains(t, actions, entity.AuditCreated)
	assert.Contains(t, actions, entity.AuditSubmitted)
	assert.Contains(t, actions, entity.AuditApproved)
	assert.Contains(t, actions, entity.AuditClosureRequested)
	assert.Contains(t, actions, entity.AuditClosureApproved)
}

func TestRejectPersistsReason(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	approver := workflow.Actor{ID: "app-1", Roles: []string{entity.RoleApprover}}

	permit := testutil.SeedTestPermit(t, f.db, &entity.Permit{
		ID:          "p-rej",
		Type:        entity.PermitTypeColdWork,
		Description: "x",
		LocationID:  "loc-1", ContractorID: "con-1",
		WorkEntity: "x", EmergencyContact: "x",
		RequestedBy: "req-1",
		Status:      entity.PermitStatusPending,
	})

	_, err := f.svc.Transition(ctx, permit.ID, workflow.EventReject, approver, "")
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	p, err := f.svc.Transition(ctx, permit.ID, workflow.EventReject, approver, "missing isolation certificate")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusRejected, p.Status)
	assert.Equal(t, "missing isolation certificate", p.RejectionReason)
}

func TestSubmitRoutesShortNoticeCraneToEngineering(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	creator := workflow.Actor{ID: "req-1", Roles: []string{entity.RoleRequester}}
	admin := workflow.Actor{ID: "adm-1", Roles: []string{entity.RoleAdmin}}

	now := time.Now()
	req := validCreateRequest()
	req.Type = entity.PermitTypeMobileCrane
	req.ValidFrom = now.Add(24 * time.Hour)
	req.ValidUntil = now.Add(32 * time.Hour)
	permit, err := f.svc.Create(ctx, "req-1", req)
	require.NoError(t, err)
	setGates(t, f, permit.ID)

	p, err := f.svc.Transition(ctx, permit.ID, workflow.EventSubmit, creator, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusEngineeringReview, p.Status)

	// specialist sign-off returns the permit to the normal queue
	p, err = f.svc.Transition(ctx, permit.ID, workflow.EventEngineeringApprove, admin, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusPending, p.Status)
}

func TestSubmitCraneWithLongNoticeStaysPending(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	creator := workflow.Actor{ID: "req-1", Roles: []string{entity.RoleRequester}}

	now := time.Now()
	req := validCreateRequest()
	req.Type = entity.PermitTypeMobileCrane
	req.ValidFrom = now.Add(96 * time.Hour)
	req.ValidUntil = now.Add(104 * time.Hour)
	permit, err := f.svc.Create(ctx, "req-1", req)
	require.NoError(t, err)
	setGates(t, f, permit.ID)

	p, err := f.svc.Transition(ctx, permit.ID, workflow.EventSubmit, creator, "")
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusPending, p.Status)
}

func TestSafetyPayloadRoundTrip(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()

	req := validCreateRequest()
	req.Hazards = entity.StringArray{"falling objects", "hot surfaces", "noise"}
	req.Precautions = entity.StringArray{"barriers", "fire watch"}
	req.PPE = entity.StringArray{"helmet", "gloves", "face shield"}
	req.Personnel = entity.PersonnelList{
		{Name: "A. Demir", Role: "welder"},
		{Name: "B. Kaya", Role: "fire watch"},
	}
	created, err := f.svc.Create(ctx, "req-1", req)
	require.NoError(t, err)

	detail, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string(req.Hazards), []string(detail.Hazards))
	assert.ElementsMatch(t, []string(req.Precautions), []string(detail.Precautions))
	assert.ElementsMatch(t, []string(req.PPE), []string(detail.PPE))
	require.Len(t, detail.Personnel, 2)
	names := []string{detail.Personnel[0].Name, detail.Personnel[1].Name}
	assert.ElementsMatch(t, []string{"A. Demir", "B. Kaya"}, names)
}

func TestGetComputesReadyToWork(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()

	permit := testutil.SeedTestPermit(t, f.db, &entity.Permit{
		ID:          "p-ready",
		Type:        entity.PermitTypeElectrical,
		Description: "x",
		LocationID:  "loc-1", ContractorID: "con-1",
		WorkEntity: "x", EmergencyContact: "x",
		RequestedBy:          "req-1",
		Status:               entity.PermitStatusActive,
		AffectedDeptApproved: true,
	})

	detail, err := f.svc.Get(ctx, permit.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PermitStatusActive, detail.EffectiveStatus)
	assert.False(t, detail.ReadyToWork)

	for _, item := range entity.MandatoryChecklist(entity.PermitTypeElectrical) {
		require.NoError(t, f.repos.Permit.AddChecklistRecord(ctx, &entity.ChecklistRecord{
			ID:        item + "-rec",
			PermitID:  permit.ID,
			Item:      item,
			Checked:   true,
			CheckedBy: "req-1",
		}))
	}

	detail, err = f.svc.Get(ctx, permit.ID)
	require.NoError(t, err)
	assert.True(t, detail.ReadyToWork)
}
