package service

import (
	"context"
	"testing"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStatusPermit(t *testing.T, f *permitFixture, id, status string) *entity.Permit {
	t.Helper()
	return testutil.SeedTestPermit(t, f.db, &entity.Permit{
		ID:          id,
		Type:        entity.PermitTypeHotWork,
		Description: "x",
		LocationID:  "loc-1", ContractorID: "con-1",
		WorkEntity: "x", EmergencyContact: "x",
		RequestedBy: "req-1",
		Status:      status,
	})
}

func TestAddGasTestValidatesResult(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	seedStatusPermit(t, f, "p-gas", entity.PermitStatusActive)

	_, err := f.svc.AddGasTest(ctx, "p-gas", "req-1", &AddGasTestRequest{Result: "maybe"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	test, err := f.svc.AddGasTest(ctx, "p-gas", "req-1", &AddGasTestRequest{
		Oxygen: 20.9, LEL: 0.0, Result: entity.GasTestResultSafe,
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", test.TestedBy)
}

func TestChildAppendsBlockedOnClosedPermit(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	seedStatusPermit(t, f, "p-done", entity.PermitStatusCompleted)

	_, err := f.svc.AddGasTest(ctx, "p-done", "req-1", &AddGasTestRequest{Result: entity.GasTestResultSafe})
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	_, err = f.svc.AddSignature(ctx, "p-done", "req-1", &AddSignatureRequest{Role: "issuer", ImageURL: "/sig.png"})
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	// documents stay allowed for record keeping
	doc, err := f.svc.AddDocument(ctx, "p-done", "req-1", &AddDocumentRequest{
		Name: "closeout-report.pdf", URL: "/files/closeout-report.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", doc.UploadedBy)
}

func TestAddHandoverRequiresActivePermit(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	seedStatusPermit(t, f, "p-pending", entity.PermitStatusPending)

	req := &AddHandoverRequest{OutgoingIssuer: "Day Shift", IncomingIssuer: "Night Shift"}
	_, err := f.svc.AddHandover(ctx, "p-pending", "req-1", req)
	assert.True(t, apperr.IsKind(err, apperr.KindPolicyViolation))

	seedStatusPermit(t, f, "p-active", entity.PermitStatusActive)
	h, err := f.svc.AddHandover(ctx, "p-active", "req-1", req)
	require.NoError(t, err)
	assert.Equal(t, "Day Shift", h.OutgoingIssuer)
}

func TestChildAppendWritesAuditEntry(t *testing.T) {
	f := setupPermitService(t)
	ctx := context.Background()
	seedStatusPermit(t, f, "p-audit", entity.PermitStatusActive)

	rec, err := f.svc.AddChecklistRecord(ctx, "p-audit", "req-1", &AddChecklistRequest{
		Item: "fire_watch_assigned", Checked: true,
	})
	require.NoError(t, err)

	audit, err := f.svc.ListAudit(ctx, "p-audit")
	require.NoError(t, err)
	require.NotEmpty(t, audit)
	assert.Equal(t, entity.AuditChildAttached, audit[0].Action)
	assert.Equal(t, entity.ChildKindChecklist, audit[0].Detail["kind"])
	assert.Equal(t, rec.ID, audit[0].Detail["record_id"])
}

func TestAddToMissingPermit(t *testing.T) {
	f := setupPermitService(t)

	_, err := f.svc.AddCertificate(context.Background(), "no-such-permit", "req-1", &AddCertificateRequest{
		Kind: "crane_operator_license", HolderName: "B. Yilmaz",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
