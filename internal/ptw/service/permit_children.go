package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
)

// Child records are append-only. Nothing here updates or deletes; a wrong
// entry is corrected by appending a new one.

// AddDocumentRequest attach an uploaded document
type AddDocumentRequest struct {
	Name        string `json:"name" binding:"required"`
	URL         string `json:"url" binding:"required"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// AddSignatureRequest attach a captured signature
type AddSignatureRequest struct {
	Role     string `json:"role" binding:"required"`
	ImageURL string `json:"image_url" binding:"required"`
}

// AddGasTestRequest record an atmospheric measurement
type AddGasTestRequest struct {
	Oxygen   float64 `json:"oxygen"`
	CO       float64 `json:"co"`
	CO2      float64 `json:"co2"`
	LEL      float64 `json:"lel"`
	ToxicGas float64 `json:"toxic_gas"`
	Result   string  `json:"result" binding:"required"`
	Notes    string  `json:"notes"`
}

// AddChecklistRequest record a completed checklist item
type AddChecklistRequest struct {
	Item    string `json:"item" binding:"required"`
	Checked bool   `json:"checked"`
	Notes   string `json:"notes"`
}

// AddHandoverRequest record a shift handover
type AddHandoverRequest struct {
	OutgoingIssuer string `json:"outgoing_issuer" binding:"required"`
	IncomingIssuer string `json:"incoming_issuer" binding:"required"`
	Notes          string `json:"notes"`
}

// AddCertificateRequest attach a supporting certificate
type AddCertificateRequest struct {
	Kind       string     `json:"kind" binding:"required"`
	HolderName string     `json:"holder_name" binding:"required"`
	Reference  string     `json:"reference"`
	ExpiresAt  *time.Time `json:"expires_at"`
	URL        string     `json:"url"`
}

// loadOpenPermit fetches the permit and rejects appends to closed permits.
// Documents are exempt: record-keeping uploads stay allowed after closure.
func (s *PermitService) loadOpenPermit(ctx context.Context, id string, allowTerminal bool) (*entity.Permit, error) {
	permit, err := s.permitRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("permit")
		}
		return nil, err
	}
	if !allowTerminal && entity.IsTerminal(permit.Status) {
		return nil, apperr.PolicyViolation("permit_closed",
			fmt.Sprintf("cannot attach records to a %s permit", permit.Status))
	}
	return permit, nil
}

// AddDocument appends a document reference.
func (s *PermitService) AddDocument(ctx context.Context, permitID, userID string, req *AddDocumentRequest) (*entity.PermitDocument, error) {
	if _, err := s.loadOpenPermit(ctx, permitID, true); err != nil {
		return nil, err
	}
	doc := &entity.PermitDocument{
		ID:          generateID(),
		PermitID:    permitID,
		Name:        req.Name,
		URL:         req.URL,
		ContentType: req.ContentType,
		Size:        req.Size,
		UploadedBy:  userID,
	}
	if err := s.permitRepo.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}
	s.recordChild(ctx, permitID, entity.ChildKindDocument, doc.ID, userID)
	return doc, nil
}

// AddSignature appends a signature record.
func (s *PermitService) AddSignature(ctx context.Context, permitID, userID string, req *AddSignatureRequest) (*entity.PermitSignature, error) {
	if _, err := s.loadOpenPermit(ctx, permitID, false); err != nil {
		return nil, err
	}
	sig := &entity.PermitSignature{
		ID:       generateID(),
		PermitID: permitID,
		SignerID: userID,
		Role:     req.Role,
		ImageURL: req.ImageURL,
	}
	if err := s.permitRepo.AddSignature(ctx, sig); err != nil {
		return nil, fmt.Errorf("add signature: %w", err)
	}
	s.recordChild(ctx, permitID, entity.ChildKindSignature, sig.ID, userID)
	return sig, nil
}

// AddGasTest appends an atmospheric measurement.
func (s *PermitService) AddGasTest(ctx context.Context, permitID, userID string, req *AddGasTestRequest) (*entity.GasTest, error) {
	if req.Result != entity.GasTestResultSafe && req.Result != entity.GasTestResultUnsafe {
		return nil, apperr.Validation("result must be safe or unsafe", "result")
	}
	if _, err := s.loadOpenPermit(ctx, permitID, false); err != nil {
		return nil, err
	}
	test := &entity.GasTest{
		ID:       generateID(),
		PermitID: permitID,
		Oxygen:   req.Oxygen,
		CO:       req.CO,
		CO2:      req.CO2,
		LEL:      req.LEL,
		ToxicGas: req.ToxicGas,
		Result:   req.Result,
		TestedBy: userID,
		Notes:    req.Notes,
	}
	if err := s.permitRepo.AddGasTest(ctx, test); err != nil {
		return nil, fmt.Errorf("add gas test: %w", err)
	}
	s.recordChild(ctx, permitID, entity.ChildKindGasTest, test.ID, userID)
	return test, nil
}

// AddChecklistRecord appends a completed checklist item.
func (s *PermitService) AddChecklistRecord(ctx context.Context, permitID, userID string, req *AddChecklistRequest) (*entity.ChecklistRecord, error) {
	if _, err := s.loadOpenPermit(ctx, permitID, false); err != nil {
		return nil, err
	}
	rec := &entity.ChecklistRecord{
		ID:        generateID(),
		PermitID:  permitID,
		Item:      req.Item,
		Checked:   req.Checked,
		CheckedBy: userID,
		Notes:     req.Notes,
	}
	if err := s.permitRepo.AddChecklistRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("add checklist record: %w", err)
	}
	s.recordChild(ctx, permitID, entity.ChildKindChecklist, rec.ID, userID)
	return rec, nil
}

// AddHandover appends a shift handover. Handovers only make sense on a
// permit that is actually live.
func (s *PermitService) AddHandover(ctx context.Context, permitID, userID string, req *AddHandoverRequest) (*entity.Handover, error) {
	permit, err := s.loadOpenPermit(ctx, permitID, false)
	if err != nil {
		return nil, err
	}
	if permit.EffectiveStatus(time.Now()) != entity.PermitStatusActive {
		return nil, apperr.PolicyViolation("permit_not_active",
			"handovers are only recorded on active permits")
	}
	h := &entity.Handover{
		ID:             generateID(),
		PermitID:       permitID,
		OutgoingIssuer: req.OutgoingIssuer,
		IncomingIssuer: req.IncomingIssuer,
		Notes:          req.Notes,
	}
	if err := s.permitRepo.AddHandover(ctx, h); err != nil {
		return nil, fmt.Errorf("add handover: %w", err)
	}
	s.recordChild(ctx, permitID, entity.ChildKindHandover, h.ID, userID)
	return h, nil
}

// AddCertificate appends a supporting certificate.
func (s *PermitService) AddCertificate(ctx context.Context, permitID, userID string, req *AddCertificateRequest) (*entity.Certificate, error) {
	if _, err := s.loadOpenPermit(ctx, permitID, false); err != nil {
		return nil, err
	}
	cert := &entity.Certificate{
		ID:         generateID(),
		PermitID:   permitID,
		Kind:       req.Kind,
		HolderName: req.HolderName,
		Reference:  req.Reference,
		ExpiresAt:  req.ExpiresAt,
		URL:        req.URL,
	}
	if err := s.permitRepo.AddCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("add certificate: %w", err)
	}
	s.recordChild(ctx, permitID, entity.ChildKindCertificate, cert.ID, userID)
	return cert, nil
}

func (s *PermitService) recordChild(ctx context.Context, permitID, kind, recordID, userID string) {
	s.addAudit(ctx, permitID, entity.AuditChildAttached, "", "", userID,
		entity.JSONB{"kind": kind, "record_id": recordID})
	s.publisher.PublishChildEvent(permitID, kind, recordID)
}
