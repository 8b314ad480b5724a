package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"gorm.io/gorm"
)

// PermitRepository permit persistence
type PermitRepository struct {
	db *gorm.DB
}

// NewPermitRepository creates the permit repository
func NewPermitRepository(db *gorm.DB) *PermitRepository {
	return &PermitRepository{db: db}
}

// FindByID loads a permit with all of its child collections.
func (r *PermitRepository) FindByID(ctx context.Context, id string) (*entity.Permit, error) {
	var permit entity.Permit
	err := r.db.WithContext(ctx).
		Preload("Location").
		Preload("Contractor").
		Preload("Requester").
		Preload("Documents").
		Preload("Signatures").
		Preload("GasTests").
		Preload("Checklist").
		Preload("Handovers").
		Preload("Certificates").
		Where("id = ?", id).
		First(&permit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &permit, nil
}

// FindByNumber looks a permit up by its PTW number.
func (r *PermitRepository) FindByNumber(ctx context.Context, number string) (*entity.Permit, error) {
	var permit entity.Permit
	err := r.db.WithContext(ctx).
		Where("number = ?", number).
		First(&permit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &permit, nil
}

// Create inserts a new permit
func (r *PermitRepository) Create(ctx context.Context, permit *entity.Permit) error {
	return r.db.WithContext(ctx).Create(permit).Error
}

// Update saves mutable permit fields
func (r *PermitRepository) Update(ctx context.Context, permit *entity.Permit) error {
	return r.db.WithContext(ctx).Save(permit).Error
}

// UpdateFields applies a partial column update.
func (r *PermitRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Permit{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// TransitionStatus commits a status change with a compare-and-swap on the
// expected current status and writes the audit entry in the same
// transaction. When two transitions race, exactly one matches the row; the
// other returns ErrConflict.
func (r *PermitRepository) TransitionStatus(ctx context.Context, id, fromStatus, toStatus string, extra map[string]interface{}, audit *entity.PermitAudit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     toStatus,
			"updated_at": time.Now(),
		}
		for k, v := range extra {
			updates[k] = v
		}
		res := tx.Model(&entity.Permit{}).
			Where("id = ? AND status = ?", id, fromStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Either the permit is gone or another transition got there
			// first. Distinguish so callers can map to 404 vs 409.
			var count int64
			if err := tx.Model(&entity.Permit{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrConflict
		}
		if audit != nil {
			if err := tx.Create(audit).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns a filtered, paginated permit page and the total count.
func (r *PermitRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Permit, int64, error) {
	var permits []entity.Permit
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Permit{})

	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		query = query.Where("number ILIKE ? OR description ILIKE ? OR work_entity ILIKE ?",
			"%"+keyword+"%", "%"+keyword+"%", "%"+keyword+"%")
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		switch status {
		case entity.PermitStatusExpired:
			// expired is computed, never stored
			query = query.Where("status IN ? AND valid_until <= ?",
				[]string{entity.PermitStatusApproved, entity.PermitStatusActive}, time.Now())
		case entity.PermitStatusApproved, entity.PermitStatusActive:
			query = query.Where("status = ? AND valid_until > ?", status, time.Now())
		default:
			query = query.Where("status = ?", status)
		}
	}
	if permitType, ok := filters["type"].(string); ok && permitType != "" {
		query = query.Where("type = ?", permitType)
	}
	if risk, ok := filters["risk_level"].(string); ok && risk != "" {
		query = query.Where("risk_level = ?", risk)
	}
	if locationID, ok := filters["location_id"].(string); ok && locationID != "" {
		query = query.Where("location_id = ?", locationID)
	}
	if contractorID, ok := filters["contractor_id"].(string); ok && contractorID != "" {
		query = query.Where("contractor_id = ?", contractorID)
	}
	if requestedBy, ok := filters["requested_by"].(string); ok && requestedBy != "" {
		query = query.Where("requested_by = ?", requestedBy)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Location").
		Preload("Contractor").
		Preload("Requester").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&permits).Error
	if err != nil {
		return nil, 0, err
	}

	return permits, total, nil
}

// GenerateNumber allocates the next permit number
func (r *PermitRepository) GenerateNumber(ctx context.Context) (string, error) {
	var seq int
	err := r.db.WithContext(ctx).Raw("SELECT nextval('permit_no_seq')").Scan(&seq).Error
	if err != nil {
		return "", err
	}
	year := time.Now().Year()
	return fmt.Sprintf("PTW-%d-%04d", year, seq), nil
}

// ============================================================
// Child records (append-only)
// ============================================================

// AddDocument appends a document record
func (r *PermitRepository) AddDocument(ctx context.Context, doc *entity.PermitDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// AddSignature appends a signature record
func (r *PermitRepository) AddSignature(ctx context.Context, sig *entity.PermitSignature) error {
	return r.db.WithContext(ctx).Create(sig).Error
}

// AddGasTest appends a gas test measurement
func (r *PermitRepository) AddGasTest(ctx context.Context, test *entity.GasTest) error {
	return r.db.WithContext(ctx).Create(test).Error
}

// AddChecklistRecord appends a completed checklist item
func (r *PermitRepository) AddChecklistRecord(ctx context.Context, rec *entity.ChecklistRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// AddHandover appends a shift handover record
func (r *PermitRepository) AddHandover(ctx context.Context, h *entity.Handover) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// AddCertificate appends a supporting certificate
func (r *PermitRepository) AddCertificate(ctx context.Context, cert *entity.Certificate) error {
	return r.db.WithContext(ctx).Create(cert).Error
}

// ListCheckedItems returns the distinct checklist items recorded as checked
// for one permit.
func (r *PermitRepository) ListCheckedItems(ctx context.Context, permitID string) ([]string, error) {
	var items []string
	err := r.db.WithContext(ctx).
		Model(&entity.ChecklistRecord{}).
		Distinct("item").
		Where("permit_id = ? AND checked = true", permitID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ============================================================
// Audit log
// ============================================================

// AddAudit appends an audit entry
func (r *PermitRepository) AddAudit(ctx context.Context, audit *entity.PermitAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

// ListAudit returns the audit trail for one permit, newest first.
func (r *PermitRepository) ListAudit(ctx context.Context, permitID string) ([]entity.PermitAudit, error) {
	var entries []entity.PermitAudit
	err := r.db.WithContext(ctx).
		Where("permit_id = ?", permitID).
		Preload("Actor").
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ============================================================
// Dashboard statistics
// ============================================================

// StatusCount one status bucket
type StatusCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// CountByColumn groups open permits by one column.
func (r *PermitRepository) CountByColumn(ctx context.Context, column string) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&entity.Permit{}).
		Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Find(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ListExpiringSoon returns approved or active permits whose validity ends
// within the window.
func (r *PermitRepository) ListExpiringSoon(ctx context.Context, within time.Duration, limit int) ([]entity.Permit, error) {
	var permits []entity.Permit
	now := time.Now()
	err := r.db.WithContext(ctx).
		Where("status IN ? AND valid_until > ? AND valid_until <= ?",
			[]string{entity.PermitStatusApproved, entity.PermitStatusActive}, now, now.Add(within)).
		Preload("Location").
		Preload("Contractor").
		Order("valid_until ASC").
		Limit(limit).
		Find(&permits).Error
	if err != nil {
		return nil, err
	}
	return permits, nil
}

// ListMyPending returns permits awaiting review, newest first. Approvers see
// everything pending; requesters see their own.
func (r *PermitRepository) ListMyPending(ctx context.Context, userID string, isApprover bool) ([]entity.Permit, error) {
	query := r.db.WithContext(ctx).
		Where("status IN ?", []string{entity.PermitStatusPending, entity.PermitStatusEngineeringReview})
	if !isApprover {
		query = query.Where("requested_by = ?", userID)
	}
	var permits []entity.Permit
	err := query.
		Preload("Location").
		Preload("Contractor").
		Preload("Requester").
		Order("created_at DESC").
		Find(&permits).Error
	if err != nil {
		return nil, err
	}
	return permits, nil
}
