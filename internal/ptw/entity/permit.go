package entity

import (
	"strings"
	"time"
)

// Permit work authorization request and its accumulated safety data
type Permit struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	Number string `json:"number" gorm:"size:32;not null;uniqueIndex"`

	// Classification
	Type      string `json:"type" gorm:"size:32;not null"`
	SubType   string `json:"sub_type" gorm:"size:64"`
	WorkType  string `json:"work_type" gorm:"size:128"`
	RiskLevel string `json:"risk_level" gorm:"size:16;not null;default:medium"`

	// Descriptive fields
	Description      string        `json:"description" gorm:"type:text;not null"`
	LocationID       string        `json:"location_id" gorm:"size:32;not null"`
	ContractorID     string        `json:"contractor_id" gorm:"size:32;not null"`
	WorkEntity       string        `json:"work_entity" gorm:"size:128;not null"`
	EmergencyContact string        `json:"emergency_contact" gorm:"size:64;not null"`
	Personnel        PersonnelList `json:"personnel" gorm:"type:jsonb"`

	// Safety payload
	Hazards            StringArray `json:"hazards" gorm:"type:jsonb"`
	HazardsOther       string      `json:"hazards_other" gorm:"type:text"`
	Precautions        StringArray `json:"precautions" gorm:"type:jsonb"`
	PrecautionsOther   string      `json:"precautions_other" gorm:"type:text"`
	PPE                StringArray `json:"ppe" gorm:"type:jsonb"`
	PPEOther           string      `json:"ppe_other" gorm:"type:text"`
	OnSiteTestRequired bool        `json:"on_site_test_required" gorm:"not null;default:false"`

	// Preparation gates
	HazardsIdentified    bool `json:"hazards_identified" gorm:"not null;default:false"`
	ControlsImplemented  bool `json:"controls_implemented" gorm:"not null;default:false"`
	PPEIdentified        bool `json:"ppe_identified" gorm:"not null;default:false"`
	EquipmentIdentified  bool `json:"equipment_identified" gorm:"not null;default:false"`
	AffectedDeptApproved bool `json:"affected_dept_approved" gorm:"not null;default:false"`

	// Closure
	ClosureRequested  bool    `json:"closure_requested" gorm:"not null;default:false"`
	ClosureApprovedBy *string `json:"closure_approved_by" gorm:"size:32"`

	Status          string `json:"status" gorm:"size:24;not null;default:draft;index"`
	RejectionReason string `json:"rejection_reason" gorm:"type:text"`

	// Temporal
	ValidFrom   time.Time  `json:"valid_from" gorm:"not null"`
	ValidUntil  time.Time  `json:"valid_until" gorm:"not null"`
	CompletedAt *time.Time `json:"completed_at"`

	RequestedBy string     `json:"requested_by" gorm:"size:32;not null;index"`
	ApprovedBy  *string    `json:"approved_by" gorm:"size:32"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Associations
	Location     *Location         `json:"location,omitempty" gorm:"foreignKey:LocationID"`
	Contractor   *Contractor       `json:"contractor,omitempty" gorm:"foreignKey:ContractorID"`
	Requester    *User             `json:"requester,omitempty" gorm:"foreignKey:RequestedBy"`
	Documents    []PermitDocument  `json:"documents,omitempty" gorm:"foreignKey:PermitID"`
	Signatures   []PermitSignature `json:"signatures,omitempty" gorm:"foreignKey:PermitID"`
	GasTests     []GasTest         `json:"gas_tests,omitempty" gorm:"foreignKey:PermitID"`
	Checklist    []ChecklistRecord `json:"checklist,omitempty" gorm:"foreignKey:PermitID"`
	Handovers    []Handover        `json:"handovers,omitempty" gorm:"foreignKey:PermitID"`
	Certificates []Certificate     `json:"certificates,omitempty" gorm:"foreignKey:PermitID"`
	AuditLog     []PermitAudit     `json:"audit_log,omitempty" gorm:"foreignKey:PermitID"`
}

func (Permit) TableName() string {
	return "permits"
}

// Permit statuses
const (
	PermitStatusDraft             = "draft"
	PermitStatusPending           = "pending"
	PermitStatusEngineeringReview = "engineering_review"
	PermitStatusApproved          = "approved"
	PermitStatusActive            = "active"
	PermitStatusCompleted         = "completed"
	PermitStatusRejected          = "rejected"
	PermitStatusCancelled         = "cancelled"
	PermitStatusExpired           = "expired"
)

// Permit types
const (
	PermitTypeHotWork          = "hot_work"
	PermitTypeColdWork         = "cold_work"
	PermitTypeElectrical       = "electrical"
	PermitTypeConfinedSpace    = "confined_space"
	PermitTypeWorkingAtHeights = "working_at_heights"
	PermitTypeMobileCrane      = "mobile_crane"
	PermitTypeExcavation       = "excavation"
)

// Risk levels
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// Work-type labels that mandate an on-site atmospheric test. Kept in the
// original Turkish form used on the field checklists.
const (
	WorkTypeConfined = "Kapalı Mekanda"
	WorkTypeHot      = "Ateşli"
)

// RequiresAtmosphericTest reports whether the on-site gas test flag is
// mandatory for the given permit type and work-type label. The flag can
// never be disabled for these permits.
func RequiresAtmosphericTest(permitType, workType string) bool {
	if permitType == PermitTypeConfinedSpace || permitType == PermitTypeHotWork {
		return true
	}
	return strings.Contains(workType, WorkTypeConfined) || strings.Contains(workType, WorkTypeHot)
}

// RequiresEngineeringReview reports whether the permit type needs a
// specialist engineering sign-off before standard approval.
func RequiresEngineeringReview(permitType string) bool {
	return permitType == PermitTypeMobileCrane
}

// EngineeringNoticePeriod minimum lead time before validFrom under which a
// submitted engineering-review permit is routed for specialist sign-off.
const EngineeringNoticePeriod = 72 * time.Hour

// MandatoryChecklist returns the type-specific checklist items that must be
// recorded before the permit counts as ready to work.
func MandatoryChecklist(permitType string) []string {
	switch permitType {
	case PermitTypeHotWork:
		return []string{"fire_watch_assigned", "flammables_cleared", "extinguisher_on_site"}
	case PermitTypeConfinedSpace:
		return []string{"entry_attendant_assigned", "ventilation_verified", "rescue_plan_posted"}
	case PermitTypeElectrical:
		return []string{"isolation_verified", "lockout_tagout_applied"}
	case PermitTypeWorkingAtHeights:
		return []string{"harness_inspected", "anchor_points_verified"}
	case PermitTypeMobileCrane:
		return []string{"ground_conditions_checked", "lift_plan_approved", "exclusion_zone_marked"}
	case PermitTypeExcavation:
		return []string{"underground_services_located", "shoring_in_place"}
	default:
		return nil
	}
}

// IsTerminal reports whether the status allows no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case PermitStatusCompleted, PermitStatusRejected, PermitStatusCancelled:
		return true
	}
	return false
}

// EffectiveStatus derives the display status. `expired` is never stored; an
// approved or active permit whose validity window has passed reports as
// expired.
func (p *Permit) EffectiveStatus(now time.Time) string {
	if (p.Status == PermitStatusApproved || p.Status == PermitStatusActive) && !now.Before(p.ValidUntil) {
		return PermitStatusExpired
	}
	return p.Status
}
