package entity

import "time"

// Child records are append-only: once written they are never edited or
// deleted while the parent permit exists.

// PermitDocument uploaded attachment, stored as an opaque URL reference
type PermitDocument struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	PermitID    string    `json:"permit_id" gorm:"size:32;not null;index"`
	Name        string    `json:"name" gorm:"size:256;not null"`
	URL         string    `json:"url" gorm:"size:512;not null"`
	ContentType string    `json:"content_type" gorm:"size:128"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PermitDocument) TableName() string {
	return "permit_documents"
}

// PermitSignature signature image captured for one actor
type PermitSignature struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	PermitID  string    `json:"permit_id" gorm:"size:32;not null;index"`
	SignerID  string    `json:"signer_id" gorm:"size:32;not null"`
	Role      string    `json:"role" gorm:"size:32;not null"`
	ImageURL  string    `json:"image_url" gorm:"size:512;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (PermitSignature) TableName() string {
	return "permit_signatures"
}

// GasTest atmospheric measurement taken before or during work
type GasTest struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	PermitID  string    `json:"permit_id" gorm:"size:32;not null;index"`
	Oxygen    float64   `json:"oxygen"`
	CO        float64   `json:"co"`
	CO2       float64   `json:"co2"`
	LEL       float64   `json:"lel"`
	ToxicGas  float64   `json:"toxic_gas"`
	Result    string    `json:"result" gorm:"size:16;not null"`
	TestedBy  string    `json:"tested_by" gorm:"size:32;not null"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (GasTest) TableName() string {
	return "permit_gas_tests"
}

// Gas test results
const (
	GasTestResultSafe   = "safe"
	GasTestResultUnsafe = "unsafe"
)

// ChecklistRecord completed mandatory checklist item
type ChecklistRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	PermitID  string    `json:"permit_id" gorm:"size:32;not null;index"`
	Item      string    `json:"item" gorm:"size:128;not null"`
	Checked   bool      `json:"checked" gorm:"not null"`
	CheckedBy string    `json:"checked_by" gorm:"size:32;not null"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (ChecklistRecord) TableName() string {
	return "permit_checklist_records"
}

// Handover shift-change record transferring responsibility for an active
// permit between two named issuers
type Handover struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	PermitID       string    `json:"permit_id" gorm:"size:32;not null;index"`
	OutgoingIssuer string    `json:"outgoing_issuer" gorm:"size:64;not null"`
	IncomingIssuer string    `json:"incoming_issuer" gorm:"size:64;not null"`
	Notes          string    `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Handover) TableName() string {
	return "permit_handovers"
}

// Certificate supporting certificate (operator license, equipment cert)
type Certificate struct {
	ID         string     `json:"id" gorm:"primaryKey;size:32"`
	PermitID   string     `json:"permit_id" gorm:"size:32;not null;index"`
	Kind       string     `json:"kind" gorm:"size:64;not null"`
	HolderName string     `json:"holder_name" gorm:"size:128;not null"`
	Reference  string     `json:"reference" gorm:"size:128"`
	ExpiresAt  *time.Time `json:"expires_at"`
	URL        string     `json:"url" gorm:"size:512"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Certificate) TableName() string {
	return "permit_certificates"
}

// PermitAudit one audit-log entry per lifecycle action
type PermitAudit struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	PermitID   string    `json:"permit_id" gorm:"size:32;not null;index"`
	Action     string    `json:"action" gorm:"size:32;not null"`
	FromStatus string    `json:"from_status" gorm:"size:24"`
	ToStatus   string    `json:"to_status" gorm:"size:24"`
	ActorID    string    `json:"actor_id" gorm:"size:32;not null"`
	Detail     JSONB     `json:"detail" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"created_at"`

	Actor *User `json:"actor,omitempty" gorm:"foreignKey:ActorID"`
}

func (PermitAudit) TableName() string {
	return "permit_audit_log"
}

// Audit actions
const (
	AuditCreated             = "created"
	AuditUpdated             = "updated"
	AuditSubmitted           = "submitted"
	AuditRoutedEngineering   = "routed_engineering"
	AuditEngineeringApproved = "engineering_approved"
	AuditApproved            = "approved"
	AuditRejected            = "rejected"
	AuditClosureRequested    = "closure_requested"
	AuditClosureApproved     = "closure_approved"
	AuditCancelled           = "cancelled"
	AuditDeptApproved        = "dept_approved"
	AuditChildAttached       = "child_attached"
)

// Child record kinds accepted by the attach endpoint
const (
	ChildKindDocument    = "document"
	ChildKindSignature   = "signature"
	ChildKindGasTest     = "gas_test"
	ChildKindChecklist   = "checklist"
	ChildKindHandover    = "handover"
	ChildKindCertificate = "certificate"
)
