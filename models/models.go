package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ViolationType enum - closed set produced by the detection pipeline
type ViolationType string

const (
	ViolationRedLight  ViolationType = "red_light"
	ViolationOverspeed ViolationType = "overspeeding"
	ViolationNoHelmet  ViolationType = "no_helmet"
	ViolationWrongWay  ViolationType = "wrong_way"
	ViolationStopLine  ViolationType = "stop_line"
)

// IsValid returns true if the type is a recognized value
func (t ViolationType) IsValid() bool {
	switch t {
	case ViolationRedLight, ViolationOverspeed, ViolationNoHelmet, ViolationWrongWay, ViolationStopLine:
		return true
	}
	return false
}

// ViolationStatus enum
type ViolationStatus string

const (
	ViolationPending  ViolationStatus = "pending"
	ViolationVerified ViolationStatus = "verified"
	ViolationRejected ViolationStatus = "rejected"
)

func (s ViolationStatus) IsValid() bool {
	switch s {
	case ViolationPending, ViolationVerified, ViolationRejected:
		return true
	}
	return false
}

// ChallanStatus enum
type ChallanStatus string

const (
	ChallanIssued    ChallanStatus = "issued"
	ChallanSent      ChallanStatus = "sent"
	ChallanPaid      ChallanStatus = "paid"
	ChallanCancelled ChallanStatus = "cancelled"
)

func (s ChallanStatus) IsValid() bool {
	switch s {
	case ChallanIssued, ChallanSent, ChallanPaid, ChallanCancelled:
		return true
	}
	return false
}

// PenaltyTable maps violation types to fixed penalty amounts (INR)
var PenaltyTable = map[ViolationType]int{
	ViolationRedLight:  1000,
	ViolationOverspeed: 2000,
	ViolationNoHelmet:  1000,
	ViolationWrongWay:  1500,
	ViolationStopLine:  500,
}

// JSONB type for GORM - can handle both objects and arrays
type JSONB struct {
	Data interface{} `json:"-"`
}

// NewJSONB creates a new JSONB from any value
func NewJSONB(v interface{}) JSONB {
	return JSONB{Data: v}
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, &j.Data)
}

// Violation model - a single detected infraction awaiting or past review
type Violation struct {
	ID            string          `gorm:"primaryKey;column:id" json:"id"`
	TrackID       int             `gorm:"column:track_id" json:"trackId"`
	ViolationType ViolationType   `gorm:"column:violation_type;index" json:"violationType"`
	VehicleType   string          `gorm:"column:vehicle_type" json:"vehicleType"`
	PlateNumber   *string         `gorm:"column:plate_number;index" json:"plateNumber,omitempty"`
	Timestamp     time.Time       `gorm:"column:timestamp;index" json:"timestamp"`
	FrameNumber   int             `gorm:"column:frame_number" json:"frameNumber"`
	Confidence    float64         `gorm:"column:confidence" json:"confidence"`
	Camera        string          `gorm:"column:camera;index" json:"camera"`
	Status        ViolationStatus `gorm:"column:status;default:pending;index" json:"status"`

	// Evidence normalized out of the detection's details bag, when present
	SpeedKph   *float64 `gorm:"column:speed_kph" json:"speedKph,omitempty"`
	SpeedLimit *float64 `gorm:"column:speed_limit" json:"speedLimit,omitempty"`
	LineY      *float64 `gorm:"column:line_y" json:"lineY,omitempty"`
	VehicleY   *float64 `gorm:"column:vehicle_y" json:"vehicleY,omitempty"`
	Details    JSONB    `gorm:"type:jsonb;column:details" json:"details,omitempty"`

	JobID *string `gorm:"column:job_id;index" json:"jobId,omitempty"`

	ReviewedAt *time.Time `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy *string    `gorm:"column:reviewed_by" json:"reviewedBy,omitempty"`
	ReviewNote *string    `gorm:"column:review_note" json:"reviewNote,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Violation) TableName() string {
	return "violations"
}

// Challan model - a penalty notice issued against a verified violation.
// The partial unique index allows at most one non-cancelled challan per
// violation, enforced by the database even under concurrent issuance.
type Challan struct {
	ID            string        `gorm:"primaryKey;column:id" json:"id"`
	ChallanNumber string        `gorm:"column:challan_number;uniqueIndex" json:"challanNumber"`
	ViolationID   string        `gorm:"column:violation_id;index:idx_active_challan,unique,where:status <> 'cancelled'" json:"violationId"`
	Violation     *Violation    `gorm:"foreignKey:ViolationID" json:"violation,omitempty"`
	VehicleNumber string        `gorm:"column:vehicle_number" json:"vehicleNumber"`
	OwnerName     string        `gorm:"column:owner_name" json:"ownerName"`
	OwnerAddress  *string       `gorm:"column:owner_address" json:"ownerAddress,omitempty"`
	ViolationType ViolationType `gorm:"column:violation_type" json:"violationType"`
	PenaltyAmount int           `gorm:"column:penalty_amount" json:"penaltyAmount"`
	IssueDate     time.Time     `gorm:"column:issue_date" json:"issueDate"`
	DueDate       time.Time     `gorm:"column:due_date" json:"dueDate"`
	Status        ChallanStatus `gorm:"column:status;default:issued;index" json:"status"`

	CancelledAt  *time.Time `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason *string    `gorm:"column:cancel_reason" json:"cancelReason,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Challan) TableName() string {
	return "challans"
}

// ChallanSequence model - per-date counter backing challan numbers.
// NextSeq is bumped atomically inside the issuance transaction so numbers
// stay unique within a day under concurrent issuance.
type ChallanSequence struct {
	Date    string `gorm:"primaryKey;column:date" json:"date"` // YYYYMMDD
	NextSeq int    `gorm:"column:next_seq" json:"nextSeq"`
}

func (ChallanSequence) TableName() string {
	return "challan_sequences"
}

// DetectionJob model - outcome of one processed video job from the
// detection service
type DetectionJob struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	Source    *string   `gorm:"column:source" json:"source,omitempty"`
	Received  int       `gorm:"column:received" json:"received"`
	Accepted  int       `gorm:"column:accepted" json:"accepted"`
	Rejected  int       `gorm:"column:rejected" json:"rejected"`
	Status    string    `gorm:"column:status;default:completed" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (DetectionJob) TableName() string {
	return "detection_jobs"
}

// Camera model - originating camera registry, kept fresh by ingestion and
// telemetry heartbeats
type Camera struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	Name      *string   `gorm:"column:name" json:"name,omitempty"`
	Location  *string   `gorm:"column:location" json:"location,omitempty"`
	Status    string    `gorm:"column:status;default:active" json:"status"`
	LastSeen  time.Time `gorm:"column:last_seen;index" json:"lastSeen"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Camera) TableName() string {
	return "cameras"
}

// TelemetryReport model - monitoring numbers pushed by the detection
// service; the dashboard shows the latest one, never a made-up value
type TelemetryReport struct {
	ID                int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	SystemUptime      *string   `gorm:"column:system_uptime" json:"systemUptime,omitempty"`
	DetectionAccuracy *float64  `gorm:"column:detection_accuracy" json:"detectionAccuracy,omitempty"`
	ReportedAt        time.Time `gorm:"column:reported_at;index" json:"reportedAt"`
}

func (TelemetryReport) TableName() string {
	return "telemetry_reports"
}
