// Package services provides business logic services
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/trafficlens/backend/models"
	"gorm.io/gorm"
)

// Publisher is the slice of the NATS connection the services need for
// lifecycle events. Nil disables publishing.
type Publisher interface {
	Publish(subject string, data []byte) error
}

const (
	SubjectViolations = "reviews.violations"
	SubjectChallans   = "reviews.challans"
)

// Detection is one raw detection from the detection service, before it is
// accepted as a Violation.
type Detection struct {
	TrackID       int                    `json:"trackId"`
	ViolationType models.ViolationType   `json:"violationType"`
	VehicleType   string                 `json:"vehicleType"`
	PlateNumber   *string                `json:"plateNumber,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	FrameNumber   int                    `json:"frameNumber"`
	Confidence    float64                `json:"confidence"`
	Camera        string                 `json:"camera"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// ViolationFilter narrows List results; zero values match everything
type ViolationFilter struct {
	Type   models.ViolationType
	Status models.ViolationStatus
	Camera string
	Limit  int
	Skip   int
}

// ReviewService owns violation identity and review status transitions
type ReviewService struct {
	db  *gorm.DB
	pub Publisher
}

// NewReviewService creates a new review service
func NewReviewService(db *gorm.DB, pub Publisher) *ReviewService {
	return &ReviewService{db: db, pub: pub}
}

// IngestResult summarizes one detection batch
type IngestResult struct {
	Job        models.DetectionJob `json:"job"`
	Violations []models.Violation  `json:"violations"`
	Errors     []string            `json:"errors,omitempty"`
}

// IngestBatch accepts a batch of raw detections for one processed video
// job. Each valid detection becomes a pending violation; invalid ones are
// rejected individually and reported in the result.
func (s *ReviewService) IngestBatch(ctx context.Context, jobID string, source *string, detections []Detection) (*IngestResult, error) {
	if jobID == "" {
		jobID = uuid.New().String()
	}

	result := &IngestResult{
		Job: models.DetectionJob{
			ID:       jobID,
			Source:   source,
			Received: len(detections),
		},
	}

	for i := range detections {
		v, err := s.buildViolation(jobID, &detections[i])
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Job.Rejected++
			continue
		}

		if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
			return nil, storeErr(err)
		}
		if err := s.touchCamera(ctx, v.Camera, v.Timestamp); err != nil {
			return nil, err
		}

		result.Violations = append(result.Violations, *v)
		result.Job.Accepted++
		s.publish("violation.ingested", v)
	}

	if err := s.db.WithContext(ctx).Create(&result.Job).Error; err != nil {
		return nil, storeErr(err)
	}

	log.Printf("📥 [INGEST] Job %s: accepted %d/%d detections", jobID, result.Job.Accepted, result.Job.Received)
	return result, nil
}

// buildViolation validates a detection and shapes it into a pending
// violation record. Known evidence keys are lifted out of the details bag
// into typed columns; the raw bag is kept for audit.
func (s *ReviewService) buildViolation(jobID string, d *Detection) (*models.Violation, error) {
	if !d.ViolationType.IsValid() {
		return nil, fmt.Errorf("%w: unknown violationType %q", ErrValidation, d.ViolationType)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrValidation, d.Confidence)
	}
	if d.Camera == "" {
		return nil, fmt.Errorf("%w: camera is required", ErrValidation)
	}
	if d.VehicleType == "" {
		return nil, fmt.Errorf("%w: vehicleType is required", ErrValidation)
	}

	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	v := &models.Violation{
		ID:            uuid.New().String(),
		TrackID:       d.TrackID,
		ViolationType: d.ViolationType,
		VehicleType:   d.VehicleType,
		PlateNumber:   d.PlateNumber,
		Timestamp:     ts,
		FrameNumber:   d.FrameNumber,
		Confidence:    d.Confidence,
		Camera:        d.Camera,
		Status:        models.ViolationPending,
		JobID:         &jobID,
	}

	if len(d.Details) > 0 {
		v.Details = models.NewJSONB(d.Details)
		v.SpeedKph = detailNumber(d.Details, "speed_kph", "speedKph")
		v.SpeedLimit = detailNumber(d.Details, "speed_limit", "speedLimit")
		v.LineY = detailNumber(d.Details, "line_y", "lineY")
		v.VehicleY = detailNumber(d.Details, "vehicle_y", "vehicleY")
	}

	return v, nil
}

// detailNumber pulls the first numeric value found under any of the given
// keys. Detection services have used both snake_case and camelCase here.
func detailNumber(details map[string]interface{}, keys ...string) *float64 {
	for _, key := range keys {
		if raw, ok := details[key]; ok {
			switch n := raw.(type) {
			case float64:
				return &n
			case int:
				f := float64(n)
				return &f
			case json.Number:
				if f, err := n.Float64(); err == nil {
					return &f
				}
			}
		}
	}
	return nil
}

// touchCamera upserts the originating camera and refreshes its heartbeat
func (s *ReviewService) touchCamera(ctx context.Context, cameraID string, seen time.Time) error {
	var camera models.Camera
	err := s.db.WithContext(ctx).First(&camera, "id = ?", cameraID).Error
	if err == nil {
		if seen.After(camera.LastSeen) {
			if err := s.db.WithContext(ctx).Model(&camera).Update("last_seen", seen).Error; err != nil {
				return storeErr(err)
			}
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeErr(err)
	}

	name := "Camera " + cameraID
	camera = models.Camera{
		ID:       cameraID,
		Name:     &name,
		Status:   "active",
		LastSeen: seen,
	}
	if err := s.db.WithContext(ctx).Create(&camera).Error; err != nil {
		if isDuplicateKey(err) {
			return nil
		}
		return storeErr(err)
	}
	return nil
}

// List returns a page of violations, most recent first, plus the total
// match count
func (s *ReviewService) List(ctx context.Context, filter ViolationFilter) ([]models.Violation, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Violation{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("violation_type = ?", filter.Type)
	}
	if filter.Camera != "" {
		query = query.Where("camera = ?", filter.Camera)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var violations []models.Violation
	if err := query.Order("timestamp DESC").Limit(limit).Offset(filter.Skip).Find(&violations).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	return violations, total, nil
}

// Get fetches a single violation by id
func (s *ReviewService) Get(ctx context.Context, id string) (*models.Violation, error) {
	var violation models.Violation
	if err := s.db.WithContext(ctx).First(&violation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: violation %s", ErrNotFound, id)
		}
		return nil, storeErr(err)
	}
	return &violation, nil
}

// Review applies a verify/reject decision. The UPDATE is guarded on the
// current status so two concurrent reviewers cannot both win: exactly one
// sees rows affected, the other gets a TransitionError.
func (s *ReviewService) Review(ctx context.Context, id string, decision models.ViolationStatus, reviewedBy, note *string) (*models.Violation, error) {
	if decision != models.ViolationVerified && decision != models.ViolationRejected {
		return nil, fmt.Errorf("%w: decision must be verified or rejected, got %q", ErrValidation, decision)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      decision,
		"reviewed_at": now,
	}
	if reviewedBy != nil {
		updates["reviewed_by"] = *reviewedBy
	}
	if note != nil {
		updates["review_note"] = *note
	}

	res := s.db.WithContext(ctx).Model(&models.Violation{}).
		Where("id = ? AND status = ?", id, models.ViolationPending).
		Updates(updates)
	if res.Error != nil {
		return nil, storeErr(res.Error)
	}

	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &TransitionError{
			Record:    "violation",
			ID:        id,
			Current:   string(current.Status),
			Attempted: string(decision),
		}
	}

	violation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [REVIEW] Violation %s marked %s", id, decision)
	s.publish("violation."+string(decision), violation)
	return violation, nil
}

func (s *ReviewService) publish(event string, payload interface{}) {
	if s.pub == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": payload,
	})
	if err != nil {
		return
	}
	if err := s.pub.Publish(SubjectViolations, body); err != nil {
		log.Printf("⚠️ Failed to publish %s event: %v", event, err)
	}
}
