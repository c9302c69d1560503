package services

import (
	"context"
	"errors"
	"time"

	"github.com/trafficlens/backend/models"
	"gorm.io/gorm"
)

// cameraActiveWindow is how recently a camera must have reported to count
// as active
const cameraActiveWindow = 5 * time.Minute

// DashboardStats is the summary block the dashboard header renders.
// Telemetry-sourced fields are nil until the detection service has
// reported; they are never fabricated.
type DashboardStats struct {
	TotalViolationsToday int64    `json:"totalViolationsToday"`
	PendingChallans      int64    `json:"pendingChallans"`
	ActiveCameras        int64    `json:"activeCameras"`
	SystemUptime         *string  `json:"systemUptime,omitempty"`
	DetectionAccuracy    *float64 `json:"detectionAccuracy,omitempty"`
	ProcessedChallans    int64    `json:"processedChallans"`
}

// ViolationStats are the breakdowns behind the dashboard charts
type ViolationStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
	ByType   map[string]int64 `json:"byType"`
	ByCamera map[string]int64 `json:"byCamera"`
	ByHour   map[int]int64    `json:"byHour"` // today's violations bucketed by hour
}

// StatsService computes read-only summary metrics on demand
type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, now: time.Now}
}

// Dashboard computes the summary block. Any store failure propagates as a
// typed error so callers can tell "no data yet" from "stats unavailable".
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	db := s.db.WithContext(ctx)

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	if err := db.Model(&models.Violation{}).
		Where("timestamp >= ? AND timestamp < ?", dayStart, dayEnd).
		Count(&stats.TotalViolationsToday).Error; err != nil {
		return nil, storeErr(err)
	}

	// Verified violations with no active challan yet - the issuance backlog
	if err := db.Model(&models.Violation{}).
		Where("status = ?", models.ViolationVerified).
		Where("id NOT IN (?)", db.Model(&models.Challan{}).
			Select("violation_id").
			Where("status <> ?", models.ChallanCancelled)).
		Count(&stats.PendingChallans).Error; err != nil {
		return nil, storeErr(err)
	}

	if err := db.Model(&models.Challan{}).
		Where("status IN ?", []models.ChallanStatus{models.ChallanSent, models.ChallanPaid}).
		Count(&stats.ProcessedChallans).Error; err != nil {
		return nil, storeErr(err)
	}

	if err := db.Model(&models.Camera{}).
		Where("status = ? AND last_seen >= ?", "active", now.Add(-cameraActiveWindow)).
		Count(&stats.ActiveCameras).Error; err != nil {
		return nil, storeErr(err)
	}

	var report models.TelemetryReport
	err := db.Order("reported_at DESC").First(&report).Error
	switch {
	case err == nil:
		stats.SystemUptime = report.SystemUptime
		stats.DetectionAccuracy = report.DetectionAccuracy
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no telemetry yet, leave the fields unset
	default:
		return nil, storeErr(err)
	}

	return stats, nil
}

// Violations computes the per-status/type/camera breakdowns plus today's
// hourly distribution
func (s *StatsService) Violations(ctx context.Context) (*ViolationStats, error) {
	stats := &ViolationStats{
		ByStatus: make(map[string]int64),
		ByType:   make(map[string]int64),
		ByCamera: make(map[string]int64),
		ByHour:   make(map[int]int64),
	}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Violation{}).Count(&stats.Total).Error; err != nil {
		return nil, storeErr(err)
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	if err := db.Model(&models.Violation{}).
		Select("status as key, COUNT(*) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, storeErr(err)
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.Count
	}

	var byType []bucket
	if err := db.Model(&models.Violation{}).
		Select("violation_type as key, COUNT(*) as count").
		Group("violation_type").
		Scan(&byType).Error; err != nil {
		return nil, storeErr(err)
	}
	for _, b := range byType {
		stats.ByType[b.Key] = b.Count
	}

	var byCamera []bucket
	if err := db.Model(&models.Violation{}).
		Select("camera as key, COUNT(*) as count").
		Group("camera").
		Scan(&byCamera).Error; err != nil {
		return nil, storeErr(err)
	}
	for _, b := range byCamera {
		stats.ByCamera[b.Key] = b.Count
	}

	// Hour bucketing happens in Go: date-part SQL differs between the
	// postgres and sqlite drivers and today's volume is small.
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var timestamps []time.Time
	if err := db.Model(&models.Violation{}).
		Where("timestamp >= ? AND timestamp < ?", dayStart, dayStart.AddDate(0, 0, 1)).
		Pluck("timestamp", &timestamps).Error; err != nil {
		return nil, storeErr(err)
	}
	for _, ts := range timestamps {
		stats.ByHour[ts.In(now.Location()).Hour()]++
	}

	return stats, nil
}
