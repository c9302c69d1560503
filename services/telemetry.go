package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/trafficlens/backend/models"
	"gorm.io/gorm"
)

const (
	// SubjectDetections carries detection batches from the detection
	// service, same payload as the HTTP ingest endpoint
	SubjectDetections = "detections.events"

	// SubjectTelemetry carries periodic monitoring reports
	SubjectTelemetry = "telemetry.report"

	consumerTimeout = 10 * time.Second
)

// DetectionBatch is the wire format on SubjectDetections
type DetectionBatch struct {
	JobID      string      `json:"jobId"`
	Source     *string     `json:"source,omitempty"`
	Detections []Detection `json:"detections"`
}

// telemetryPayload is the wire format on SubjectTelemetry
type telemetryPayload struct {
	SystemUptime      *string  `json:"systemUptime,omitempty"`
	DetectionAccuracy *float64 `json:"detectionAccuracy,omitempty"`
	Cameras           []struct {
		ID       string  `json:"id"`
		Name     *string `json:"name,omitempty"`
		Location *string `json:"location,omitempty"`
		Status   string  `json:"status"`
	} `json:"cameras,omitempty"`
}

// StartConsumers wires the NATS ingestion/telemetry subjects into the
// record store. Returned subscriptions stay live for the process lifetime.
func StartConsumers(nc *nats.Conn, db *gorm.DB, reviews *ReviewService) error {
	if _, err := nc.Subscribe(SubjectDetections, func(msg *nats.Msg) {
		var batch DetectionBatch
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			log.Printf("⚠️ [NATS] Bad detection batch: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
		defer cancel()

		result, err := reviews.IngestBatch(ctx, batch.JobID, batch.Source, batch.Detections)
		if err != nil {
			log.Printf("❌ [NATS] Detection batch failed: %v", err)
			return
		}
		if len(result.Errors) > 0 {
			log.Printf("⚠️ [NATS] Job %s: %d detections rejected", result.Job.ID, result.Job.Rejected)
		}
	}); err != nil {
		return err
	}

	if _, err := nc.Subscribe(SubjectTelemetry, func(msg *nats.Msg) {
		var payload telemetryPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("⚠️ [NATS] Bad telemetry report: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
		defer cancel()

		now := time.Now()
		report := models.TelemetryReport{
			SystemUptime:      payload.SystemUptime,
			DetectionAccuracy: payload.DetectionAccuracy,
			ReportedAt:        now,
		}
		if err := db.WithContext(ctx).Create(&report).Error; err != nil {
			log.Printf("❌ [NATS] Failed to store telemetry report: %v", err)
			return
		}

		for _, cam := range payload.Cameras {
			camera := models.Camera{
				ID:       cam.ID,
				Name:     cam.Name,
				Location: cam.Location,
				Status:   cam.Status,
				LastSeen: now,
			}
			if err := db.WithContext(ctx).Save(&camera).Error; err != nil {
				log.Printf("⚠️ [NATS] Failed to upsert camera %s: %v", cam.ID, err)
			}
		}
	}); err != nil {
		return err
	}

	log.Println("📡 NATS consumers started (detections, telemetry)")
	return nil
}
