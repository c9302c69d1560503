package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/trafficlens/backend/database"
	"github.com/trafficlens/backend/models"
)

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("Start seeding...")

	now := time.Now()
	day := func(h, m int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
	}

	cameras := []models.Camera{
		{ID: "cam-01", Name: strPtr("Camera 1 - Main Square"), Status: "active", LastSeen: now},
		{ID: "cam-02", Name: strPtr("Camera 2 - Junction B"), Status: "active", LastSeen: now},
		{ID: "cam-03", Name: strPtr("Camera 3 - Highway Entry"), Status: "active", LastSeen: now},
		{ID: "cam-05", Name: strPtr("Camera 5 - One Way"), Status: "active", LastSeen: now},
	}
	for i := range cameras {
		if err := database.DB.Save(&cameras[i]).Error; err != nil {
			log.Fatalf("Failed to seed camera %s: %v", cameras[i].ID, err)
		}
	}
	fmt.Printf("✅ Seeded %d cameras\n", len(cameras))

	violations := []models.Violation{
		{
			ID: uuid.New().String(), TrackID: 101,
			ViolationType: models.ViolationRedLight, VehicleType: "car",
			PlateNumber: strPtr("MH-12-AB-1234"), Timestamp: day(14, 23),
			FrameNumber: 1420, Confidence: 0.985, Camera: "cam-01",
			Status: models.ViolationPending,
			LineY:  f64Ptr(350), VehicleY: f64Ptr(380),
			Details: models.NewJSONB(map[string]interface{}{"line_y": 350, "vehicle_y": 380}),
		},
		{
			ID: uuid.New().String(), TrackID: 102,
			ViolationType: models.ViolationOverspeed, VehicleType: "car",
			PlateNumber: strPtr("MH-14-CD-5678"), Timestamp: day(14, 20),
			FrameNumber: 1280, Confidence: 0.952, Camera: "cam-03",
			Status:   models.ViolationVerified,
			SpeedKph: f64Ptr(82.4), SpeedLimit: f64Ptr(50),
			Details: models.NewJSONB(map[string]interface{}{"speed_kph": 82.4, "speed_limit": 50}),
		},
		{
			ID: uuid.New().String(), TrackID: 103,
			ViolationType: models.ViolationNoHelmet, VehicleType: "motorbike",
			PlateNumber: strPtr("MH-12-EF-9012"), Timestamp: day(13, 55),
			FrameNumber: 980, Confidence: 0.921, Camera: "cam-02",
			Status: models.ViolationPending,
		},
		{
			ID: uuid.New().String(), TrackID: 104,
			ViolationType: models.ViolationWrongWay, VehicleType: "truck",
			PlateNumber: strPtr("MH-09-GH-3456"), Timestamp: day(13, 40),
			FrameNumber: 850, Confidence: 0.968, Camera: "cam-05",
			Status: models.ViolationRejected,
		},
		{
			ID: uuid.New().String(), TrackID: 105,
			ViolationType: models.ViolationStopLine, VehicleType: "car",
			PlateNumber: strPtr("MH-12-IJ-7890"), Timestamp: day(13, 15),
			FrameNumber: 720, Confidence: 0.893, Camera: "cam-01",
			Status: models.ViolationVerified,
		},
	}
	for i := range violations {
		if err := database.DB.Create(&violations[i]).Error; err != nil {
			log.Fatalf("Failed to seed violation: %v", err)
		}
	}
	fmt.Printf("✅ Seeded %d violations\n", len(violations))

	// One challan against the verified overspeeding violation, matching the
	// numbers the dashboard demo shows
	dateKey := now.Format("20060102")
	challan := models.Challan{
		ID:            uuid.New().String(),
		ChallanNumber: fmt.Sprintf("CH%s01", dateKey),
		ViolationID:   violations[1].ID,
		VehicleNumber: "MH-14-CD-5678",
		OwnerName:     "Rajesh Kumar",
		ViolationType: models.ViolationOverspeed,
		PenaltyAmount: 2000,
		IssueDate:     now,
		DueDate:       now.AddDate(0, 0, 30),
		Status:        models.ChallanSent,
	}
	if err := database.DB.Create(&challan).Error; err != nil {
		log.Fatalf("Failed to seed challan: %v", err)
	}
	if err := database.DB.Save(&models.ChallanSequence{Date: dateKey, NextSeq: 1}).Error; err != nil {
		log.Fatalf("Failed to seed challan sequence: %v", err)
	}
	fmt.Println("✅ Seeded 1 challan")

	fmt.Println("Seeding finished successfully")
}
