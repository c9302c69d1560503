package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/trafficlens/backend/database"
	"github.com/trafficlens/backend/models"
	"gorm.io/gorm"
)

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

	fmt.Println("Start cleanup...")

	// Delete all Challans
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Challan{}).Error; err != nil {
		log.Fatalf("Failed to delete challans: %v", err)
	}
	fmt.Println("✅ Deleted all challans")

	// Delete all ChallanSequences
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ChallanSequence{}).Error; err != nil {
		log.Fatalf("Failed to delete challan sequences: %v", err)
	}
	fmt.Println("✅ Deleted all challan sequences")

	// Delete all Violations
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Violation{}).Error; err != nil {
		log.Fatalf("Failed to delete violations: %v", err)
	}
	fmt.Println("✅ Deleted all violations")

	// Delete all DetectionJobs
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DetectionJob{}).Error; err != nil {
		log.Fatalf("Failed to delete detection jobs: %v", err)
	}
	fmt.Println("✅ Deleted all detection jobs")

	// Delete all TelemetryReports
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.TelemetryReport{}).Error; err != nil {
		log.Fatalf("Failed to delete telemetry reports: %v", err)
	}
	fmt.Println("✅ Deleted all telemetry reports")

	// Delete all Cameras
	if err := database.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Camera{}).Error; err != nil {
		log.Fatalf("Failed to delete cameras: %v", err)
	}
	fmt.Println("✅ Deleted all cameras")

	fmt.Println("Cleanup finished successfully")
}
