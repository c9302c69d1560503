package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trafficlens/backend/database"
	"github.com/trafficlens/backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway sqlite database with the full schema. A file
// in t.TempDir() rather than :memory: so concurrent connections see the
// same data and writers queue on the busy timeout instead of erroring.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func sampleDetection(vt models.ViolationType) Detection {
	plate := "MH-12-AB-1234"
	return Detection{
		TrackID:       101,
		ViolationType: vt,
		VehicleType:   "car",
		PlateNumber:   &plate,
		Timestamp:     time.Now(),
		FrameNumber:   1420,
		Confidence:    0.982,
		Camera:        "cam-01",
	}
}

// ingestOne pushes a single detection through the batch path and returns
// the stored violation
func ingestOne(t *testing.T, svc *ReviewService, d Detection) models.Violation {
	t.Helper()

	result, err := svc.IngestBatch(context.Background(), "", nil, []Detection{d})
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	require.Empty(t, result.Errors)
	return result.Violations[0]
}

// verifiedViolation ingests and verifies a violation ready for issuance
func verifiedViolation(t *testing.T, svc *ReviewService, vt models.ViolationType) models.Violation {
	t.Helper()

	v := ingestOne(t, svc, sampleDetection(vt))
	verified, err := svc.Review(context.Background(), v.ID, models.ViolationVerified, nil, nil)
	require.NoError(t, err)
	return *verified
}
