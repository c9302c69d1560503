package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficlens/backend/models"
)

func TestDashboard(t *testing.T) {
	db := newTestDB(t)
	reviews := NewReviewService(db, nil)
	challans := NewChallanService(db, nil)
	stats := NewStatsService(db)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		out, err := stats.Dashboard(ctx)
		require.NoError(t, err)
		assert.Zero(t, out.TotalViolationsToday)
		assert.Zero(t, out.PendingChallans)
		assert.Zero(t, out.ProcessedChallans)
		assert.Nil(t, out.SystemUptime)
		assert.Nil(t, out.DetectionAccuracy)
	})

	v1 := verifiedViolation(t, reviews, models.ViolationRedLight)
	v2 := verifiedViolation(t, reviews, models.ViolationOverspeed)
	ingestOne(t, reviews, sampleDetection(models.ViolationNoHelmet)) // stays pending

	t.Run("verified without a challan feed the backlog", func(t *testing.T) {
		out, err := stats.Dashboard(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, out.TotalViolationsToday)
		assert.EqualValues(t, 2, out.PendingChallans)
	})

	c1, err := challans.Issue(ctx, IssueRequest{ViolationID: v1.ID, OwnerName: "Owner One"})
	require.NoError(t, err)
	c2, err := challans.Issue(ctx, IssueRequest{ViolationID: v2.ID, OwnerName: "Owner Two"})
	require.NoError(t, err)

	t.Run("issuance drains the backlog", func(t *testing.T) {
		out, err := stats.Dashboard(ctx)
		require.NoError(t, err)
		assert.Zero(t, out.PendingChallans)
		assert.Zero(t, out.ProcessedChallans) // still issued, not yet sent or paid
	})

	_, err = challans.SetStatus(ctx, c1.ID, models.ChallanSent, nil)
	require.NoError(t, err)
	_, err = challans.SetStatus(ctx, c1.ID, models.ChallanPaid, nil)
	require.NoError(t, err)

	t.Run("sent and paid count as processed", func(t *testing.T) {
		out, err := stats.Dashboard(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, out.ProcessedChallans)
	})

	reason := "duplicate entry"
	_, err = challans.SetStatus(ctx, c2.ID, models.ChallanCancelled, &reason)
	require.NoError(t, err)

	t.Run("cancellation returns the violation to the backlog", func(t *testing.T) {
		out, err := stats.Dashboard(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, out.PendingChallans)
	})

	t.Run("telemetry fields mirror the latest report", func(t *testing.T) {
		uptime := "72h14m"
		oldAccuracy := 0.91
		accuracy := 0.94
		require.NoError(t, db.Create(&models.TelemetryReport{
			SystemUptime:      &uptime,
			DetectionAccuracy: &oldAccuracy,
			ReportedAt:        time.Now().Add(-time.Hour),
		}).Error)
		require.NoError(t, db.Create(&models.TelemetryReport{
			SystemUptime:      &uptime,
			DetectionAccuracy: &accuracy,
			ReportedAt:        time.Now(),
		}).Error)

		out, err := stats.Dashboard(ctx)
		require.NoError(t, err)
		require.NotNil(t, out.SystemUptime)
		assert.Equal(t, "72h14m", *out.SystemUptime)
		require.NotNil(t, out.DetectionAccuracy)
		assert.Equal(t, 0.94, *out.DetectionAccuracy)
	})
}

func TestDashboardActiveCameras(t *testing.T) {
	db := newTestDB(t)
	reviews := NewReviewService(db, nil)
	stats := NewStatsService(db)
	ctx := context.Background()

	// cam-01 is registered as a side effect of ingest with a fresh last_seen
	ingestOne(t, reviews, sampleDetection(models.ViolationRedLight))

	staleName := "Junction South"
	require.NoError(t, db.Create(&models.Camera{
		ID:       "cam-stale",
		Name:     &staleName,
		Status:   "active",
		LastSeen: time.Now().Add(-time.Hour),
	}).Error)

	offlineName := "Junction West"
	require.NoError(t, db.Create(&models.Camera{
		ID:       "cam-offline",
		Name:     &offlineName,
		Status:   "offline",
		LastSeen: time.Now(),
	}).Error)

	out, err := stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.ActiveCameras)
}

// TestProcessedChallansProperty drives a randomized issue/transition
// sequence and checks the processed count stays equal to the number of
// challans sitting in sent or paid.
func TestProcessedChallansProperty(t *testing.T) {
	db := newTestDB(t)
	reviews := NewReviewService(db, nil)
	challans := NewChallanService(db, nil)
	stats := NewStatsService(db)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	types := []models.ViolationType{
		models.ViolationRedLight,
		models.ViolationOverspeed,
		models.ViolationNoHelmet,
		models.ViolationWrongWay,
		models.ViolationStopLine,
	}

	expected := map[string]models.ChallanStatus{}
	countProcessed := func() int64 {
		var n int64
		for _, status := range expected {
			if status == models.ChallanSent || status == models.ChallanPaid {
				n++
			}
		}
		return n
	}

	var ids []string
	for step := 0; step < 40; step++ {
		if len(ids) == 0 || rng.Intn(3) == 0 {
			v := verifiedViolation(t, reviews, types[rng.Intn(len(types))])
			challan, err := challans.Issue(ctx, IssueRequest{ViolationID: v.ID, OwnerName: "Owner"})
			require.NoError(t, err)
			expected[challan.ID] = challan.Status
			ids = append(ids, challan.ID)
		} else {
			id := ids[rng.Intn(len(ids))]
			next := []models.ChallanStatus{models.ChallanSent, models.ChallanPaid, models.ChallanCancelled}[rng.Intn(3)]
			updated, err := challans.SetStatus(ctx, id, next, nil)
			if err != nil {
				require.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				expected[id] = updated.Status
			}
		}

		out, err := stats.Dashboard(ctx)
		require.NoError(t, err)
		require.Equal(t, countProcessed(), out.ProcessedChallans, "after step %d", step)
	}
}

func TestViolationStatsBreakdowns(t *testing.T) {
	db := newTestDB(t)
	reviews := NewReviewService(db, nil)
	stats := NewStatsService(db)
	ctx := context.Background()

	verifiedViolation(t, reviews, models.ViolationRedLight)
	verifiedViolation(t, reviews, models.ViolationRedLight)
	ingestOne(t, reviews, sampleDetection(models.ViolationOverspeed))

	d := sampleDetection(models.ViolationWrongWay)
	d.Camera = "cam-02"
	rejected := ingestOne(t, reviews, d)
	_, err := reviews.Review(ctx, rejected.ID, models.ViolationRejected, nil, nil)
	require.NoError(t, err)

	out, err := stats.Violations(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 4, out.Total)

	assert.EqualValues(t, 2, out.ByStatus["verified"])
	assert.EqualValues(t, 1, out.ByStatus["pending"])
	assert.EqualValues(t, 1, out.ByStatus["rejected"])

	assert.EqualValues(t, 2, out.ByType["red_light"])
	assert.EqualValues(t, 1, out.ByType["overspeeding"])
	assert.EqualValues(t, 1, out.ByType["wrong_way"])

	assert.EqualValues(t, 3, out.ByCamera["cam-01"])
	assert.EqualValues(t, 1, out.ByCamera["cam-02"])

	// All four detections carry a now() timestamp, so they land in today's
	// hourly distribution.
	var bucketed int64
	for _, n := range out.ByHour {
		bucketed += n
	}
	assert.EqualValues(t, 4, bucketed)
}
