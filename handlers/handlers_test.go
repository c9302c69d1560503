package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficlens/backend/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestAPI builds the full router on a throwaway sqlite database. The
// package-global database.DB is swapped in because the auth and ingest
// handlers read it directly.
func setupTestAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	database.DB = db
	Init(db, nil)
	return SetupRouter()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	parsed := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed), "body: %s", w.Body.String())
	}
	return w, parsed
}

// loginToken seeds a reviewer account and logs in through the API
func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()

	SeedAdminUser("reviewer1", "test-password")
	w, body := doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{
		"username": "reviewer1",
		"password": "test-password",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func sampleBatch() gin.H {
	return gin.H{
		"detections": []gin.H{
			{
				"trackId":       7,
				"violationType": "overspeeding",
				"vehicleType":   "car",
				"plateNumber":   "MH-12-AB-1234",
				"timestamp":     time.Now().Format(time.RFC3339),
				"frameNumber":   1420,
				"confidence":    0.982,
				"camera":        "cam-01",
				"details": gin.H{
					"speed_kph":   84.3,
					"speed_limit": 60,
				},
			},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestAPI(t)
	w, body := doJSON(t, router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

// TestReviewFlow walks the whole pipeline over HTTP: ingest, verify,
// generate the challan, mark it sent and paid.
func TestReviewFlow(t *testing.T) {
	router := setupTestAPI(t)
	token := loginToken(t, router)

	// Ingest one overspeeding detection
	w, body := doJSON(t, router, http.MethodPost, "/api/detections/ingest", sampleBatch(), "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["totalViolations"])
	assert.EqualValues(t, 0, body["rejected"])

	violations := body["violations"].([]interface{})
	require.Len(t, violations, 1)
	violation := violations[0].(map[string]interface{})
	violationID := violation["id"].(string)
	assert.Equal(t, "pending", violation["status"])
	assert.Equal(t, 0.982, violation["confidence"])

	// The violation shows up in the list
	w, body = doJSON(t, router, http.MethodGet, "/api/violations?status=pending", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	// Verify it
	w, body = doJSON(t, router, http.MethodPut, "/api/violations/"+violationID+"/verify", gin.H{
		"status":     "verified",
		"reviewedBy": "reviewer1",
		"note":       "clear plate, plausible speed",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "verified", body["status"])
	assert.Equal(t, "reviewer1", body["reviewedBy"])

	// Issue the challan
	w, body = doJSON(t, router, http.MethodPost, "/api/challans/generate", gin.H{
		"violationId": violationID,
		"ownerName":   "Rajesh Kumar",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])

	challan := body["challan"].(map[string]interface{})
	challanID := challan["id"].(string)
	assert.Equal(t, "issued", challan["status"])
	assert.EqualValues(t, 2000, challan["penaltyAmount"])
	assert.Equal(t, "MH-12-AB-1234", challan["vehicleNumber"])
	assert.Regexp(t, `^CH\d{8}\d{2,}$`, challan["challanNumber"])

	// Send, then settle
	w, body = doJSON(t, router, http.MethodPatch, "/api/challans/"+challanID+"/status", gin.H{"status": "sent"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sent", body["status"])

	w, body = doJSON(t, router, http.MethodPatch, "/api/challans/"+challanID+"/status", gin.H{"status": "paid"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", body["status"])

	// Dashboard reflects the run
	w, body = doJSON(t, router, http.MethodGet, "/api/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["totalViolationsToday"])
	assert.EqualValues(t, 1, body["processedChallans"])
	assert.EqualValues(t, 0, body["pendingChallans"])
}

func TestErrorResponses(t *testing.T) {
	router := setupTestAPI(t)
	token := loginToken(t, router)

	t.Run("unknown violation is 404", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodGet, "/api/violations/no-such-id", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", body["code"])
	})

	t.Run("unknown enum in query is 400", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodGet, "/api/violations?status=bogus", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("bad pagination is 400", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodGet, "/api/violations?limit=0", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])

		w, _ = doJSON(t, router, http.MethodGet, "/api/challans?skip=-1", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("double review is a 409 with both states", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/detections/ingest", sampleBatch(), "")
		require.Equal(t, http.StatusCreated, w.Code)
		violationID := body["violations"].([]interface{})[0].(map[string]interface{})["id"].(string)

		w, _ = doJSON(t, router, http.MethodPut, "/api/violations/"+violationID+"/verify", gin.H{"status": "rejected"}, token)
		require.Equal(t, http.StatusOK, w.Code)

		w, body = doJSON(t, router, http.MethodPut, "/api/violations/"+violationID+"/verify", gin.H{"status": "verified"}, token)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "INVALID_TRANSITION", body["code"])
		assert.Equal(t, "rejected", body["currentStatus"])
		assert.Equal(t, "verified", body["attemptedStatus"])
	})

	t.Run("double issuance is a 409 conflict", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/detections/ingest", sampleBatch(), "")
		require.Equal(t, http.StatusCreated, w.Code)
		violationID := body["violations"].([]interface{})[0].(map[string]interface{})["id"].(string)

		w, _ = doJSON(t, router, http.MethodPut, "/api/violations/"+violationID+"/verify", gin.H{"status": "verified"}, token)
		require.Equal(t, http.StatusOK, w.Code)

		issue := gin.H{"violationId": violationID, "ownerName": "Owner"}
		w, _ = doJSON(t, router, http.MethodPost, "/api/challans/generate", issue, token)
		require.Equal(t, http.StatusCreated, w.Code)

		w, body = doJSON(t, router, http.MethodPost, "/api/challans/generate", issue, token)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CONFLICT", body["code"])
	})

	t.Run("missing status body is 400", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPut, "/api/violations/some-id/verify", gin.H{}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})
}

func TestAuthProtection(t *testing.T) {
	router := setupTestAPI(t)

	t.Run("review requires a token", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPut, "/api/violations/some-id/verify", gin.H{"status": "verified"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/api/challans/generate", gin.H{}, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong credentials are rejected", func(t *testing.T) {
		SeedAdminUser("reviewer2", "right-password")
		w, _ := doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{
			"username": "reviewer2",
			"password": "wrong-password",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("reads stay open", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodGet, "/api/violations", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestIngestToken(t *testing.T) {
	router := setupTestAPI(t)
	t.Setenv("INGEST_TOKEN", "detector-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/detections/ingest", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	raw, err := json.Marshal(sampleBatch())
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/detections/ingest", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ingest-Token", "detector-secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestJobsAndCameras(t *testing.T) {
	router := setupTestAPI(t)

	batch := sampleBatch()
	batch["jobId"] = "job-42"
	batch["source"] = "intersection-feed.mp4"
	w, _ := doJSON(t, router, http.MethodPost, "/api/detections/ingest", batch, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := doJSON(t, router, http.MethodGet, "/api/jobs/job-42", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["received"])
	assert.EqualValues(t, 1, body["accepted"])
	assert.EqualValues(t, 0, body["rejected"])

	w, body = doJSON(t, router, http.MethodGet, "/api/jobs/no-such-job", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	w, body = doJSON(t, router, http.MethodGet, "/api/cameras", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
	cameras := body["cameras"].([]interface{})
	require.Len(t, cameras, 1)
	assert.Equal(t, "cam-01", cameras[0].(map[string]interface{})["id"])
}

func TestViolationStatsEndpoint(t *testing.T) {
	router := setupTestAPI(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/detections/ingest", sampleBatch(), "")
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := doJSON(t, router, http.MethodGet, "/api/violations/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	byType := body["byType"].(map[string]interface{})
	assert.EqualValues(t, 1, byType["overspeeding"])
}
