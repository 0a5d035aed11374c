package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foxsense-backend/config"
	"foxsense-backend/internal/api"
	"foxsense-backend/internal/device"
	"foxsense-backend/internal/model"
	"foxsense-backend/internal/store"
)

const integrationJWTSecret = "integration-test-secret"

var integrationDBSeq int64

func newIntegrationRouter(t *testing.T) http.Handler {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:integration%d?mode=memory&cache=shared", atomic.AddInt64(&integrationDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Hub{},
		&model.SensorNode{},
		&model.Assignment{},
		&model.PushSubscription{},
	))

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = integrationJWTSecret
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000

	s := store.NewGormStore(db)
	return api.NewRouter(s, device.NewService(s, nil), nil, cfg)
}

func ownerToken(t *testing.T, ownerID int64) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(integrationJWTSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(router http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}

// TestAssignmentLifecycle walks the whole flow an operator and their hub
// firmware go through: provision devices, assign, poll config, confirm
// pairing, hit the single-assignment rule, retire, and re-assign to a
// second hub with an independent address space.
func TestAssignmentLifecycle(t *testing.T) {
	router := newIntegrationRouter(t)
	token := ownerToken(t, 1)

	// Provision two hubs; the shared secret comes back exactly once.
	var hub1 struct {
		Hub    api.HubResponse `json:"hub"`
		Secret string          `json:"secret"`
	}
	w := doJSON(router, http.MethodPost, "/api/hubs", token,
		gin.H{"deviceId": "foxsense-001", "name": "Greenhouse 2", "location": "north field"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &hub1)
	require.NotEmpty(t, hub1.Secret)

	var hub2 struct {
		Hub    api.HubResponse `json:"hub"`
		Secret string          `json:"secret"`
	}
	w = doJSON(router, http.MethodPost, "/api/hubs", token,
		gin.H{"deviceId": "foxsense-002", "name": "Greenhouse 5"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &hub2)

	// Register the node with a lowercase id; it is stored canonicalized.
	w = doJSON(router, http.MethodPost, "/api/nodes", token,
		gin.H{"deviceId": "1a2b3c01", "name": "Soil probe", "location": "row 3"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"deviceId":"1A2B3C01"`)

	// Assign the node to hub 1.
	var created api.AssignmentResponse
	w = doJSON(router, http.MethodPost, "/api/hubs/foxsense-001/assignments", token,
		gin.H{"nodeId": "1A2B3C01"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &created)
	assert.Equal(t, 0, created.LogicalAddress)
	assert.Equal(t, "PENDING", created.PairingState)
	assert.Nil(t, created.UnassignedAt)

	// The hub polls its config and sees the new roster entry.
	var cfg device.Config
	w = doJSON(router, http.MethodGet,
		"/api/devices/config/foxsense-001?secret="+hub1.Secret, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cfg)
	assert.Equal(t, "560f43ca", cfg.HubTokenHex)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, "1A2B3C01", cfg.Nodes[0].NodeID)
	assert.Equal(t, uint32(439041025), cfg.Nodes[0].NumericNodeAddress)
	assert.Equal(t, "PENDING", cfg.Nodes[0].PairingState)

	// A stale secret is rejected.
	w = doJSON(router, http.MethodGet,
		"/api/devices/config/foxsense-001?secret=stale", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The hub confirms pairing; the next poll reflects it.
	w = doJSON(router, http.MethodPost, "/api/devices/config/foxsense-001/pairing-result", "",
		gin.H{"nodeId": "1A2B3C01", "status": "PAIRED", "secret": hub1.Secret})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet,
		"/api/devices/config/foxsense-001?secret="+hub1.Secret, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cfg)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, "PAIRED", cfg.Nodes[0].PairingState)

	// A second hub cannot take the node while the assignment is active;
	// the error names the current hub.
	w = doJSON(router, http.MethodPost, "/api/hubs/foxsense-002/assignments", token,
		gin.H{"nodeId": "1A2B3C01"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "foxsense-001")

	// Retire the assignment.
	w = doJSON(router, http.MethodDelete,
		fmt.Sprintf("/api/assignments/%d", created.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var retired api.AssignmentResponse
	decode(t, w, &retired)
	require.NotNil(t, retired.UnassignedAt)

	// Now hub 2 can take the node. Address spaces are per hub, so it
	// gets address 0 there too.
	var second api.AssignmentResponse
	w = doJSON(router, http.MethodPost, "/api/hubs/foxsense-002/assignments", token,
		gin.H{"nodeId": "1A2B3C01"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &second)
	assert.Equal(t, 0, second.LogicalAddress)
	assert.Equal(t, "PENDING", second.PairingState)

	// The node's history has both assignments, newest first.
	w = doJSON(router, http.MethodGet, "/api/nodes/1A2B3C01/assignments", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []api.AssignmentResponse
	decode(t, w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, "foxsense-002", history[0].HubDeviceID)
	assert.Nil(t, history[0].UnassignedAt)
	assert.Equal(t, created.ID, history[1].ID)
	assert.NotNil(t, history[1].UnassignedAt)

	// Hub listing reflects active roster sizes.
	w = doJSON(router, http.MethodGet, "/api/hubs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hubs []api.HubResponse
	decode(t, w, &hubs)
	require.Len(t, hubs, 2)
	counts := map[string]int64{}
	for _, h := range hubs {
		counts[h.DeviceID] = h.ActiveNodes
	}
	assert.Equal(t, int64(0), counts["foxsense-001"])
	assert.Equal(t, int64(1), counts["foxsense-002"])
}

func TestOwnerEndpointsRequireAuth(t *testing.T) {
	router := newIntegrationRouter(t)

	w := doJSON(router, http.MethodGet, "/api/hubs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/hubs", "not-a-jwt",
		gin.H{"deviceId": "foxsense-001", "name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOwnersAreIsolated(t *testing.T) {
	router := newIntegrationRouter(t)
	owner1 := ownerToken(t, 1)
	owner2 := ownerToken(t, 2)

	w := doJSON(router, http.MethodPost, "/api/hubs", owner1,
		gin.H{"deviceId": "foxsense-001", "name": "Greenhouse 2"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(router, http.MethodPost, "/api/nodes", owner1,
		gin.H{"deviceId": "1A2B3C01", "name": "Soil probe"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Owner 2 sees none of owner 1's devices and cannot assign to their
	// hub; the hub is simply not found.
	w = doJSON(router, http.MethodGet, "/api/hubs", owner2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/hubs/foxsense-001/assignments", owner2,
		gin.H{"nodeId": "1A2B3C01"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/api/hubs/foxsense-001/assignments", owner2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
