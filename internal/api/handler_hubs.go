package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"foxsense-backend/internal/identity"
	"foxsense-backend/internal/model"
	"foxsense-backend/internal/mw"
)

type createHubRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

// HubResponse represents the API response for a single hub.
type HubResponse struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"deviceId"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	ActiveNodes int64     `json:"activeNodes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateHub handles POST /api/hubs. The shared secret the hub firmware
// will present is provisioned here and returned exactly once; it is
// never listed again.
func (h *Handler) CreateHub(c *gin.Context) {
	var req createHubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	secret := uuid.NewString()
	hub, err := h.store.CreateHub(c.Request.Context(), mw.OwnerID(c), req.DeviceID, req.Name, req.Location, secret)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"hub": HubResponse{
			ID:        hub.ID,
			DeviceID:  hub.DeviceID,
			Name:      hub.Name,
			Location:  hub.Location,
			CreatedAt: hub.CreatedAt,
		},
		"secret": secret,
	})
}

// ListHubs handles GET /api/hubs, returning the caller's hubs with the
// size of each active roster.
func (h *Handler) ListHubs(c *gin.Context) {
	hubs, err := h.store.ListHubs(c.Request.Context(), mw.OwnerID(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve hubs"})
		return
	}

	// One aggregate query for the active-assignment counts.
	type aggRow struct {
		HubID       int64
		ActiveNodes int64
	}
	var aggs []aggRow
	if err := h.store.DB().WithContext(c.Request.Context()).
		Model(&model.Assignment{}).
		Select("hub_id as hub_id, COUNT(*) as active_nodes").
		Where("unassigned_at IS NULL").
		Group("hub_id").
		Scan(&aggs).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate assignments"})
		return
	}

	aggMap := make(map[int64]int64, len(aggs))
	for _, a := range aggs {
		aggMap[a.HubID] = a.ActiveNodes
	}

	responses := make([]HubResponse, 0, len(hubs))
	for _, hub := range hubs {
		responses = append(responses, HubResponse{
			ID:          hub.ID,
			DeviceID:    hub.DeviceID,
			Name:        hub.Name,
			Location:    hub.Location,
			ActiveNodes: aggMap[hub.ID],
			CreatedAt:   hub.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetHubToken handles GET /api/hubs/:hub_id/token. The token is a pure
// function of the textual id, so the endpoint computes it without a
// lookup and the response is cacheable.
func (h *Handler) GetHubToken(c *gin.Context) {
	token := identity.HubToken(c.Param("hub_id"))
	c.JSON(http.StatusOK, gin.H{
		"hubId":       c.Param("hub_id"),
		"hubToken":    token,
		"hubTokenHex": identity.TokenHex(token),
	})
}
