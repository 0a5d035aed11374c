package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"foxsense-backend/internal/model"
	"foxsense-backend/internal/mw"
	"foxsense-backend/internal/parse"
)

type createNodeRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

// nodeAssignmentInfo summarizes a node's current assignment for the
// dashboard, naming the hub so conflicts are actionable.
type nodeAssignmentInfo struct {
	AssignmentID   int64     `json:"assignmentId"`
	HubDeviceID    string    `json:"hubDeviceId"`
	HubName        string    `json:"hubName"`
	LogicalAddress int       `json:"logicalAddress"`
	PairingState   string    `json:"pairingState"`
	AssignedAt     time.Time `json:"assignedAt"`
}

// NodeResponse represents the API response for a single sensor node.
type NodeResponse struct {
	ID                int64               `json:"id"`
	DeviceID          string              `json:"deviceId"`
	Name              string              `json:"name"`
	Location          string              `json:"location"`
	CurrentAssignment *nodeAssignmentInfo `json:"currentAssignment"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// CreateNode handles POST /api/nodes. The node id is validated and
// canonicalized to uppercase before it is stored.
func (h *Handler) CreateNode(c *gin.Context) {
	var req createNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deviceID, err := parse.NodeID(req.DeviceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := h.store.CreateNode(c.Request.Context(), mw.OwnerID(c), deviceID, req.Name, req.Location)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

// ListNodes handles GET /api/nodes, returning the caller's sensor nodes
// with their current assignment, if any.
func (h *Handler) ListNodes(c *gin.Context) {
	nodes, err := h.store.ListNodes(c.Request.Context(), mw.OwnerID(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve nodes"})
		return
	}

	nodeIDs := make([]int64, len(nodes))
	for i, n := range nodes {
		nodeIDs[i] = n.ID
	}

	var active []model.Assignment
	if len(nodeIDs) > 0 {
		if err := h.store.DB().WithContext(c.Request.Context()).
			Preload("Hub").
			Where("node_id IN ? AND unassigned_at IS NULL", nodeIDs).
			Find(&active).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve assignments"})
			return
		}
	}

	activeMap := make(map[int64]model.Assignment, len(active))
	for _, a := range active {
		activeMap[a.NodeID] = a
	}

	responses := make([]NodeResponse, 0, len(nodes))
	for _, node := range nodes {
		resp := NodeResponse{
			ID:        node.ID,
			DeviceID:  node.DeviceID,
			Name:      node.Name,
			Location:  node.Location,
			CreatedAt: node.CreatedAt,
		}
		if a, ok := activeMap[node.ID]; ok {
			resp.CurrentAssignment = &nodeAssignmentInfo{
				AssignmentID:   a.ID,
				HubDeviceID:    a.Hub.DeviceID,
				HubName:        a.Hub.Name,
				LogicalAddress: a.LogicalAddress,
				PairingState:   a.PairingState,
				AssignedAt:     a.AssignedAt,
			}
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}
