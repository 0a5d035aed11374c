package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"foxsense-backend/internal/model"
	"foxsense-backend/internal/mw"
	"foxsense-backend/internal/parse"
)

// AssignmentResponse is the flattened structure for assignment rows.
type AssignmentResponse struct {
	ID             int64      `json:"id"`
	HubDeviceID    string     `json:"hubDeviceId,omitempty"`
	NodeDeviceID   string     `json:"nodeDeviceId,omitempty"`
	LogicalAddress int        `json:"logicalAddress"`
	PairingState   string     `json:"pairingState"`
	AssignedAt     time.Time  `json:"assignedAt"`
	UnassignedAt   *time.Time `json:"unassignedAt"`
}

func assignmentResponse(a model.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:             a.ID,
		HubDeviceID:    a.Hub.DeviceID,
		NodeDeviceID:   a.Node.DeviceID,
		LogicalAddress: a.LogicalAddress,
		PairingState:   a.PairingState,
		AssignedAt:     a.AssignedAt,
		UnassignedAt:   a.UnassignedAt,
	}
}

type createAssignmentRequest struct {
	NodeID string `json:"nodeId" binding:"required"`
}

// CreateAssignment handles POST /api/hubs/:hub_id/assignments. A 409
// response names the hub currently holding the node so the operator can
// unassign it first.
func (h *Handler) CreateAssignment(c *gin.Context) {
	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nodeID, err := parse.NodeID(req.NodeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.store.CreateAssignment(c.Request.Context(), c.Param("hub_id"), nodeID, mw.OwnerID(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignmentResponse(*a))
}

// RetireAssignment handles DELETE /api/assignments/:id. Retirement is
// terminal: the row stays in the history and is never mutated again.
func (h *Handler) RetireAssignment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	a, err := h.store.RetireAssignment(c.Request.Context(), id, mw.OwnerID(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignmentResponse(*a))
}

// ListHubAssignments handles GET /api/hubs/:hub_id/assignments,
// returning the hub's active roster ordered by assignment age.
func (h *Handler) ListHubAssignments(c *gin.Context) {
	hub, err := h.store.GetHubByDeviceID(c.Request.Context(), c.Param("hub_id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if hub.OwnerID != mw.OwnerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	assignments, err := h.store.ListActiveForHub(c.Request.Context(), hub.DeviceID)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		a.Hub = *hub
		responses = append(responses, assignmentResponse(a))
	}
	c.JSON(http.StatusOK, responses)
}

// ListNodeHistory handles GET /api/nodes/:node_id/assignments,
// returning the node's full assignment history, newest first.
func (h *Handler) ListNodeHistory(c *gin.Context) {
	nodeID, err := parse.NodeID(c.Param("node_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignments, err := h.store.ListHistoryForNode(c.Request.Context(), nodeID, mw.OwnerID(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}

	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		a.Node.DeviceID = nodeID
		responses = append(responses, assignmentResponse(a))
	}
	c.JSON(http.StatusOK, responses)
}
