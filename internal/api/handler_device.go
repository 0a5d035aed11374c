package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDeviceConfig handles GET /api/devices/config/:hub_id. This is the
// endpoint hub firmware polls for its roster; it authenticates with the
// hub's shared secret, not a session.
func (h *Handler) GetDeviceConfig(c *gin.Context) {
	secret := c.Query("secret")
	if secret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}

	cfg, err := h.device.GetConfig(c.Request.Context(), c.Param("hub_id"), secret)
	if err != nil {
		writeDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type pairingResultRequest struct {
	NodeID string `json:"nodeId" binding:"required"`
	Status string `json:"status" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// ReportPairingResult handles POST /api/devices/config/:hub_id/pairing-result.
// Firmware treats any error response as "retry later", so re-reports of
// an already-applied state succeed as no-ops.
func (h *Handler) ReportPairingResult(c *gin.Context) {
	var req pairingResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.device.ReportPairing(c.Request.Context(), c.Param("hub_id"), req.Secret, req.NodeID, req.Status)
	if err != nil {
		writeDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"assignmentId": a.ID,
		"nodeId":       a.Node.DeviceID,
		"pairingState": a.PairingState,
	})
}
