package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"foxsense-backend/internal/alloc"
	"foxsense-backend/internal/device"
	"foxsense-backend/internal/pairing"
	"foxsense-backend/internal/parse"
	"foxsense-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	device  *device.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, deviceSvc *device.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		device:  deviceSvc,
		webpush: webpushOptions,
	}
}

// writeStoreError maps store and validation errors onto HTTP statuses
// for the owner-facing endpoints.
func writeStoreError(c *gin.Context, err error) {
	var conflict *store.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.Is(err, store.ErrDuplicateDevice):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, alloc.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrAlreadyRetired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, parse.ErrBadNodeID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// writeDeviceError maps errors onto HTTP statuses for the device-facing
// endpoints. An unknown hub id and a secret mismatch produce the same
// response so firmware credentials cannot be probed for valid hub ids.
func writeDeviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown hub or invalid secret"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, parse.ErrBadNodeID), errors.Is(err, pairing.ErrUnknownState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, pairing.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
