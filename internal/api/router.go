package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"foxsense-backend/config"
	"foxsense-backend/internal/device"
	"foxsense-backend/internal/mw"
	"foxsense-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, deviceSvc *device.Service, webpushOptions *webpush.Options, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, deviceSvc, webpushOptions)

	// Rate limit: hubs poll on a timer, dashboards are bursty.
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	// Cache: only for pure-function responses (hub token rendering).
	cacheStore := cache.New(5*time.Minute, 10*time.Minute)
	caching := mw.Cache(cacheStore, 5*time.Minute)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Device-facing endpoints: the hub authenticates with its shared
		// secret on every call, no session involved.
		api.GET("/devices/config/:hub_id", handler.GetDeviceConfig)
		api.POST("/devices/config/:hub_id/pairing-result", handler.ReportPairingResult)

		// The hub token is a pure function of the id; no auth, cacheable.
		api.GET("/hubs/:hub_id/token", caching, handler.GetHubToken)

		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		// Owner-facing endpoints require a bearer token from the account
		// service.
		owner := api.Group("")
		owner.Use(mw.OwnerAuth(cfg.Auth.JWTSecret))
		{
			owner.POST("/hubs", handler.CreateHub)
			owner.GET("/hubs", handler.ListHubs)
			owner.POST("/nodes", handler.CreateNode)
			owner.GET("/nodes", handler.ListNodes)

			owner.POST("/hubs/:hub_id/assignments", handler.CreateAssignment)
			owner.GET("/hubs/:hub_id/assignments", handler.ListHubAssignments)
			owner.DELETE("/assignments/:id", handler.RetireAssignment)
			owner.GET("/nodes/:node_id/assignments", handler.ListNodeHistory)

			owner.GET("/subscriptions", handler.GetSubscription)
			owner.PUT("/subscriptions", handler.PutSubscription)
			owner.DELETE("/subscriptions", handler.DeleteSubscription)
		}
	}

	return r
}
