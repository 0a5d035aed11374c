package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"foxsense-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers that notify dashboard browsers
// about completed pairings. Jobs carry assignment ids.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case assignmentID := <-wp.jobs:
			log.Printf("Worker %d processing assignment %d", id, assignmentID)
			wp.sendNotificationsForAssignment(ctx, assignmentID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(assignmentID int64) {
	wp.jobs <- assignmentID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// SetSender replaces the push sender. Tests use this to observe
// deliveries without talking to a push service.
func (wp *WorkerPool) SetSender(sender NotificationSender) {
	wp.sender = sender
}

// sendNotificationsForAssignment fetches the subscriptions watching the
// assignment's hub and notifies each of the completed pairing.
func (wp *WorkerPool) sendNotificationsForAssignment(ctx context.Context, assignmentID int64) {
	var assignment model.Assignment
	if err := wp.db.WithContext(ctx).
		Preload("Hub").Preload("Node").
		First(&assignment, assignmentID).Error; err != nil {
		log.Printf("Error fetching assignment %d: %v", assignmentID, err)
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_hub_mapping shm ON shm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("shm.hub_id = ?", assignment.HubID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for hub %d: %v", assignment.HubID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for assignment %d", len(subscriptions), assignmentID)

	nodeLabel := assignment.Node.DeviceID
	if assignment.Node.Name != "" {
		nodeLabel = assignment.Node.Name
	}
	hubLabel := assignment.Hub.DeviceID
	if assignment.Hub.Name != "" {
		hubLabel = assignment.Hub.Name
	}

	message := fmt.Sprintf("Sensor node %s paired with hub %s", nodeLabel, hubLabel)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == 410 {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
