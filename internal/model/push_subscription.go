package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// A subscription is linked to the hubs whose pairing events the owner
// wants to be notified about.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Hubs []*Hub `gorm:"many2many:subscription_hub_mapping;"`
}
