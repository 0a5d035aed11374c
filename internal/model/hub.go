package model

import "time"

// Hub represents a communication hub (the cellular/LTE unit relaying
// sensor data). DeviceID is the human-readable identifier printed on the
// unit, e.g. "foxsense-001".
type Hub struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"uniqueIndex;size:64;not null" json:"deviceId"`
	OwnerID  int64  `gorm:"index;not null" json:"-"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Location string `gorm:"size:256" json:"location"`
	// Shared secret presented by the hub firmware on every call. Never
	// serialized; returned exactly once at registration time.
	Secret    string    `gorm:"size:64;not null" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Assignments []Assignment `gorm:"foreignKey:HubID" json:"-"`
}
