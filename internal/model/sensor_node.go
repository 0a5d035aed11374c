package model

import "time"

// SensorNode represents a radio sensor device reporting temperature and
// humidity through a hub. DeviceID is the 8-hex-character id derived
// from the node's radio hardware address, stored uppercase.
type SensorNode struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	DeviceID  string    `gorm:"uniqueIndex;size:8;not null" json:"deviceId"`
	OwnerID   int64     `gorm:"index;not null" json:"-"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Location  string    `gorm:"size:256" json:"location"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Assignments []Assignment `gorm:"foreignKey:NodeID" json:"-"`
}
