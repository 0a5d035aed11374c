package model

import "time"

// Assignment links one SensorNode to one Hub for an interval of time.
// A nil UnassignedAt marks the assignment active; once set, the row is
// retired and never mutated again. The partial unique indexes enforce
// the two active-set invariants at the database level: a node holds at
// most one active assignment, and a hub's active logical addresses
// never collide.
type Assignment struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	HubID          int64      `gorm:"not null;index;uniqueIndex:idx_active_hub_addr,where:unassigned_at IS NULL" json:"-"`
	NodeID         int64      `gorm:"not null;index;uniqueIndex:idx_active_node,where:unassigned_at IS NULL" json:"-"`
	LogicalAddress int        `gorm:"not null;uniqueIndex:idx_active_hub_addr,where:unassigned_at IS NULL" json:"logicalAddress"`
	PairingState   string     `gorm:"size:16;not null" json:"pairingState"`
	AssignedAt     time.Time  `gorm:"not null;index" json:"assignedAt"`
	UnassignedAt   *time.Time `gorm:"index" json:"unassignedAt"`

	// Associations
	Hub  Hub        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Node SensorNode `gorm:"foreignKey:NodeID;constraint:OnDelete:CASCADE" json:"-"`
}
