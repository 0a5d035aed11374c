package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"foxsense-backend/internal/alloc"
	"foxsense-backend/internal/model"
	"foxsense-backend/internal/pairing"
)

// Store defines the persistence operations for hubs, sensor nodes and
// the assignment ledger linking them.
type Store interface {
	DB() *gorm.DB

	CreateHub(ctx context.Context, ownerID int64, deviceID, name, location, secret string) (*model.Hub, error)
	ListHubs(ctx context.Context, ownerID int64) ([]model.Hub, error)
	GetHubByDeviceID(ctx context.Context, deviceID string) (*model.Hub, error)

	CreateNode(ctx context.Context, ownerID int64, deviceID, name, location string) (*model.SensorNode, error)
	ListNodes(ctx context.Context, ownerID int64) ([]model.SensorNode, error)

	CreateAssignment(ctx context.Context, hubDeviceID, nodeDeviceID string, ownerID int64) (*model.Assignment, error)
	RetireAssignment(ctx context.Context, assignmentID, ownerID int64) (*model.Assignment, error)
	ListActiveForHub(ctx context.Context, hubDeviceID string) ([]model.Assignment, error)
	ListHistoryForNode(ctx context.Context, nodeDeviceID string, ownerID int64) ([]model.Assignment, error)
	FindActiveForHubAndNode(ctx context.Context, hubDeviceID, nodeDeviceID string) (*model.Assignment, error)
	ReportPairing(ctx context.Context, hubDeviceID, nodeDeviceID string, target pairing.State) (*model.Assignment, bool, error)
}

// Bounded retry for transient transaction conflicts between concurrent
// writers. A caller never sees an error caused purely by a race it did
// not create: the losing transaction re-reads committed state and either
// succeeds with a fresh logical address or reports the real conflict.
const (
	writeRetries = 3
	retryBackoff = 25 * time.Millisecond
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// --- Hubs ---

func (s *gormStore) CreateHub(ctx context.Context, ownerID int64, deviceID, name, location, secret string) (*model.Hub, error) {
	hub := model.Hub{
		DeviceID: deviceID,
		OwnerID:  ownerID,
		Name:     name,
		Location: location,
		Secret:   secret,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Hub{}).Where("device_id = ?", deviceID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateDevice
		}
		return tx.Create(&hub).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateDevice
		}
		return nil, err
	}
	return &hub, nil
}

func (s *gormStore) ListHubs(ctx context.Context, ownerID int64) ([]model.Hub, error) {
	var hubs []model.Hub
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&hubs).Error
	return hubs, err
}

func (s *gormStore) GetHubByDeviceID(ctx context.Context, deviceID string) (*model.Hub, error) {
	var hub model.Hub
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&hub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hub, nil
}

// --- Sensor nodes ---

func (s *gormStore) CreateNode(ctx context.Context, ownerID int64, deviceID, name, location string) (*model.SensorNode, error) {
	node := model.SensorNode{
		DeviceID: deviceID,
		OwnerID:  ownerID,
		Name:     name,
		Location: location,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.SensorNode{}).Where("device_id = ?", deviceID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateDevice
		}
		return tx.Create(&node).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateDevice
		}
		return nil, err
	}
	return &node, nil
}

func (s *gormStore) ListNodes(ctx context.Context, ownerID int64) ([]model.SensorNode, error) {
	var nodes []model.SensorNode
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&nodes).Error
	return nodes, err
}

// --- Assignments ---

// CreateAssignment links a node to a hub. It fails with a ConflictError
// if the node already holds an active assignment anywhere, and
// allocates the smallest free logical address in the hub's active set.
// The check-allocate-insert sequence runs in one transaction; the
// partial unique indexes on the assignments table backstop it against
// writers the transaction could not see.
func (s *gormStore) CreateAssignment(ctx context.Context, hubDeviceID, nodeDeviceID string, ownerID int64) (*model.Assignment, error) {
	var out *model.Assignment
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}
		out, err = s.tryCreateAssignment(ctx, hubDeviceID, nodeDeviceID, ownerID)
		if err == nil || !isRetryable(err) {
			return out, err
		}
	}
	return nil, fmt.Errorf("create assignment: retries exhausted: %w", err)
}

func (s *gormStore) tryCreateAssignment(ctx context.Context, hubDeviceID, nodeDeviceID string, ownerID int64) (*model.Assignment, error) {
	var created model.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hub model.Hub
		if err := tx.Where("device_id = ? AND owner_id = ?", hubDeviceID, ownerID).First(&hub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var node model.SensorNode
		if err := tx.Where("device_id = ? AND owner_id = ?", nodeDeviceID, ownerID).First(&node).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// A node belongs to at most one hub at a time.
		var active model.Assignment
		err := tx.Preload("Hub").
			Where("node_id = ? AND unassigned_at IS NULL", node.ID).
			First(&active).Error
		if err == nil {
			return &ConflictError{HubDeviceID: active.Hub.DeviceID}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var used []int
		if err := tx.Model(&model.Assignment{}).
			Where("hub_id = ? AND unassigned_at IS NULL", hub.ID).
			Pluck("logical_address", &used).Error; err != nil {
			return err
		}
		addr, err := alloc.Next(used)
		if err != nil {
			return err
		}

		created = model.Assignment{
			HubID:          hub.ID,
			NodeID:         node.ID,
			LogicalAddress: addr,
			PairingState:   string(pairing.StatePending),
			AssignedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		created.Hub = hub
		created.Node = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// RetireAssignment sets unassigned_at, freeing the logical address for
// future allocations on the hub. Ownership derives from the hub's
// owner. A retired row is immutable; retiring twice fails.
func (s *gormStore) RetireAssignment(ctx context.Context, assignmentID, ownerID int64) (*model.Assignment, error) {
	var retired model.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.Assignment
		if err := tx.Preload("Hub").Preload("Node").First(&a, assignmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if a.Hub.OwnerID != ownerID {
			return ErrNotFound
		}
		if a.UnassignedAt != nil {
			return ErrAlreadyRetired
		}

		now := time.Now().UTC()
		res := tx.Model(&model.Assignment{}).
			Where("id = ? AND unassigned_at IS NULL", a.ID).
			Update("unassigned_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent retire won between the read and the update.
			return ErrAlreadyRetired
		}
		a.UnassignedAt = &now
		retired = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &retired, nil
}

// ListActiveForHub returns the hub's active assignments with nodes
// preloaded, ordered by assignment age. This is the roster order the
// hub firmware sees.
func (s *gormStore) ListActiveForHub(ctx context.Context, hubDeviceID string) ([]model.Assignment, error) {
	hub, err := s.GetHubByDeviceID(ctx, hubDeviceID)
	if err != nil {
		return nil, err
	}
	var assignments []model.Assignment
	err = s.db.WithContext(ctx).Preload("Node").
		Where("hub_id = ? AND unassigned_at IS NULL", hub.ID).
		Order("assigned_at ASC").
		Find(&assignments).Error
	return assignments, err
}

// ListHistoryForNode returns the node's full assignment history, newest
// first. Retired rows are part of the record and are never deleted.
func (s *gormStore) ListHistoryForNode(ctx context.Context, nodeDeviceID string, ownerID int64) ([]model.Assignment, error) {
	var node model.SensorNode
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND owner_id = ?", nodeDeviceID, ownerID).
		First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var assignments []model.Assignment
	err = s.db.WithContext(ctx).Preload("Hub").
		Where("node_id = ?", node.ID).
		Order("assigned_at DESC").
		Find(&assignments).Error
	return assignments, err
}

func (s *gormStore) FindActiveForHubAndNode(ctx context.Context, hubDeviceID, nodeDeviceID string) (*model.Assignment, error) {
	var a model.Assignment
	err := s.db.WithContext(ctx).
		Joins("Hub").Joins("Node").
		Where("\"Hub\".device_id = ? AND \"Node\".device_id = ? AND assignments.unassigned_at IS NULL", hubDeviceID, nodeDeviceID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ReportPairing applies a pairing transition to the active assignment
// between the hub and the node. The returned bool reports whether the
// state actually changed, so the caller can suppress notifications for
// idempotent re-reports. Retired assignments are never touched; from
// the hub's perspective no active assignment exists for that pair.
func (s *gormStore) ReportPairing(ctx context.Context, hubDeviceID, nodeDeviceID string, target pairing.State) (*model.Assignment, bool, error) {
	var updated model.Assignment
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hub model.Hub
		if err := tx.Where("device_id = ?", hubDeviceID).First(&hub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var node model.SensorNode
		if err := tx.Where("device_id = ?", nodeDeviceID).First(&node).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var a model.Assignment
		err := tx.Where("hub_id = ? AND node_id = ? AND unassigned_at IS NULL", hub.ID, node.ID).
			First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		next, err := pairing.Transition(pairing.State(a.PairingState), target)
		if err != nil {
			return err
		}
		if next != pairing.State(a.PairingState) {
			res := tx.Model(&model.Assignment{}).
				Where("id = ? AND unassigned_at IS NULL", a.ID).
				Update("pairing_state", string(next))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Retired between read and write; report what the hub
				// would observe on a fresh read.
				return ErrNotFound
			}
			a.PairingState = string(next)
			changed = true
		}
		a.Hub = hub
		a.Node = node
		updated = a
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &updated, changed, nil
}

// --- Error classification ---

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}

// isRetryable reports whether a failed write should be retried against
// fresh committed state: unique-index violations raced by a concurrent
// writer, serialization failures, and sqlite busy errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if isUniqueViolation(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40001") || // serialization failure
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
