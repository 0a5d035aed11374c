package device

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"foxsense-backend/internal/identity"
	"foxsense-backend/internal/model"
	"foxsense-backend/internal/notification"
	"foxsense-backend/internal/pairing"
	"foxsense-backend/internal/parse"
	"foxsense-backend/internal/store"
)

// Config is the roster a hub downloads on each poll: its radio token
// and the active nodes with their compact addressing.
type Config struct {
	HubID       string      `json:"hubId"`
	HubToken    uint32      `json:"hubToken"`
	HubTokenHex string      `json:"hubTokenHex"`
	Nodes       []NodeEntry `json:"nodes"`
}

// NodeEntry describes one active assignment as the hub firmware needs
// it: the textual node id, its 32-bit numeric form, and the per-hub
// logical address used on the radio link.
type NodeEntry struct {
	NodeID             string `json:"nodeId"`
	NumericNodeAddress uint32 `json:"numericNodeAddress"`
	LogicalAddress     int    `json:"logicalAddress"`
	PairingState       string `json:"pairingState"`
	Name               string `json:"name"`
}

// Service is the boundary component hub firmware talks to. Hubs cannot
// hold interactive sessions; every call authenticates with the hub's
// shared secret instead.
type Service struct {
	store store.Store
	pool  *notification.WorkerPool // nil when web push is disabled
}

// NewService creates a new device-facing service.
func NewService(s store.Store, pool *notification.WorkerPool) *Service {
	return &Service{store: s, pool: pool}
}

// authenticate resolves the hub and verifies the presented secret. An
// unknown hub id and a wrong secret produce the same error so valid hub
// ids cannot be probed from the device endpoints.
func (s *Service) authenticate(ctx context.Context, hubDeviceID, secret string) (*model.Hub, error) {
	hub, err := s.store.GetHubByDeviceID(ctx, hubDeviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(hub.Secret), []byte(secret)) != 1 {
		return nil, store.ErrUnauthorized
	}
	return hub, nil
}

// GetConfig authenticates the hub and assembles its current roster,
// ordered by assignment age.
func (s *Service) GetConfig(ctx context.Context, hubDeviceID, secret string) (*Config, error) {
	hub, err := s.authenticate(ctx, hubDeviceID, secret)
	if err != nil {
		return nil, err
	}

	assignments, err := s.store.ListActiveForHub(ctx, hub.DeviceID)
	if err != nil {
		return nil, err
	}

	token := identity.HubToken(hub.DeviceID)
	cfg := &Config{
		HubID:       hub.DeviceID,
		HubToken:    token,
		HubTokenHex: identity.TokenHex(token),
		Nodes:       make([]NodeEntry, 0, len(assignments)),
	}
	for _, a := range assignments {
		addr, err := parse.NodeAddress(a.Node.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("node %d has malformed device id: %w", a.NodeID, err)
		}
		cfg.Nodes = append(cfg.Nodes, NodeEntry{
			NodeID:             a.Node.DeviceID,
			NumericNodeAddress: addr,
			LogicalAddress:     a.LogicalAddress,
			PairingState:       a.PairingState,
			Name:               a.Node.Name,
		})
	}
	return cfg, nil
}

// ReportPairing authenticates the hub, validates the reported state and
// applies the transition to the active assignment for the node. The
// first transition to PAIRED dispatches a push notification to the
// hub's subscribers.
func (s *Service) ReportPairing(ctx context.Context, hubDeviceID, secret, nodeID, status string) (*model.Assignment, error) {
	hub, err := s.authenticate(ctx, hubDeviceID, secret)
	if err != nil {
		return nil, err
	}

	canonical, err := parse.NodeID(nodeID)
	if err != nil {
		return nil, err
	}
	target, err := pairing.ParseTarget(status)
	if err != nil {
		return nil, err
	}

	a, changed, err := s.store.ReportPairing(ctx, hub.DeviceID, canonical, target)
	if err != nil {
		return nil, err
	}
	if changed && target == pairing.StatePaired && s.pool != nil {
		s.pool.Dispatch(a.ID)
	}
	return a, nil
}
