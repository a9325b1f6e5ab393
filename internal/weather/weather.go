// Package weather resolves a district name to current weather observations.
package weather

import (
	"context"
	"strings"
	"sync"
)

// Snapshot is the current weather for a district. Any field may be absent,
// in which case callers fall back to their own values.
type Snapshot struct {
	District string   `json:"district,omitempty"`
	Temp     *float64 `json:"temp,omitempty"`
	Humidity *float64 `json:"humidity,omitempty"`
	Rainfall *float64 `json:"rainfall,omitempty"`
}

// TempOr returns the temperature, or def when absent
func (s Snapshot) TempOr(def float64) float64 {
	if s.Temp != nil {
		return *s.Temp
	}
	return def
}

// HumidityOr returns the relative humidity, or def when absent
func (s Snapshot) HumidityOr(def float64) float64 {
	if s.Humidity != nil {
		return *s.Humidity
	}
	return def
}

// RainfallOr returns the rainfall, or def when absent
func (s Snapshot) RainfallOr(def float64) float64 {
	if s.Rainfall != nil {
		return *s.Rainfall
	}
	return def
}

// Lookup resolves a district to a Snapshot.
type Lookup interface {
	Lookup(ctx context.Context, district string) (Snapshot, error)
}

// LookupFunc adapts a function to the Lookup interface
type LookupFunc func(ctx context.Context, district string) (Snapshot, error)

func (f LookupFunc) Lookup(ctx context.Context, district string) (Snapshot, error) {
	return f(ctx, district)
}

// Float returns a pointer to v, for building snapshots
func Float(v float64) *float64 {
	return &v
}

// Static serves fixed snapshots, keyed case-insensitively by district.
// Unknown districts yield an empty snapshot so callers use their defaults.
type Static struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewStatic creates a Static lookup from district → snapshot
func NewStatic(snapshots map[string]Snapshot) *Static {
	s := &Static{snapshots: make(map[string]Snapshot, len(snapshots))}
	for d, snap := range snapshots {
		s.Set(d, snap)
	}
	return s
}

// Set replaces the snapshot for a district
func (s *Static) Set(district string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.District = district
	s.snapshots[normalize(district)] = snap
}

func (s *Static) Lookup(ctx context.Context, district string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[normalize(district)]
	if !ok {
		return Snapshot{District: district}, nil
	}
	return snap, nil
}

func normalize(district string) string {
	return strings.ToLower(strings.TrimSpace(district))
}
