// Package module mounts the ops endpoints
package module

import (
	"time"

	phttp "tariffsync/internal/platform/net/http"
	opshttp "tariffsync/internal/services/ops/http"
)

// Module implements modkit.Module and modkit.Mounter
type Module struct {
	deps opshttp.Deps
}

// New builds the ops module; StartedAt defaults to now
func New(d opshttp.Deps) *Module {
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	return &Module{deps: d}
}

// MountRoutes satisfies modkit.Mounter
func (m *Module) MountRoutes(r phttp.Router) { opshttp.Register(r, m.deps) }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "ops" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return nil }
