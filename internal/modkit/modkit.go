package modkit

import (
	phttp "tariffsync/internal/platform/net/http"
)

// Module is the common surface for service modules
type Module interface {
	// Name returns the module name used in logs
	Name() string
	// Ports returns a module specific port set for cross wiring
	Ports() any
}

// Mounter is implemented by modules that expose ops routes
type Mounter interface {
	MountRoutes(r phttp.Router)
}

// MountAll mounts every module that implements Mounter and returns the names mounted
func MountAll(r phttp.Router, mods ...Module) []string {
	var names []string
	for _, m := range mods {
		if mt, ok := m.(Mounter); ok {
			mt.MountRoutes(r)
			names = append(names, m.Name())
		}
	}
	return names
}
