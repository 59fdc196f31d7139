// Package module wires the tariffs service
package module

import (
	"strconv"
	"time"

	"tariffsync/internal/adapters/tariffapi"
	"tariffsync/internal/modkit"
	"tariffsync/internal/modkit/repokit"
	"tariffsync/internal/services/tariffs/domain"
	"tariffsync/internal/services/tariffs/repo"
	"tariffsync/internal/services/tariffs/service"
)

// Ports exposed by the tariffs module
type Ports struct {
	Cycle domain.CyclePort
	Query domain.QueryPort
}

// Module implements the tariffs service module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// Option tweaks construction, mostly for tests
type Option func(*build)

type build struct {
	src domain.SourcePort
}

// WithSource replaces the HTTP source client
func WithSource(src domain.SourcePort) Option { return func(b *build) { b.src = src } }

// New constructs the tariffs module; pub receives every reconciled batch
func New(deps modkit.Deps, pub domain.PublisherPort, options ...Option) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	var b build
	for _, o := range options {
		o(&b)
	}
	if b.src == nil {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		b.src = tariffapi.NewClient(tariffapi.Options{
			BaseURL:    opts.APIURL,
			Token:      opts.APIKey,
			Timeout:    opts.APITimeout,
			MaxRetries: opts.APIRetries,
			RetryBase:  opts.RetryBase,
		})
	}

	db := repokit.WithBeginHooks(deps.PG, repokit.SetLocal(txSettings(opts)))
	svc := service.New(db, repo.NewPG(), b.src, pub, deps.Metrics, service.Config{Location: opts.Location})

	m := &Module{deps: deps, opts: opts}
	m.ports = Ports{Cycle: svc, Query: svc}
	return m, nil
}

func txSettings(o Options) map[string]string {
	out := map[string]string{}
	if o.LockTimeout > 0 {
		out["lock_timeout"] = ms(o.LockTimeout)
	}
	if o.StatementTimeout > 0 {
		out["statement_timeout"] = ms(o.StatementTimeout)
	}
	return out
}

func ms(d time.Duration) string { return strconv.FormatInt(d.Milliseconds(), 10) }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "tariffs" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Cycle returns the typed cycle port
func (m *Module) Cycle() domain.CyclePort { return m.ports.Cycle }

// Query returns the typed read port
func (m *Module) Query() domain.QueryPort { return m.ports.Query }
