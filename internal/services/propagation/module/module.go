// Package module wires the propagation queue, publisher, registry and provisioner
package module

import (
	"context"

	"tariffsync/internal/adapters/kafka"
	"tariffsync/internal/adapters/sheets"
	"tariffsync/internal/modkit"
	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/services/propagation/domain"
	"tariffsync/internal/services/propagation/journal"
	"tariffsync/internal/services/propagation/registry"
	"tariffsync/internal/services/propagation/service"
)

// Ports exposed by the propagation module
type Ports struct {
	Queue     domain.QueuePort
	Publisher domain.PublisherPort
	Registry  domain.Registry
}

// Module implements the propagation service module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports

	queue    *service.Queue
	docs     domain.DocumentClient
	writer   domain.RegistryWriter
	journal  *journal.CH
	producer *kafka.Producer
}

// Option tweaks construction, mostly for tests
type Option func(*build)

type build struct {
	docs     domain.DocumentClient
	registry domain.Registry
	stream   domain.Stream
}

// WithDocuments replaces the Google Sheets client
func WithDocuments(d domain.DocumentClient) Option { return func(b *build) { b.docs = d } }

// WithRegistry replaces the configured target registry
func WithRegistry(r domain.Registry) Option { return func(b *build) { b.registry = r } }

// WithStream replaces the Kafka producer
func WithStream(s domain.Stream) Option { return func(b *build) { b.stream = s } }

// New constructs the propagation module. The queue worker is not started; run Queue().Run
func New(ctx context.Context, deps modkit.Deps, options ...Option) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var b build
	for _, o := range options {
		o(&b)
	}

	m := &Module{deps: deps, opts: opts}
	if deps.PG != nil {
		m.writer = registry.NewPG(deps.PG)
	}

	if b.docs == nil {
		c, err := sheets.New(ctx, sheets.Options{
			Email:      opts.GoogleEmail,
			PrivateKey: opts.GooglePrivateKey,
			Timeout:    opts.GoogleTimeout,
		})
		if err != nil {
			return nil, err
		}
		b.docs = c
	}
	m.docs = b.docs

	if b.registry == nil {
		reg, err := m.buildRegistry()
		if err != nil {
			return nil, err
		}
		b.registry = reg
	}

	if b.stream == nil && len(opts.KafkaBrokers) > 0 {
		p, err := kafka.New(kafka.Options{Brokers: opts.KafkaBrokers, Topic: opts.KafkaTopic})
		if err != nil {
			return nil, err
		}
		m.producer = p
		b.stream = p
	}

	pub := service.NewPublisher(b.docs, b.registry, deps.Metrics, service.PublisherConfig{
		Sheet:    opts.Sheet,
		Location: opts.Location,
	}).WithStream(b.stream)
	if j := journal.NewCH(deps.CH); j != nil {
		m.journal = j
		pub.WithJournal(j)
	}

	m.queue = service.NewQueue(pub, deps.Metrics, service.QueueConfig{
		Depth:        opts.QueueDepth,
		DrainTimeout: opts.DrainTimeout,
	})
	m.ports = Ports{Queue: m.queue, Publisher: pub, Registry: b.registry}
	return m, nil
}

func (m *Module) buildRegistry() (domain.Registry, error) {
	var reg domain.Registry
	switch {
	case m.opts.TargetsFile != "":
		reg = registry.NewFile(m.opts.TargetsFile)
	case m.deps.PG != nil:
		reg = registry.NewPG(m.deps.PG)
	default:
		return nil, perr.Configurationf("no target registry: set CORE_PROPAGATION_TARGETS_FILE or SERVICE_PGSQL_DBURL")
	}
	if m.opts.CacheTargets {
		reg = registry.NewCached(reg)
	}
	return reg, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "propagation" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Queue returns the worker queue; its Run must be started by the caller
func (m *Module) Queue() *service.Queue { return m.queue }

// Targets returns the registry cache, nil when CORE_PROPAGATION_CACHE_TARGETS is off
// or the registry was injected
func (m *Module) Targets() *registry.Cached {
	c, _ := m.ports.Registry.(*registry.Cached)
	return c
}

// Journal returns the ClickHouse journal, nil when ClickHouse is not configured
func (m *Module) Journal() *journal.CH { return m.journal }

// Provisioner builds a provisioner over the google_tables registry
func (m *Module) Provisioner() (*service.Provisioner, error) {
	if m.writer == nil {
		return nil, perr.Configurationf("provisioning needs SERVICE_PGSQL_DBURL")
	}
	return service.NewProvisioner(m.docs, m.writer, service.ProvisionConfig{
		Sheet:     m.opts.Sheet,
		UserEmail: m.opts.UserEmail,
	}), nil
}

// Close releases the Kafka client
func (m *Module) Close() {
	if m.producer != nil {
		m.producer.Close()
	}
}
