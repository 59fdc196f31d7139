package service

import (
	"context"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/services/propagation/domain"

	"github.com/google/uuid"
)

// MaxProvision caps how many documents one provisioning run may create
const MaxProvision = 1000

// ProvisionConfig holds provisioning settings
type ProvisionConfig struct {
	Sheet   string
	Rows    int
	Columns int
	// UserEmail is granted writer access to every new document, skipped when blank
	UserEmail string
}

// Provisioner creates target documents and registers them
type Provisioner struct {
	Docs   domain.DocumentClient
	Writer domain.RegistryWriter
	Cfg    ProvisionConfig

	newID func() string
}

// NewProvisioner constructs a Provisioner; docs and writer are required
func NewProvisioner(docs domain.DocumentClient, w domain.RegistryWriter, cfg ProvisionConfig) *Provisioner {
	if docs == nil {
		panic("propagation.Provisioner requires a document client")
	}
	if w == nil {
		panic("propagation.Provisioner requires a registry writer")
	}
	if cfg.Sheet == "" {
		cfg.Sheet = domain.DefaultSheet
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 1000
	}
	if cfg.Columns <= 0 {
		cfg.Columns = len(domain.Header)
	}
	return &Provisioner{Docs: docs, Writer: w, Cfg: cfg, newID: uuid.NewString}
}

// Provision creates n documents titled Stocks_<uuid>, writes the header, registers each id
// and shares it with the configured user. It stops at the first document that cannot be
// created or registered and returns the ids registered so far
func (p *Provisioner) Provision(ctx context.Context, n int) ([]string, error) {
	if n < 1 || n > MaxProvision {
		return nil, perr.WithField(perr.InvalidArgf("count must be between 1 and %d", MaxProvision), "count")
	}
	log := logger.Named("provision")
	if p.Cfg.UserEmail == "" {
		err := perr.Configurationf("USER_EMAIL is not set")
		log.Warn().Err(err).Msg("documents will not be shared")
	}

	ids := make([]string, 0, n)
	for range n {
		title := "Stocks_" + p.newID()
		id, err := p.Docs.CreateDocument(ctx, title, domain.Grid{Sheet: p.Cfg.Sheet, Rows: p.Cfg.Rows, Columns: p.Cfg.Columns})
		if err != nil {
			return ids, publishErr(err, "create "+title)
		}
		if err := p.Docs.WriteRegion(ctx, id, p.Cfg.Sheet, [][]string{append([]string(nil), domain.Header...)}); err != nil {
			return ids, publishErr(err, "write header")
		}
		if err := p.Writer.Register(ctx, id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
		log.Info().Str("document_id", id).Str("title", title).Msg("document provisioned")

		if p.Cfg.UserEmail == "" {
			continue
		}
		if err := p.Docs.GrantAccess(ctx, id, p.Cfg.UserEmail, domain.RoleWriter); err != nil {
			log.Error().Err(err).Str("document_id", id).Msg("grant access failed")
		}
	}
	return ids, nil
}
