package registry

import (
	"context"
	"os"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/validate"
	"tariffsync/internal/services/propagation/domain"

	"gopkg.in/yaml.v3"
)

// File reads target ids from a YAML document on every call:
//
//	targets:
//	  - 1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms
//	  - 1mHIWnDvW9cALRMq9OdNfRwjvthCUFHrFh2mxf8b9bQ4
type File struct{ path string }

var _ domain.Registry = (*File)(nil)

// NewFile returns a registry backed by path
func NewFile(path string) *File { return &File{path: path} }

type fileDoc struct {
	Targets []string `yaml:"targets" validate:"required,min=1,dive,required"`
}

// Targets implements domain.Registry in file order
func (f *File) Targets(context.Context) ([]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "read targets file %s", f.path)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "parse targets file %s", f.path)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "targets file %s", f.path)
	}
	return nonEmpty(doc.Targets, f.path)
}
