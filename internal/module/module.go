// Package module defines the contract for self-registering feature modules.
//
// A module receives an explicit *Builder during setup and registers its pages
// and import directories through the builder's extension points. The builder
// is the only state a module can touch; once the aggregator calls Finish the
// accumulated registrations are folded into an immutable Result.
package module

import (
	"errors"
	"strings"
)

// Meta identifies a module.
type Meta struct {
	// Name is the unique module name referenced from configuration fragments.
	Name string `validate:"required"`
	// ConfigKey selects the configuration subtree passed to Setup as Options.
	ConfigKey string
}

// Options is the read-only configuration subtree handed to a module's setup.
// It is empty unless the merged configuration carries a value under the
// module's ConfigKey.
type Options map[string]any

// String returns the string value stored under key, or "".
func (o Options) String(key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

// Module is a self-registering unit of functionality.
type Module interface {
	Meta() Meta
	Setup(opts Options, b *Builder) error
}

// SetupFunc is the setup routine of a module built with Define.
type SetupFunc func(opts Options, b *Builder) error

type defined struct {
	meta  Meta
	setup SetupFunc
}

// Define creates a Module from its metadata and setup routine.
// Panics if meta.Name is blank or setup is nil.
func Define(meta Meta, setup SetupFunc) Module {
	if strings.TrimSpace(meta.Name) == "" {
		panic("module.Define: name must not be empty")
	}
	if setup == nil {
		panic("module.Define: setup must not be nil")
	}
	if meta.ConfigKey == "" {
		meta.ConfigKey = meta.Name
	}
	return &defined{meta: meta, setup: setup}
}

func (d *defined) Meta() Meta { return d.meta }

func (d *defined) Setup(opts Options, b *Builder) error {
	if b == nil {
		return errors.New("builder is nil")
	}
	return d.setup(opts, b)
}
