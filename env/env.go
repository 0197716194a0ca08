//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package env implements global environment for the PSI system.
package env

import (
	"crypto/rand"
	"io"

	"github.com/go-logr/logr"
)

// DefaultStatSecParam defines the default statistical security
// parameter.
const DefaultStatSecParam = 40

// Config defines the global system configuration for the PSI
// system. It configures system operation for all modules. Config
// must not be modified after being passed to any module. It is safe
// for concurrent use by multiple modules as they do not modify it.
type Config struct {
	// Rand is the source of entropy. If unset, crypto/rand is used.
	Rand io.Reader

	// Logger receives the system logs. The zero logger discards
	// all output.
	Logger logr.Logger

	// StatSecParam is the statistical security parameter in
	// bits. If unset, DefaultStatSecParam is used.
	StatSecParam int
}

// GetRandom returns the source of entropy for identifiers, OT, and
// other cryptography operations.
func (config *Config) GetRandom() io.Reader {
	if config != nil && config.Rand != nil {
		return config.Rand
	}
	return rand.Reader
}

// GetLogger returns the configured logger.
func (config *Config) GetLogger() logr.Logger {
	if config == nil {
		return logr.Discard()
	}
	return config.Logger
}

// GetStatSecParam returns the statistical security parameter.
func (config *Config) GetStatSecParam() int {
	if config != nil && config.StatSecParam > 0 {
		return config.StatSecParam
	}
	return DefaultStatSecParam
}
