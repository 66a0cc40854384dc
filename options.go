// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package polling

import (
	"github.com/joeycumines/logiface"
)

// pollerOptions holds configuration options for Poller creation.
type pollerOptions struct {
	logger       *logiface.Logger[logiface.Event]
	disableTimer bool
}

// --- Poller Options ---

// Option configures a Poller instance.
type Option interface {
	applyPoller(*pollerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyPollerFunc func(*pollerOptions) error
}

func (o *optionImpl) applyPoller(opts *pollerOptions) error {
	return o.applyPollerFunc(opts)
}

// WithLogger attaches a structured logger to the Poller. Every
// operation emits a trace-level event; failures during teardown are
// logged at debug level. A nil logger is valid and disables logging
// (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *pollerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithoutKernelTimer disables the kernel timer, forcing Wait to pass
// timeouts to the native poll call directly, rounded up to whole
// milliseconds. Primarily useful for testing the degraded path and for
// diagnosing timer-related kernel issues; precision suffers but the
// timeout contract (never return early) still holds.
func WithoutKernelTimer() Option {
	return &optionImpl{func(opts *pollerOptions) error {
		opts.disableTimer = true
		return nil
	}}
}

// resolvePollerOptions applies Option instances to pollerOptions.
func resolvePollerOptions(opts []Option) (*pollerOptions, error) {
	cfg := &pollerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyPoller(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
