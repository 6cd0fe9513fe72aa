// Package errors provides utilities for error handling in pdbident.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose properly closes an io.Closer with logging.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferRelease runs a release function with logging of its error.
func DeferRelease(logger zerolog.Logger, release func() error, msg string) {
	if release == nil {
		return
	}
	if err := release(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
