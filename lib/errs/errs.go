//
// Copyright (C) 2024 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://www.mozilla.org/MPL/2.0/.
//

// Package errs defines the error kinds shared by all ContactAbacus packages.
// Errors are wrapped with context using fmt.Errorf and %w; callers match a
// kind with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned for missing required fields, empty
	// contact lists and chromosome names absent from the layout (strict mode).
	ErrMalformedInput = errors.New("malformed input")

	// ErrInsufficientData is returned when too few bins or contacts remain
	// for a statistically meaningful feature.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInsufficientPoints is returned by regression fits with fewer than
	// two valid points.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrConfiguration is returned for invalid or inconsistent parameters.
	ErrConfiguration = errors.New("configuration error")
)

// Malformed wraps ErrMalformedInput with a formatted message.
func Malformed(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, a...))
}

// InsufficientData wraps ErrInsufficientData with a formatted message.
func InsufficientData(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, a...))
}

// InsufficientPoints wraps ErrInsufficientPoints with a formatted message.
func InsufficientPoints(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientPoints, fmt.Sprintf(format, a...))
}

// Configuration wraps ErrConfiguration with a formatted message.
func Configuration(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, a...))
}

// Kind returns the error kind wrapped by err, or nil if err is not one of
// the package kinds.
func Kind(err error) error {
	for _, k := range []error{ErrMalformedInput, ErrInsufficientData, ErrInsufficientPoints, ErrConfiguration} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
