// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package l1ball

import "errors"

// Sentinel errors. Operations wrap them with context, match with errors.Is.
var (
	// ErrInvalidRadius is returned when the radius is not a finite positive number.
	ErrInvalidRadius = errors.New("l1ball: radius must be finite and greater than 0")

	// ErrLengthMismatch is returned when the output length differs from the input length.
	ErrLengthMismatch = errors.New("l1ball: output length not match input")

	// ErrNonFinite is returned when the input holds a NaN or ±Inf entry.
	ErrNonFinite = errors.New("l1ball: NaN or Inf encountered")

	// ErrEmptyInput is returned by Simplex for a zero-length vector.
	ErrEmptyInput = errors.New("l1ball: empty input")

	// ErrInvalidGroup is returned for a negative or out of range group label.
	ErrInvalidGroup = errors.New("l1ball: invalid group label")
)
