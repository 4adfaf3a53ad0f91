// Package apperr defines sentinel errors shared across components.
package apperr

import "errors"

var ErrNotFound = errors.New("not found")
