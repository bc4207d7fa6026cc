// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bootstrap

import "errors"

var (
	// ErrNilContext is returned when wiring is called without a context.
	ErrNilContext = errors.New("wire services context is nil")

	// ErrUnknownBackend is returned for a backend name config validation
	// would have rejected.
	ErrUnknownBackend = errors.New("unknown backend")
)
