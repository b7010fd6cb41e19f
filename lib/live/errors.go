// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package live

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Run on a session that has already
// been run. A session is single-use; create a new one to start over.
var ErrAlreadyStarted = errors.New("live: session already started")

// StatusError is returned for a stream request answered with a
// non-2xx status. It counts as a transport failure and triggers a
// retry.
type StatusError struct {
	StatusCode int
	Status     string

	// Body is the start of the response body, for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stream request failed: %s", e.Status)
	}
	return fmt.Sprintf("stream request failed: %s: %s", e.Status, e.Body)
}
