// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package live

import "fmt"

// ConnectionState is the supervisor's position in the connection
// lifecycle.
type ConnectionState int

const (
	// StateIdle: the session has been created but Run has not
	// started.
	StateIdle ConnectionState = iota

	// StateConnecting: a stream request is in flight.
	StateConnecting

	// StateStreaming: the response body is being read.
	StateStreaming

	// StateRetrying: the last attempt failed and the session is
	// waiting out the retry delay.
	StateRetrying

	// StateClosed: the session has finished. Terminal.
	StateClosed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateStreaming:  "streaming",
	StateRetrying:   "retrying",
	StateClosed:     "closed",
}

func (s ConnectionState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// MarshalText encodes the state by name, so snapshots read as
// "streaming" rather than 2 in both JSON and CBOR.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
