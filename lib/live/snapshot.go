// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package live

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/aegis-c9/aegis/lib/schema/match"
)

// Snapshot is the read-only view of a session handed to renderers.
// Each call to [Session.Snapshot] returns an independent copy.
type Snapshot struct {
	SessionID string          `json:"sessionId"`
	State     ConnectionState `json:"state"`

	Game    match.GameState    `json:"game"`
	Players []match.PlayerData `json:"players"`

	// Telemetry is the most recently decoded record, exactly as
	// received, for panels that display the raw feed. Nil until the
	// first record arrives.
	Telemetry json.RawMessage `json:"telemetry,omitempty"`

	Stats Stats `json:"stats"`
}

// Stats are running counters for the session.
type Stats struct {
	// Connections counts connection attempts, including the first.
	Connections uint64 `json:"connections"`

	// Samples counts records folded into the state.
	Samples uint64 `json:"samples"`

	// DecodeFailures counts malformed records that were skipped.
	DecodeFailures uint64 `json:"decodeFailures"`

	// Anomalies counts anomalies emitted, including those since
	// evicted from the log.
	Anomalies uint64 `json:"anomalies"`
}

func (s Snapshot) clone() Snapshot {
	clone := s
	clone.Game = s.Game.Clone()
	clone.Players = slices.Clone(s.Players)
	clone.Telemetry = bytes.Clone(s.Telemetry)
	return clone
}
