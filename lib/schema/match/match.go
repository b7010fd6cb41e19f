// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"fmt"
	"slices"
)

// Status is the classification of a player's latest predicted
// utility. It is never set directly: the reducer derives it from the
// prediction probability on every sample that carries one.
type Status string

const (
	// StatusOptimal means the predicted probability is above 0.6.
	StatusOptimal Status = "optimal"

	// StatusWarning means the predicted probability is above 0.3 but
	// not above 0.6.
	StatusWarning Status = "warning"

	// StatusCritical means the predicted probability is 0.3 or below.
	StatusCritical Status = "critical"
)

// IsKnown reports whether s is one of the defined statuses.
func (s Status) IsKnown() bool {
	switch s {
	case StatusOptimal, StatusWarning, StatusCritical:
		return true
	}
	return false
}

// AnomalyType separates short-lived mechanical events from
// strategic ones. The reducer only emits macro anomalies; micro is
// part of the renderer contract.
type AnomalyType string

const (
	AnomalyMicro AnomalyType = "micro"
	AnomalyMacro AnomalyType = "macro"
)

// PlayerData is one roster entry and its derived state.
type PlayerData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`

	// Stress is the 0-100 fatigue gauge. Samples never write it; it
	// keeps its roster value for the whole session.
	Stress int `json:"stress"`

	// Impact is the 0-100 performance score derived from the latest
	// prediction probability.
	Impact int `json:"impact"`

	Status       Status `json:"status"`
	RecentErrors int    `json:"recentErrors"`
}

// Validate checks the roster-level invariants of a player entry.
func (p PlayerData) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("player %d: name is required", p.ID)
	}
	if p.Stress < 0 || p.Stress > 100 {
		return fmt.Errorf("player %q: stress %d outside 0-100", p.Name, p.Stress)
	}
	if p.Impact < 0 || p.Impact > 100 {
		return fmt.Errorf("player %q: impact %d outside 0-100", p.Name, p.Impact)
	}
	if !p.Status.IsKnown() {
		return fmt.Errorf("player %q: unknown status %q", p.Name, p.Status)
	}
	if p.RecentErrors < 0 {
		return fmt.Errorf("player %q: negative recent error count %d", p.Name, p.RecentErrors)
	}
	return nil
}

// Anomaly is a notable tactical event surfaced to the user.
type Anomaly struct {
	// ID is unique across the session, including multiple emissions
	// for different players within the same clock tick.
	ID      string      `json:"id"`
	Type    AnomalyType `json:"type"`
	Message string      `json:"message"`

	// Impact is a signed magnitude, e.g. -5 for a five point drop.
	Impact int `json:"impact"`

	// Timestamp is the wall-clock time of emission, already formatted
	// for display (hour:minute:second). It is never re-derived.
	Timestamp string `json:"timestamp"`

	// PlayerTarget names the player the anomaly refers to. It is a
	// display label, not a reference into the roster.
	PlayerTarget string `json:"playerTarget,omitempty"`
}

// GameState is the match summary shown to renderers.
type GameState struct {
	WinProbability float64 `json:"winProbability"`

	// Tempo is part of the renderer contract. No field of the current
	// feed writes it.
	Tempo float64 `json:"tempo"`

	// Anomalies holds at most the ten most recent anomalies, oldest
	// first.
	Anomalies []Anomaly `json:"anomalies"`
}

// NewGameState returns the neutral starting state: even odds, neutral
// tempo, and an empty anomaly log.
func NewGameState() GameState {
	return GameState{
		WinProbability: 50,
		Tempo:          50,
		Anomalies:      []Anomaly{},
	}
}

// Clone returns a copy of g whose anomaly slice does not share
// backing storage with g.
func (g GameState) Clone() GameState {
	clone := g
	clone.Anomalies = slices.Clone(g.Anomalies)
	if clone.Anomalies == nil {
		clone.Anomalies = []Anomaly{}
	}
	return clone
}
