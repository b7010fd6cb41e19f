// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package matchstate

import (
	"math"

	"github.com/aegis-c9/aegis/lib/schema/match"
)

// Classification thresholds. All comparisons are strict: a
// probability exactly on a threshold falls to the lower tier.
const (
	// OptimalThreshold: probabilities above it are optimal.
	OptimalThreshold = 0.6

	// WarningThreshold: probabilities above it (and not above
	// OptimalThreshold) are warning; the rest are critical.
	WarningThreshold = 0.3

	// AnomalyThreshold: probabilities above it emit a macro anomaly.
	AnomalyThreshold = 0.8
)

// Classify returns the status for a prediction probability.
func Classify(probability float64) match.Status {
	switch {
	case probability > OptimalThreshold:
		return match.StatusOptimal
	case probability > WarningThreshold:
		return match.StatusWarning
	default:
		return match.StatusCritical
	}
}

// ImpactScore converts a prediction probability into the 0-100
// impact score, rounding half away from zero.
func ImpactScore(probability float64) int {
	return int(math.Round(probability * 100))
}
