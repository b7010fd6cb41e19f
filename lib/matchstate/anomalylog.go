// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package matchstate

import "github.com/aegis-c9/aegis/lib/schema/match"

// AnomalyLogCapacity is the number of anomalies the game state keeps.
const AnomalyLogCapacity = 10

// AppendAnomalies returns log with emitted appended, keeping only the
// newest AnomalyLogCapacity entries. The result is a new slice: it
// never shares storage with log, so snapshots already handed out stay
// unchanged.
func AppendAnomalies(log []match.Anomaly, emitted ...match.Anomaly) []match.Anomaly {
	total := len(log) + len(emitted)
	drop := max(total-AnomalyLogCapacity, 0)

	result := make([]match.Anomaly, 0, total-drop)
	if drop < len(log) {
		result = append(result, log[drop:]...)
		result = append(result, emitted...)
	} else {
		result = append(result, emitted[drop-len(log):]...)
	}
	return result
}
