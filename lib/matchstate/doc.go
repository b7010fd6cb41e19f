// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package matchstate folds decoded telemetry samples into the derived
// match state that renderers display.
//
// [Reducer.Reduce] is the single transition function: given the
// previous [match.GameState], the previous roster-ordered players, and
// one [feed.Sample], it returns the next state and any anomalies the
// sample triggered. It never mutates its inputs, so a caller can hand
// the previous values to renderers while computing the next ones.
//
// Classification is fixed: a player's prediction probability maps to
// an impact score (probability × 100, rounded) and a status through
// strict thresholds ([Classify]). A probability above
// [AnomalyThreshold] emits a macro anomaly. Predictions are matched to
// players by position in the roster, never by name.
//
// The anomaly log is a FIFO bounded at [AnomalyLogCapacity] entries
// ([AppendAnomalies]).
//
// Rosters come from [DefaultRoster] or from a YAML or JSONC file via
// [LoadRoster].
package matchstate
