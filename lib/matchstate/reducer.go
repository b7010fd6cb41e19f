// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package matchstate

import (
	"fmt"
	"slices"

	"github.com/aegis-c9/aegis/lib/clock"
	"github.com/aegis-c9/aegis/lib/feed"
	"github.com/aegis-c9/aegis/lib/schema/match"
)

const (
	// HighUtilityImpact is the impact carried by every high-utility
	// anomaly, independent of the actual probability.
	HighUtilityImpact = 5

	// TimestampLayout formats anomaly timestamps as hour:minute:second.
	TimestampLayout = "15:04:05"
)

// Reducer folds telemetry samples into match state. It owns the clock
// used to stamp anomalies and the counter that keeps anomaly IDs
// unique, so one Reducer serves one session. Not safe for concurrent
// use.
type Reducer struct {
	clock    clock.Clock
	sequence uint64
}

// NewReducer returns a Reducer that stamps anomalies with clk.
func NewReducer(clk clock.Clock) *Reducer {
	return &Reducer{clock: clk}
}

// Reduce returns the game state and players after applying sample,
// plus the anomalies the sample emitted, in roster order. The inputs
// are not modified.
//
// Players are matched to predictions by index. A player with no
// prediction at its index keeps its previous values; only Impact and
// Status ever change.
func (r *Reducer) Reduce(game match.GameState, players []match.PlayerData, sample feed.Sample) (match.GameState, []match.PlayerData, []match.Anomaly) {
	nextGame := game.Clone()
	if sample.HasWinProbability {
		nextGame.WinProbability = sample.WinProbability
	}

	nextPlayers := slices.Clone(players)
	if !sample.HasPredictions() {
		return nextGame, nextPlayers, nil
	}

	var emitted []match.Anomaly
	for i := range nextPlayers {
		prediction, ok := sample.PredictionAt(i)
		if !ok {
			continue
		}
		probability := prediction.HighAssistProbability
		nextPlayers[i].Impact = ImpactScore(probability)
		nextPlayers[i].Status = Classify(probability)

		if probability > AnomalyThreshold {
			emitted = append(emitted, r.highUtilityAnomaly(nextPlayers[i], prediction))
		}
	}

	if len(emitted) > 0 {
		nextGame.Anomalies = AppendAnomalies(nextGame.Anomalies, emitted...)
	}
	return nextGame, nextPlayers, emitted
}

// highUtilityAnomaly builds the macro anomaly for a prediction above
// AnomalyThreshold. The text and target use the predicted name; the
// ID uses the roster identity.
func (r *Reducer) highUtilityAnomaly(player match.PlayerData, prediction feed.Prediction) match.Anomaly {
	now := r.clock.Now()
	r.sequence++
	return match.Anomaly{
		ID:           fmt.Sprintf("anom-%d-%d-%d", now.UnixMilli(), r.sequence, player.ID),
		Type:         match.AnomalyMacro,
		Message:      fmt.Sprintf("%s: %s. Model predicts high utility impact.", prediction.Name, prediction.Recommendation),
		Impact:       HighUtilityImpact,
		Timestamp:    now.Format(TimestampLayout),
		PlayerTarget: prediction.Name,
	}
}
