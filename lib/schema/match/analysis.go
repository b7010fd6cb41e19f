// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"encoding/json"
	"fmt"
)

// MIEAnalysis is the match-insight payload that rides along with
// telemetry samples under "mie_analysis". The engine does not read it.
type MIEAnalysis struct {
	Summary            string             `json:"summary"`
	SquadTelemetry     []SquadMetric      `json:"squad_telemetry"`
	ProbabilityMetrics ProbabilityMetrics `json:"probability_metrics"`
	Recommendation     string             `json:"recommendation"`
}

// SquadMetric is one player's line in the squad telemetry table.
type SquadMetric struct {
	Name        string  `json:"name"`
	KDA         string  `json:"kda"`
	CS          int     `json:"cs"`
	GoldDiff    float64 `json:"gold_diff"`
	VisionScore float64 `json:"vision_score"`
}

// ProbabilityMetrics are preformatted percentages produced by the
// model. They are display strings, not numbers.
type ProbabilityMetrics struct {
	SiteRetakeSuccess string `json:"site_retake_success"`
	BaronContestRate  string `json:"baron_contest_rate"`
	ClutchPotential   string `json:"clutch_potential"`
	TempoDeviation    string `json:"tempo_deviation"`
}

// DecodeMIEAnalysis decodes a raw "mie_analysis" value. An empty or
// null payload returns (nil, nil).
func DecodeMIEAnalysis(raw json.RawMessage) (*MIEAnalysis, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var analysis MIEAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("decoding mie_analysis: %w", err)
	}
	return &analysis, nil
}
