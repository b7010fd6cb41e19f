// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Sample is one decoded telemetry record. Every optional wire field
// has an explicit presence marker so the reducer never has to guess
// whether a zero value was sent.
type Sample struct {
	// WinProbability is the 0-100 win probability. Only meaningful
	// when HasWinProbability is true.
	WinProbability    float64
	HasWinProbability bool

	// Predictions is positionally aligned with the roster: entry i
	// belongs to roster player i. Nil means the record carried no
	// predictions at all; a nil entry means no prediction for that
	// index.
	Predictions []*Prediction

	// MIEAnalysis is the raw "mie_analysis" value, passed through to
	// consumers without interpretation. Nil when absent.
	MIEAnalysis json.RawMessage

	// Raw is the record exactly as it appeared on the wire.
	Raw json.RawMessage
}

// HasPredictions reports whether the record carried a predictions
// array (possibly empty).
func (s Sample) HasPredictions() bool {
	return s.Predictions != nil
}

// PredictionAt returns the prediction for roster index i, if the
// record has one.
func (s Sample) PredictionAt(i int) (Prediction, bool) {
	if i < 0 || i >= len(s.Predictions) || s.Predictions[i] == nil {
		return Prediction{}, false
	}
	return *s.Predictions[i], true
}

// Prediction is the model output for one player.
type Prediction struct {
	// Name is the player name as the model reported it. It is used
	// for display only; mapping to the roster is by index.
	Name string

	// HighAssistProbability is the predicted probability (0.0-1.0)
	// of a high-utility play.
	HighAssistProbability float64

	Recommendation string
}

// DecodeError reports a record that could not be decoded. It is
// scoped to a single line.
type DecodeError struct {
	// Preview is the start of the offending line, for diagnostics.
	Preview string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding telemetry record %q: %v", e.Preview, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// maxPreview bounds how much of a bad line is echoed into errors and
// logs.
const maxPreview = 80

// errNotObject is the cause for records whose top-level value is not
// a JSON object (arrays, scalars, null).
var errNotObject = errors.New("record is not a JSON object")

type wireSample struct {
	WinProb     *float64          `json:"win_prob"`
	Predictions []*wirePrediction `json:"predictions"`
	MIEAnalysis json.RawMessage   `json:"mie_analysis"`
}

type wirePrediction struct {
	Name                  string   `json:"name"`
	HighAssistProbability *float64 `json:"high_assist_probability"`
	Recommendation        string   `json:"recommendation"`
}

// Decode parses one line of the feed. On failure it returns a
// *DecodeError and a zero Sample.
func Decode(line string) (Sample, error) {
	data := []byte(line)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Sample{}, newDecodeError(line, errNotObject)
	}

	var wire wireSample
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Sample{}, newDecodeError(line, err)
	}

	sample := Sample{Raw: json.RawMessage(trimmed)}
	if wire.WinProb != nil {
		sample.WinProbability = *wire.WinProb
		sample.HasWinProbability = true
	}
	if wire.Predictions != nil {
		sample.Predictions = make([]*Prediction, len(wire.Predictions))
		for i, entry := range wire.Predictions {
			// A prediction without a probability carries nothing the
			// reducer can use; it counts as absent.
			if entry == nil || entry.HighAssistProbability == nil {
				continue
			}
			sample.Predictions[i] = &Prediction{
				Name:                  entry.Name,
				HighAssistProbability: *entry.HighAssistProbability,
				Recommendation:        entry.Recommendation,
			}
		}
	}
	if len(wire.MIEAnalysis) > 0 && string(wire.MIEAnalysis) != "null" {
		sample.MIEAnalysis = wire.MIEAnalysis
	}
	return sample, nil
}

func newDecodeError(line string, err error) *DecodeError {
	preview := line
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "..."
	}
	return &DecodeError{Preview: preview, Err: err}
}
