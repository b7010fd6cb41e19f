// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aegis-c9/aegis/lib/codec"
	"github.com/aegis-c9/aegis/lib/live"
)

// snapshotWriter emits one snapshot to the output stream.
type snapshotWriter interface {
	Write(snapshot live.Snapshot) error
}

func newSnapshotWriter(format string, w io.Writer) (snapshotWriter, error) {
	switch format {
	case "json":
		return &jsonWriter{encoder: json.NewEncoder(w)}, nil
	case "cbor":
		return &cborWriter{encoder: codec.NewEncoder(w)}, nil
	case "none":
		return discardWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json, cbor, or none)", format)
	}
}

// jsonWriter writes newline-delimited JSON, one snapshot per line.
type jsonWriter struct {
	encoder *json.Encoder
}

func (w *jsonWriter) Write(snapshot live.Snapshot) error {
	return w.encoder.Encode(snapshot)
}

// cborWriter writes a CBOR sequence (RFC 8742), one item per
// snapshot.
type cborWriter struct {
	encoder *codec.Encoder
}

// cborSnapshot replaces the raw telemetry bytes with their decoded
// structure so the record is a CBOR map rather than a byte string.
type cborSnapshot struct {
	live.Snapshot
	Telemetry any `json:"telemetry,omitempty"`
}

func (w *cborWriter) Write(snapshot live.Snapshot) error {
	telemetry, err := codec.FromJSON(snapshot.Telemetry)
	if err != nil {
		return err
	}
	return w.encoder.Encode(cborSnapshot{Snapshot: snapshot, Telemetry: telemetry})
}

type discardWriter struct{}

func (discardWriter) Write(live.Snapshot) error { return nil }
