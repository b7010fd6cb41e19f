// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Aegis's standard CBOR encoding configuration.
//
// Aegis reads JSON from the model service and writes snapshots for
// downstream renderers either as newline-delimited JSON or as a CBOR
// sequence. This package holds the single CBOR configuration so that
// every writer encodes identically. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. Same logical data
// always produces identical bytes.
//
// Snapshots are written one after another as a CBOR sequence:
//
//	encoder := codec.NewEncoder(os.Stdout)
//	err := encoder.Encode(snapshot)
//
// Aegis only writes CBOR. Readers decode it with any CBOR library;
// they should decode maps as map[string]any.
//
// # Struct Tags
//
// Snapshot types carry `json` tags only. fxamacker/cbor v2 falls back
// to `json` tags when `cbor` tags are absent, so one tag controls the
// field name and omitempty in both output formats. Do not add `cbor`
// tags alongside them.
//
// json.RawMessage values are not JSON to the CBOR encoder; they would
// be written as byte strings. Convert them with [FromJSON] first.
package codec
