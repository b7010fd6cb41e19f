// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package match defines the UI-facing state derived from a live match
// telemetry feed: per-player status ([PlayerData]), the match summary
// ([GameState]), and the rolling log of tactical events ([Anomaly]).
//
// These types are the contract with renderers. They are handed out as
// read-only snapshots and serialized both as JSON (NDJSON snapshot
// output) and CBOR (via lib/codec). JSON struct tags are used so that
// fxamacker/cbor's json-tag fallback names CBOR fields identically.
//
// The package also carries the typed shape of the feed's
// "mie_analysis" payload. The engine passes that payload through
// untouched; [DecodeMIEAnalysis] exists for consumers that want it
// typed.
//
// This package depends on no other Aegis packages.
package match
