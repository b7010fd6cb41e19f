// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed turns the raw bytes of a live telemetry response into
// decoded telemetry samples.
//
// The feed is newline-delimited JSON (application/x-ndjson) delivered
// over a long-lived HTTP response body. Three stages sit between the
// transport and the state reducer:
//
//	response body → NewBodyReader (content decoding) → Framer (lines) → Decode (samples)
//
// [Framer] reassembles complete lines from arbitrarily split chunks,
// carrying the trailing fragment across reads. [Decode] parses one
// line into a [Sample] with explicit field presence; a malformed line
// yields a [*DecodeError] that the caller logs and skips. Decoding is
// line-scoped by construction: nothing in this package can stop a
// stream.
//
// [NewBodyReader] undoes a Content-Encoding (gzip or zstd)
// applied by the server. The caller advertises [AcceptEncoding] and
// decodes the body itself, since Go's transport only decompresses
// gzip it negotiated on its own.
package feed
