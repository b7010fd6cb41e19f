// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package live runs one telemetry session: it owns the streaming
// connection to the backend, folds every record into the derived
// match state, and publishes read-only snapshots for renderers.
//
// A [Session] moves through five connection states:
//
//	Idle → Connecting → Streaming → Closed
//	            ↑    ↘       ↓
//	            └── Retrying ┘
//
// Connecting issues a single long-lived GET to
// {base URL}/stream-telemetry. A 2xx response with a body moves to
// Streaming, where each chunk read from the body is framed into lines
// ([feed.Framer]), decoded ([feed.Decode]), and folded
// ([matchstate.Reducer]). A malformed line is logged and skipped.
//
// Any failure other than cancellation (dial errors, resets, non-2xx
// responses, undecodable content encodings) moves to Retrying, which
// waits a fixed delay (5 seconds by default) and connects again.
// There is no retry limit. The derived state survives reconnects: a
// transient outage never resets what renderers see.
//
// The stream ending cleanly moves to Closed without reconnecting, as
// does a response with no body. Cancelling the context passed to
// [Session.Run] aborts the in-flight request or the pending retry
// wait, folds no further lines, and moves to Closed; cancellation is
// an expected outcome and is not logged as an error.
//
// Exactly one goroutine (the caller of Run) reads, decodes, and
// reduces. Renderers read from any goroutine through
// [Session.Snapshot], and may wait on [Session.Updates] for changes.
package live
