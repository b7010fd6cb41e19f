// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Aegis packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with a time.After fallback) so that individual
// tests do not call time.After themselves. They are the only place in
// the test suite where real wall-clock timeouts are used; everything
// else runs on lib/clock's fake clock.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Aegis-internal dependencies.
package testutil
