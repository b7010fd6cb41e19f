// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for Aegis
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/aegis-c9/aegis/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They default to "unknown" / "0.1.0-dev" in development builds and
// test runs.
package version
