// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Aegis
// binaries.
//
// A configuration file is optional. When one is used it is named
// explicitly, either by the AEGIS_CONFIG environment variable (via
// [Load]) or by a --config flag (via [LoadFile]); there is no
// discovery of files in well-known locations.
//
// The file may carry environment sections (development, staging,
// production) whose values override the base values when
// [Config].Environment matches. ${VAR} and ${VAR:-default} patterns
// are expanded in path fields after loading.
//
// The stream base URL is the one setting the deployment environment
// supplies directly: [Config.ApplyEnvironment] takes it from
// AEGIS_API_URL when that variable is set. Without either, the base
// URL is the local development backend, http://localhost:8000.
//
// Key exports:
//
//   - [Config] -- master struct with Stream, Roster, and Log sections
//   - [Default] -- development defaults
//   - [Load] and [LoadFile] -- the two entry points for files
package config
