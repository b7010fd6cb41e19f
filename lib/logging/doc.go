// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured logger for Aegis binaries.
//
// Every component logs through log/slog with snake_case attribute
// keys. When stderr is a terminal the default "auto" format renders
// human-readable text; when it is piped or redirected it renders JSON
// so log shippers can parse it.
package logging
