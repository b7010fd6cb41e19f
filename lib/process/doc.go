// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Aegis
// binaries. It holds the one raw stderr write that happens before the
// structured logger exists: reporting the error that ended main().
package process
