// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Anything that stamps wall-clock time or waits on a timer takes a
// [Clock] instead of calling the time package directly. Production
// code passes [Real]; tests pass [Fake] and move time forward
// explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	session := live.NewSession(live.Config{Clock: fake, ...})
//	go session.Run(ctx)
//	fake.WaitForTimers(1)       // the session is waiting to reconnect
//	fake.Advance(5 * time.Second) // fire the reconnect deterministically
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it, so tests never sleep on the
// real clock.
package clock
