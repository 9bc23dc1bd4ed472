// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets the bridge's timers run against a fake time source
// in tests.
//
// Code that waits on time takes a [Clock]. Binaries pass [Real]; tests
// pass a [FakeClock] and move it forward with Advance once the code
// under test has registered its timers:
//
//	fake := clock.Fake(time.Unix(0, 0))
//	go watch(ctx, fake)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
package clock
