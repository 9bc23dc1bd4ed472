// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sarvex/yabridge/lib/clock"
)

// DefaultInterval is how often Watch polls when Config.Interval is
// zero.
const DefaultInterval = 5 * time.Second

// ErrProcessExited is returned by Watch when the watched process is
// gone.
var ErrProcessExited = errors.New("watched process exited")

// Config controls Watch.
type Config struct {
	Clock    clock.Clock
	Interval time.Duration

	// Alive reports whether pid exists. Nil means ProcessAlive.
	Alive func(pid int) bool
}

// ProcessAlive reports whether a process with the given pid exists. A
// process owned by another user counts as alive.
func ProcessAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Watch blocks until pid exits, returning an error wrapping
// ErrProcessExited, or until ctx is done, returning ctx.Err().
func Watch(ctx context.Context, pid int, config Config) error {
	if pid <= 0 {
		return fmt.Errorf("watchdog: invalid pid %d", pid)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	interval := config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	alive := config.Alive
	if alive == nil {
		alive = ProcessAlive
	}

	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		if !alive(pid) {
			return fmt.Errorf("%w: pid %d", ErrProcessExited, pid)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Idle calls its expire function once no session has been active for
// the configured timeout. The countdown starts at construction, so a
// host nobody connects to also expires.
type Idle struct {
	clock   clock.Clock
	timeout time.Duration
	expire  func()

	mu      sync.Mutex
	active  int
	timer   *clock.Timer
	stopped bool
}

// NewIdle starts the countdown. A nil clk means clock.Real().
func NewIdle(clk clock.Clock, timeout time.Duration, expire func()) *Idle {
	if clk == nil {
		clk = clock.Real()
	}
	idle := &Idle{clock: clk, timeout: timeout, expire: expire}
	idle.timer = clk.AfterFunc(timeout, idle.fire)
	return idle
}

// Acquire marks a session as active and cancels any countdown.
func (i *Idle) Acquire() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.active++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

// Release ends a session; the countdown restarts when it was the last.
func (i *Idle) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active == 0 {
		return
	}
	i.active--
	if i.active == 0 && !i.stopped {
		i.timer = i.clock.AfterFunc(i.timeout, i.fire)
	}
}

// Stop cancels the countdown for good.
func (i *Idle) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

func (i *Idle) fire() {
	i.mu.Lock()
	expired := i.active == 0 && !i.stopped
	if expired {
		i.stopped = true
		i.timer = nil
	}
	i.mu.Unlock()
	if expired {
		i.expire()
	}
}
