// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup runs external tools in their own process group so a
// cancelled job never leaves encoder or container processes behind.
package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

// ErrNotStarted is returned when signalling a command that has no process.
var ErrNotStarted = errors.New("process not started")

// DefaultGrace is how long a process group gets between SIGTERM and SIGKILL.
const DefaultGrace = 5 * time.Second

// Set configures the command to start in a new process group.
// Mandatory for group signalling to reach child processes.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Bind prepares a command created with exec.CommandContext: it starts in its
// own process group and context cancellation signals the whole group with
// SIGTERM. If the leader has not exited after grace, it is killed and Wait
// returns.
func Bind(cmd *exec.Cmd, grace time.Duration) {
	if grace <= 0 {
		grace = DefaultGrace
	}
	set(cmd)
	cmd.Cancel = func() error {
		return terminate(cmd)
	}
	cmd.WaitDelay = grace
}
