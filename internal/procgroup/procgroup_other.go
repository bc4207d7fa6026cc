// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package procgroup

import (
	"os"
	"os/exec"

	"github.com/ManuGH/vodladder/internal/metrics"
)

func set(cmd *exec.Cmd) {}

func terminate(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}
	err := cmd.Process.Signal(os.Kill)
	if err == nil {
		metrics.IncProcSignal("KILL", "sent")
	}
	return err
}
