// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/ManuGH/vodladder/internal/metrics"
)

func set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func terminate(cmd *exec.Cmd) error {
	err := Kill(cmd, syscall.SIGTERM)
	switch {
	case err == nil:
		metrics.IncProcSignal("SIGTERM", "sent")
	case errors.Is(err, os.ErrProcessDone):
		metrics.IncProcSignal("SIGTERM", "esrch")
	default:
		metrics.IncProcSignal("SIGTERM", "error")
	}
	return err
}

// Kill sends sig to the process group led by cmd, falling back to the
// leader alone when the group cannot be signalled.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return cmd.Process.Signal(sig)
	}
	return nil
}
