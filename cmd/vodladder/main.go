// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command vodladder turns uploaded videos into adaptive-bitrate HLS packages.
// The poll command watches the upload queue and dispatches one worker per
// video; the work command is that worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vodladder/internal/config"
)

// envConfigPath names the config file when --config is not given.
const envConfigPath = config.EnvPrefix + "CONFIG"

type rootOptions struct {
	configPath string
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "vodladder",
		Short:         "Adaptive-bitrate HLS transcoding pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if o.configPath == "" {
				o.configPath = os.Getenv(envConfigPath)
			}
		},
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "path to config file (YAML); env "+envConfigPath)

	root.AddCommand(
		newPollCmd(o),
		newWorkCmd(o),
		newStatusCmd(o),
		newPlanCmd(),
		newVersionCmd(),
	)
	return root
}
