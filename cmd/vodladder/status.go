// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vodladder/internal/app/bootstrap"
	xglog "github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/status"
	"github.com/ManuGH/vodladder/internal/version"
)

// exitNotFound is returned when the job has no record.
const exitNotFound = 3

func newStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <jobId>",
		Short: "Print the stored status record of a job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logs go to stderr so stdout stays machine-readable.
			xglog.Configure(xglog.Config{Level: "warn", Output: cmd.ErrOrStderr(), Version: version.Version})

			cfg, err := bootstrap.LoadConfig(o.configPath, version.Version)
			if err != nil {
				return err
			}
			store, err := bootstrap.OpenStatusStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open status store: %w", err)
			}
			defer func() { _ = store.Close() }()

			rec, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, status.ErrNotFound) {
				return &exitError{code: exitNotFound, err: fmt.Errorf("job %q not found", args[0])}
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}
