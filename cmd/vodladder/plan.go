// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vodladder/internal/analyzer"
	"github.com/ManuGH/vodladder/internal/ffmpeg"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/ladder"
	xglog "github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/version"
)

type planOutput struct {
	Source   string              `json:"source"`
	Metadata job.MediaMetadata   `json:"metadata"`
	Complex  bool                `json:"complex"`
	Recipe   []job.RenditionSpec `json:"recipe"`
}

// newPlanCmd is a dry run of analysis and planning against a local file.
// It needs no config: nothing is uploaded or recorded.
func newPlanCmd() *cobra.Command {
	var (
		ffprobe string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Probe a local video and print the rendition ladder it would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xglog.Configure(xglog.Config{Level: "warn", Output: cmd.ErrOrStderr(), Version: version.Version})

			a := analyzer.New(ffmpeg.Runner{Bin: ffprobe, Timeout: timeout, CaptureStdout: true})
			md, err := a.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := planOutput{
				Source:   args[0],
				Metadata: md,
				Complex:  ladder.Complex(md),
				Recipe:   ladder.Plan(md),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&ffprobe, "ffprobe", "ffprobe", "ffprobe binary")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "probe timeout")
	return cmd
}
