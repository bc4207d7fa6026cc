// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls writes and inspects HLS playlists.
package hls

import (
	"bufio"
	"fmt"
	"io"
	"path"

	"github.com/google/renameio/v2"
)

// MasterName is the file name of the master manifest in a job output dir.
const MasterName = "master.m3u8"

// Variant is one #EXT-X-STREAM-INF entry.
type Variant struct {
	Bandwidth int64
	Width     int
	Height    int
	// URI is relative to the master manifest and always uses forward slashes.
	URI string
}

// WriteMaster renders a master playlist listing variants in order.
func WriteMaster(w io.Writer, variants []Variant) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#EXTM3U")
	fmt.Fprintln(bw, "#EXT-X-VERSION:3")
	for _, v := range variants {
		fmt.Fprintf(bw, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", v.Bandwidth, v.Width, v.Height)
		fmt.Fprintln(bw, path.Clean(v.URI))
	}
	return bw.Flush()
}

// WriteMasterFile writes the master playlist atomically.
func WriteMasterFile(filename string, variants []Variant) error {
	pending, err := renameio.NewPendingFile(filename, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending master playlist: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if err := WriteMaster(pending, variants); err != nil {
		return fmt.Errorf("write master playlist: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit master playlist: %w", err)
	}
	return nil
}
