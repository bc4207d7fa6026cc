// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vodladder/internal/intake"
	"github.com/ManuGH/vodladder/internal/job"
)

// fakeWorker writes a shell script that records the injected job
// parameters (and the job file contents, if any) to out and exits with
// $FAKE_EXIT.
func fakeWorker(t *testing.T) (bin, out string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	out = filepath.Join(dir, "seen")
	bin = filepath.Join(dir, "worker")
	script := `#!/bin/sh
printf '%s|%s|%s|%s\n' "$VODLADDER_JOB_ID" "$VODLADDER_JOB_BUCKET" "$VODLADDER_JOB_KEY" "$VODLADDER_JOB_FILE" > "` + out + `"
if [ -n "$VODLADDER_JOB_FILE" ]; then cat "$VODLADDER_JOB_FILE" >> "` + out + `"; fi
exit ${FAKE_EXIT:-0}
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, out
}

var clip = job.Descriptor{JobID: "clip one", Bucket: "uploads", Key: "videos/clip one.mp4"}

func TestLocal_InjectsJobEnvironment(t *testing.T) {
	bin, out := fakeWorker(t)
	d, err := NewLocal(LocalOptions{Command: []string{bin}, Stdout: io.Discard, Stderr: io.Discard})
	require.NoError(t, err)

	handle, err := d.Dispatch(context.Background(), Request{Job: clip})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle, "local-"))

	seen, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "clip one|uploads|videos/clip one.mp4|\n", string(seen))
}

func TestLocal_JobFileModeWritesAndRemovesFile(t *testing.T) {
	bin, out := fakeWorker(t)
	jobDir := t.TempDir()
	d, err := NewLocal(LocalOptions{Command: []string{bin}, JobFileDir: jobDir, Stdout: io.Discard, Stderr: io.Discard})
	require.NoError(t, err)

	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"videos/clip+one.mp4"}}}]}`
	_, err = d.Dispatch(context.Background(), Request{Job: clip, MessageID: "m-1", ReceiptHandle: "rh-1", Body: []byte(body)})
	require.NoError(t, err)

	seen, err := os.ReadFile(out)
	require.NoError(t, err)
	first, rest, _ := strings.Cut(string(seen), "\n")
	assert.Equal(t, "|||"+intake.JobFilePath(jobDir, "clip one"), first)

	var env intake.FileEnvelope
	require.NoError(t, json.Unmarshal([]byte(rest), &env))
	assert.Equal(t, intake.FileEnvelope{MessageID: "m-1", ReceiptHandle: "rh-1", Body: body}, env)

	_, err = os.Stat(intake.JobFilePath(jobDir, "clip one"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocal_NonZeroExitIsDispatchError(t *testing.T) {
	bin, _ := fakeWorker(t)
	d, err := NewLocal(LocalOptions{Command: []string{bin}, Env: []string{"FAKE_EXIT=3"}, Stdout: io.Discard, Stderr: io.Discard})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), Request{Job: clip})
	var de *job.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "clip one", de.JobID)
	assert.Equal(t, "dispatch", job.Stage(err))
	assert.NotErrorIs(t, err, ErrJobFailed)
}

func TestLocal_FailedJobExitCode(t *testing.T) {
	bin, _ := fakeWorker(t)
	d, err := NewLocal(LocalOptions{
		Command: []string{bin},
		Env:     []string{fmt.Sprintf("FAKE_EXIT=%d", ExitJobFailed)},
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), Request{Job: clip})
	assert.ErrorIs(t, err, ErrJobFailed)
	var de *job.DispatchError
	assert.ErrorAs(t, err, &de)
}

func TestNewLocal_RequiresCommand(t *testing.T) {
	_, err := NewLocal(LocalOptions{})
	assert.Error(t, err)
}
