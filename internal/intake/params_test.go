// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package intake

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestEnvRoundTripMatchesNotificationDescriptor(t *testing.T) {
	p, err := Parse([]byte(putEvent))
	require.NoError(t, err)

	got, err := FromLookup(mapLookup(Env(p.Descriptor)))
	require.NoError(t, err)
	assert.Equal(t, p.Descriptor, got)
}

func TestFromLookupDerivesJobID(t *testing.T) {
	got, err := FromLookup(mapLookup(map[string]string{
		EnvBucket: "uploads",
		EnvKey:    "videos/clip.mov",
	}))
	require.NoError(t, err)
	assert.Equal(t, "clip", got.JobID)
}

func TestFromLookupMissingParameters(t *testing.T) {
	_, err := FromLookup(mapLookup(map[string]string{EnvKey: "videos/clip.mov"}))
	assert.Error(t, err)

	_, err = FromLookup(mapLookup(map[string]string{
		EnvBucket: "uploads",
		EnvKey:    "videos/clip.mov",
		EnvJobID:  "../escape",
	}))
	assert.Error(t, err)
}

func TestJobFileLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")

	path, err := WriteJobFile(dir, "My Holiday!", FileEnvelope{MessageID: "m-1", ReceiptHandle: "rh", Body: putEvent})
	require.NoError(t, err)
	assert.Equal(t, JobFilePath(dir, "My Holiday!"), path)

	env, p, err := ReadJobFile(path)
	require.NoError(t, err)
	assert.Equal(t, "m-1", env.MessageID)
	assert.Equal(t, "My Holiday!", p.Descriptor.JobID)

	require.NoError(t, RemoveJobFile(path))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.NoError(t, RemoveJobFile(path), "second removal is a no-op")
}

func TestReadJobFileRejectsTestEvent(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJobFile(dir, "probe", FileEnvelope{Body: `{"Event":"s3:TestEvent"}`})
	require.NoError(t, err)

	_, _, err = ReadJobFile(path)
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestWriteJobFileRejectsBadID(t *testing.T) {
	_, err := WriteJobFile(t.TempDir(), "../x", FileEnvelope{})
	assert.Error(t, err)
}
