// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunch_NotFound(t *testing.T) {
	_, err := Launch(context.Background(), "do something", Config{Command: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLaunch_ReadsStdoutLines(t *testing.T) {
	sess, err := Launch(context.Background(), "ignored", Config{
		Command: "sh",
		Args:    []string{"-c", "echo hello; echo world"},
	})
	require.NoError(t, err)
	defer sess.Close()

	seen := map[string]bool{}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(seen) < 2 {
		line, ok := sess.ReadOutput(50 * time.Millisecond)
		if ok {
			seen[line.Line] = true
			assert.Equal(t, OutputStdout, line.Kind)
		}
	}
	assert.True(t, seen["hello"])
	assert.True(t, seen["world"])
}

func TestLaunch_ResolvesWorkingDir(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "nested")

	sess, err := Launch(context.Background(), "ignored", Config{
		Command:    "sh",
		Args:       []string{"-c", "true"},
		WorkingDir: target,
	})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, target, sess.WorkingDir())
	info, statErr := os.Stat(target)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestSession_TerminatedAfterExit(t *testing.T) {
	sess, err := Launch(context.Background(), "ignored", Config{
		Command: "sh",
		Args:    []string{"-c", "exit 0"},
	})
	require.NoError(t, err)
	defer sess.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !sess.Terminated() {
		sess.ReadOutput(20 * time.Millisecond)
	}
	assert.True(t, sess.Terminated())
	assert.False(t, sess.IsRunning())

	exitErr, exited := sess.ExitError()
	assert.True(t, exited)
	assert.NoError(t, exitErr)
}

func TestSession_ExitErrorOnNonZeroExit(t *testing.T) {
	sess, err := Launch(context.Background(), "ignored", Config{
		Command: "sh",
		Args:    []string{"-c", "exit 1"},
	})
	require.NoError(t, err)
	defer sess.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !sess.Terminated() {
		sess.ReadOutput(20 * time.Millisecond)
	}

	exitErr, exited := sess.ExitError()
	assert.True(t, exited)
	assert.Error(t, exitErr)
}

func TestSession_TerminateKillsLongRunningProcess(t *testing.T) {
	sess, err := Launch(context.Background(), "ignored", Config{
		Command: "sh",
		Args:    []string{"-c", "sleep 60"},
	})
	require.NoError(t, err)

	assert.True(t, sess.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Terminate(ctx))

	assert.False(t, sess.IsRunning())
}

func TestSession_ReadOutput_TimesOutWhenNothingArrives(t *testing.T) {
	sess, err := Launch(context.Background(), "ignored", Config{
		Command: "sh",
		Args:    []string{"-c", "sleep 60"},
	})
	require.NoError(t, err)
	defer sess.Close()

	_, ok := sess.ReadOutput(20 * time.Millisecond)
	assert.False(t, ok)
}
