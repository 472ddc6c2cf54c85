package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// A manifest with a syntax error panics during the loading phase inside
	// app.New(); run must recover it and return an error.
	invalidHCL := `
		coordinate "a" {
			values = [
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "grid.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0600))

	out := &bytes.Buffer{}
	runErr := run(out, []string{"-log-level", "error", filePath})

	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined")
}

func TestRun_DescribeMode(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	manifest := `
coordinate "subject" {
  values = ["s1"]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "grid.hcl"), []byte(manifest), 0600))

	out := &bytes.Buffer{}
	err := run(out, []string{"-log-level", "error", tempDir})

	require.NoError(t, err)
	require.Contains(t, out.String(), "subject")
}
