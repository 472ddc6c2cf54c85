// Package testutil provides shared helpers for manifest-driven tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/manifest"
	"github.com/vk/datagrid/internal/registry"
	"github.com/vk/datagrid/internal/resolve"

	"log/slog"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a manifest-driven test setup.
type HarnessResult struct {
	Ctx       context.Context
	Instance  *resolve.Instance
	Database  *registry.Database
	LogBuffer *SafeBuffer
	Dir       string
}

// BuildInstance writes the given manifest files into a temporary directory,
// loads them with the provided loader, and returns an initialized instance
// with a debug logger captured into LogBuffer. File names may contain
// subdirectories.
func BuildInstance(t *testing.T, files map[string]string, loader *manifest.Loader, opts ...resolve.Option) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	WriteFiles(t, tmpDir, files)

	logBuffer := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	db := registry.New("test")
	require.NoError(t, loader.Load(ctx, db, tmpDir))

	inst, err := resolve.New(db, opts...)
	require.NoError(t, err)

	return &HarnessResult{
		Ctx:       ctx,
		Instance:  inst,
		Database:  db,
		LogBuffer: logBuffer,
		Dir:       tmpDir,
	}
}

// WriteFiles writes the given name-to-content map under dir, creating
// subdirectories as needed.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		filePath := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}
}

// DiscardLogger returns a logger that drops all output, for tests that do
// not assert on logs.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
