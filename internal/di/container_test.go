package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelfeed/reelfeed/internal/config"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/pipeline"
	"github.com/reelfeed/reelfeed/internal/recovery"
)

func testOptions(t *testing.T) config.LoadOptions {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"PROVIDER_API_KEY", "PROVIDER_BASE_URL", "STORE_PATH", "INDEX_PATH", "NTFY_TOPIC", "REPORT_WEBHOOK_URL", "REELFEED_ENV", "LOG_LEVEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return config.LoadOptions{
		EnvFile: filepath.Join(dir, "missing.env"),
		Overrides: config.Overrides{
			StorePath: filepath.Join(dir, "store"),
			IndexPath: filepath.Join(dir, "index"),
			LogLevel:  "error",
		},
	}
}

func TestContainer_BuildsRunner(t *testing.T) {
	opts := testOptions(t)
	t.Setenv("PROVIDER_API_KEY", "test-key")

	injector := NewContainer(opts)
	defer Close(injector)

	runner, err := do.Invoke[*pipeline.Runner](injector)
	require.NoError(t, err)
	assert.Len(t, runner.Jobs(), 3)

	_, err = do.Invoke[*recovery.Scanner](injector)
	require.NoError(t, err)
}

func TestContainer_RunnerNeedsAPIKey(t *testing.T) {
	injector := NewContainer(testOptions(t))
	defer Close(injector)

	_, err := do.Invoke[*pipeline.Runner](injector)
	require.Error(t, err)

	scanner, err := do.Invoke[*recovery.Scanner](injector)
	require.NoError(t, err, "dry-run recovery works without credentials")

	_, err = scanner.Run(context.Background(), recovery.Options{})
	assert.Equal(t, domainerrors.CodeConfig, domainerrors.KindOf(err))
}

func TestClose_Idempotent(t *testing.T) {
	injector := NewContainer(testOptions(t))
	Close(injector)
	Close(injector)
}
