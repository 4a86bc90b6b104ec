package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"PYMORPH_ROOT",
	"PYMORPH_DRY_RUN",
	"PYMORPH_INCLUDE",
	"PYMORPH_EXCLUDE",
	"PYMORPH_NO_GITIGNORE",
	"PYMORPH_MAX_FILE_BYTES",
	"PYMORPH_FSYNC",
	"PYMORPH_DIFF_CONTEXT",
	"PYMORPH_AUDIT_DSN",
	"PYMORPH_LIBSQL_AUTH_TOKEN",
	"PYMORPH_LOG_LEVEL",
	"PYMORPH_LOG_FORMAT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearConfigEnv(t)

	cfg := LoadConfig()

	assert.Equal(t, ".", cfg.Root)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, []string{"**/*.py"}, cfg.Include)
	assert.Empty(t, cfg.Exclude)
	assert.Equal(t, int64(DefaultMaxFileBytes), cfg.MaxFileBytes)
	assert.Equal(t, 3, cfg.DiffContext)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.AuditDSN)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PYMORPH_ROOT", "src")
	t.Setenv("PYMORPH_DRY_RUN", "true")
	t.Setenv("PYMORPH_INCLUDE", "app/**/*.py, lib/*.py")
	t.Setenv("PYMORPH_EXCLUDE", "**/migrations/**")
	t.Setenv("PYMORPH_NO_GITIGNORE", "1")
	t.Setenv("PYMORPH_MAX_FILE_BYTES", "1024")
	t.Setenv("PYMORPH_FSYNC", "yes-please")
	t.Setenv("PYMORPH_DIFF_CONTEXT", "5")
	t.Setenv("PYMORPH_AUDIT_DSN", ":memory:")
	t.Setenv("PYMORPH_LOG_LEVEL", "DEBUG")
	t.Setenv("PYMORPH_LOG_FORMAT", "json")

	cfg := LoadConfig()

	assert.Equal(t, "src", cfg.Root)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, []string{"app/**/*.py", "lib/*.py"}, cfg.Include)
	assert.Equal(t, []string{"**/migrations/**"}, cfg.Exclude)
	assert.True(t, cfg.NoGitignore)
	assert.Equal(t, int64(1024), cfg.MaxFileBytes)
	assert.False(t, cfg.Fsync, "unparsable booleans keep the default")
	assert.Equal(t, 5, cfg.DiffContext)
	assert.Equal(t, ":memory:", cfg.AuditDSN)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_InvalidNumbersKeepDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PYMORPH_MAX_FILE_BYTES", "lots")
	t.Setenv("PYMORPH_DIFF_CONTEXT", "-2")

	cfg := LoadConfig()

	assert.Equal(t, int64(DefaultMaxFileBytes), cfg.MaxFileBytes)
	assert.Equal(t, 3, cfg.DiffContext)
}

func TestLoadFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PYMORPH_ROOT=project\nPYMORPH_DIFF_CONTEXT=1\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("PYMORPH_ROOT")
		os.Unsetenv("PYMORPH_DIFF_CONTEXT")
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "project", cfg.Root)
	assert.Equal(t, 1, cfg.DiffContext)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("pymorph", pflag.ContinueOnError)
	fs.String("root", ".", "")
	fs.Bool("dry-run", false, "")
	fs.StringSlice("include", nil, "")
	fs.StringSlice("exclude", nil, "")
	fs.Bool("verbose", false, "")
	fs.Int("diff-context", 3, "")
	require.NoError(t, fs.Parse([]string{"--root", "pkg", "--dry-run", "--exclude", "a/**,b/**", "--verbose"}))

	cfg := Default()
	cfg.ApplyFlags(fs)

	assert.Equal(t, "pkg", cfg.Root)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, []string{"**/*.py"}, cfg.Include, "unset flags keep loaded values")
	assert.Equal(t, []string{"a/**", "b/**"}, cfg.Exclude)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.DiffContext)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Root = " "
	cfg.DiffContext = -1
	cfg.Include = nil
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root must not be empty")
	assert.Contains(t, err.Error(), "diff context must not be negative")
	assert.Contains(t, err.Error(), "include pattern")
	assert.Contains(t, err.Error(), `unknown log format "xml"`)
}
