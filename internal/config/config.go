package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// DefaultMaxFileBytes is the discovery size limit when none is configured.
const DefaultMaxFileBytes = 5 << 20

// Config holds the session and CLI configuration.
type Config struct {
	Root         string
	DryRun       bool
	Include      []string
	Exclude      []string
	NoGitignore  bool
	MaxFileBytes int64
	Fsync        bool
	DiffContext  int
	AuditDSN     string
	LibsqlToken  string
	LogLevel     string
	LogFormat    string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Root:         ".",
		Include:      []string{"**/*.py"},
		MaxFileBytes: DefaultMaxFileBytes,
		DiffContext:  3,
		LogLevel:     "warn",
		LogFormat:    "text",
	}
}

// Load reads a .env file from the working directory, if present, and then
// the PYMORPH_* environment. Values that do not parse keep their defaults.
func Load() *Config {
	_ = godotenv.Load()
	return LoadConfig()
}

// LoadFile is Load with an explicit .env path.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return LoadConfig(), nil
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := Default()

	if v := os.Getenv("PYMORPH_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("PYMORPH_INCLUDE"); v != "" {
		cfg.Include = splitList(v)
	}
	if v := os.Getenv("PYMORPH_EXCLUDE"); v != "" {
		cfg.Exclude = splitList(v)
	}
	cfg.DryRun = envBool("PYMORPH_DRY_RUN", cfg.DryRun)
	cfg.NoGitignore = envBool("PYMORPH_NO_GITIGNORE", cfg.NoGitignore)
	cfg.Fsync = envBool("PYMORPH_FSYNC", cfg.Fsync)

	if v := os.Getenv("PYMORPH_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.MaxFileBytes = n
		}
	}
	if v := os.Getenv("PYMORPH_DIFF_CONTEXT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DiffContext = n
		}
	}

	cfg.AuditDSN = os.Getenv("PYMORPH_AUDIT_DSN")
	cfg.LibsqlToken = os.Getenv("PYMORPH_LIBSQL_AUTH_TOKEN")
	if v := os.Getenv("PYMORPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("PYMORPH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	return cfg
}

// ApplyFlags overrides cfg with every flag the user set explicitly.
// Flags that are not defined on fs are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) {
	if fs.Changed("root") {
		c.Root, _ = fs.GetString("root")
	}
	if fs.Changed("dry-run") {
		c.DryRun, _ = fs.GetBool("dry-run")
	}
	if fs.Changed("include") {
		c.Include, _ = fs.GetStringSlice("include")
	}
	if fs.Changed("exclude") {
		c.Exclude, _ = fs.GetStringSlice("exclude")
	}
	if fs.Changed("no-gitignore") {
		c.NoGitignore, _ = fs.GetBool("no-gitignore")
	}
	if fs.Changed("audit-db") {
		c.AuditDSN, _ = fs.GetString("audit-db")
	}
	if fs.Changed("diff-context") {
		c.DiffContext, _ = fs.GetInt("diff-context")
	}
	if fs.Changed("verbose") {
		if v, _ := fs.GetBool("verbose"); v {
			c.LogLevel = "debug"
		}
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Root) == "" {
		errs = append(errs, errors.New("root must not be empty"))
	}
	if c.DiffContext < 0 {
		errs = append(errs, fmt.Errorf("diff context must not be negative, got %d", c.DiffContext))
	}
	if c.MaxFileBytes < 0 {
		errs = append(errs, fmt.Errorf("max file bytes must not be negative, got %d", c.MaxFileBytes))
	}
	if len(c.Include) == 0 {
		errs = append(errs, errors.New("at least one include pattern is required"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
