// Package config loads the apex-tracker settings and sets up logging.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/apexstats/apex-tracker/internal/respawn"
)

var (
	errConfigWrite   = errors.New("failed to write config file")
	errConfigRead    = errors.New("failed to read config file")
	errLoggerInit    = errors.New("failed to initialize logger")
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	ConfigDirName      = "apex-tracker"
	DefaultConfigName  = "apex-tracker"
	DefaultDBName      = "apex-tracker.db"
	DefaultLogName     = "apex-tracker.log"
	DefaultCatalogName = "cdata.json"
	CacheDirName       = "cache"
	EnvPrefix          = "apextracker"
	DefaultHTTPTimeout = 15 * time.Second
	DefaultStryderURL  = "https://r5-crossplay.r5prod.stryder.respawn.com/user.php"
	DefaultCatalogURL  = "https://raw.githubusercontent.com/apexstats/cdata/main/cdata.json"
)

type Config struct {
	DatabasePath string `mapstructure:"database_path"`
	// LogFile is relative to the config dir. Empty logs to stderr.
	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	StryderURL  string        `mapstructure:"stryder_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	OnlineDelay   time.Duration `mapstructure:"online_delay"`
	OfflineDelay  time.Duration `mapstructure:"offline_delay"`
	SlowdownStep  time.Duration `mapstructure:"slowdown_step"`
	SlowdownDecay time.Duration `mapstructure:"slowdown_decay"`

	MaxConcurrentFetches int64         `mapstructure:"max_concurrent_fetches"`
	LivenessInterval     time.Duration `mapstructure:"liveness_interval"`
	MaxRestarts          int           `mapstructure:"max_restarts"`
	ReconstructInterval  time.Duration `mapstructure:"reconstruct_interval"`

	CatalogPath string `mapstructure:"catalog_path"`
	CatalogURL  string `mapstructure:"catalog_url"`

	Players []Player `mapstructure:"players"`
}

type Player struct {
	UID      int64            `mapstructure:"uid"`
	Name     string           `mapstructure:"name"`
	Platform respawn.Platform `mapstructure:"platform"`
}

// Validate checks the values that would otherwise fail deep inside a running poller.
func (c *Config) Validate() error {
	var errs []error

	if c.StryderURL == "" {
		errs = append(errs, fmt.Errorf("%w: stryder_url is required", ErrInvalidConfig))
	}

	for name, value := range map[string]time.Duration{
		"http_timeout":  c.HTTPTimeout,
		"online_delay":  c.OnlineDelay,
		"offline_delay": c.OfflineDelay,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name))
		}
	}

	if c.SlowdownStep < 0 || c.SlowdownDecay < 0 {
		errs = append(errs, fmt.Errorf("%w: slowdown values cannot be negative", ErrInvalidConfig))
	}

	seen := map[int64]bool{}
	for idx, player := range c.Players {
		if player.UID <= 0 {
			errs = append(errs, fmt.Errorf("%w: players[%d] has no uid", ErrInvalidConfig, idx))
		}

		if player.Platform == "" {
			player.Platform = respawn.PlatformPC
		}

		platform, valid := respawn.ParsePlatform(string(player.Platform))
		if !valid {
			errs = append(errs, fmt.Errorf("%w: players[%d] has unknown platform %q", ErrInvalidConfig, idx, player.Platform))
		}
		c.Players[idx].Platform = platform

		if seen[player.UID] {
			errs = append(errs, fmt.Errorf("%w: players[%d] duplicates uid %d", ErrInvalidConfig, idx, player.UID))
		}
		seen[player.UID] = true
	}

	return errors.Join(errs...)
}

// Path generates a path pointing to the filename under this apps defined $XDG_CONFIG_HOME.
func Path(name string) string {
	fullPath, errFullPath := xdg.ConfigFile(path.Join(ConfigDirName, name))
	if errFullPath != nil {
		panic(errFullPath)
	}

	return fullPath
}

func PathCache(name string) string {
	cacheDir, found := os.LookupEnv("CACHE_DIR")
	if found && cacheDir != "" {
		return cacheDir
	}

	return path.Join(xdg.CacheHome, ConfigDirName, name)
}

// LogPath resolves a configured log file name. Relative names live under the config dir.
func LogPath(logFile string) string {
	if logFile == "" || filepath.IsAbs(logFile) {
		return logFile
	}

	return Path(logFile)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LoggerInit sets up the slog global handler. An empty logPath writes to stderr.
func LoggerInit(logPath string, level slog.Level) (io.Closer, error) {
	var (
		output io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)

	if logPath != "" {
		logFile, errLogFile := os.OpenFile(LogPath(logPath), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if errLogFile != nil {
			return nil, errors.Join(errLogFile, errLoggerInit)
		}

		output = logFile
		closer = logFile
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}))

	slog.SetDefault(logger)

	return closer, nil
}
