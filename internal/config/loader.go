package config

import (
	"errors"
	"log/slog"

	"github.com/apexstats/apex-tracker/internal/poller"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader handles setting up viper, loading configuration from files, and broadcasting configuration changes.
type Loader struct {
	*viper.Viper
	changes chan<- Config
}

// NewLoader builds a loader. Reloads are forwarded on changes once Watch is called.
func NewLoader(changes chan<- Config) *Loader {
	pacing := poller.DefaultPacing()
	options := poller.DefaultOptions()

	loader := Loader{changes: changes, Viper: viper.New()}
	loader.SetDefault("database_path", Path(DefaultDBName))
	loader.SetDefault("log_file", "")
	loader.SetDefault("log_level", "info")
	loader.SetDefault("stryder_url", DefaultStryderURL)
	loader.SetDefault("user_agent", "Respawn HTTPS/1.0")
	loader.SetDefault("http_timeout", DefaultHTTPTimeout)
	loader.SetDefault("online_delay", pacing.OnlineDelay)
	loader.SetDefault("offline_delay", pacing.OfflineDelay)
	loader.SetDefault("slowdown_step", pacing.SlowdownStep)
	loader.SetDefault("slowdown_decay", pacing.SlowdownDecay)
	loader.SetDefault("max_concurrent_fetches", options.MaxConcurrent)
	loader.SetDefault("liveness_interval", options.LivenessInterval)
	loader.SetDefault("max_restarts", options.MaxRestarts)
	loader.SetDefault("reconstruct_interval", "15m")
	loader.SetDefault("catalog_path", Path(DefaultCatalogName))
	loader.SetDefault("catalog_url", DefaultCatalogURL)
	loader.SetDefault("players", []map[string]any{})
	loader.SetConfigName(DefaultConfigName)
	loader.SetConfigType("yaml")
	loader.SetEnvPrefix(EnvPrefix)
	loader.AddConfigPath(Path(""))
	loader.AddConfigPath(".")
	loader.AutomaticEnv()

	return &loader
}

// Watch starts watching the config file in use and forwards every valid reload.
func (cl *Loader) Watch() {
	if cl.changes == nil {
		return
	}

	cl.OnConfigChange(cl.onConfigChange)
	cl.WatchConfig()
}

func (cl *Loader) Path() string {
	return cl.ConfigFileUsed()
}

func (cl *Loader) onConfigChange(in fsnotify.Event) {
	if !in.Has(fsnotify.Write) && !in.Has(fsnotify.Rename) && !in.Has(fsnotify.Create) {
		return
	}

	slog.Debug("External config reload triggered", slog.String("path", in.Name))
	config, err := cl.Read()
	if err != nil {
		slog.Error("Error reading config", slog.String("error", err.Error()))

		return
	}

	cl.changes <- config
}

// Write persists the player list, which is the only setting the CLI edits.
func (cl *Loader) Write(config Config) error {
	players := make([]map[string]any, 0, len(config.Players))
	for _, player := range config.Players {
		players = append(players, map[string]any{
			"uid":      player.UID,
			"name":     player.Name,
			"platform": string(player.Platform),
		})
	}

	cl.Set("players", players)

	if err := cl.WriteConfig(); err != nil {
		if errSafe := cl.SafeWriteConfig(); errSafe != nil {
			return errors.Join(err, errSafe, errConfigWrite)
		}
	}

	return nil
}

// Read loads the config file, if any, on top of the defaults and validates the result.
func (cl *Loader) Read() (Config, error) {
	if err := cl.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return Config{}, errors.Join(err, errConfigRead)
		}

		slog.Debug("No config file found, using defaults")
	}

	var config Config
	if err := cl.Unmarshal(&config); err != nil {
		return Config{}, errors.Join(err, errConfigRead)
	}

	if err := config.Validate(); err != nil {
		return Config{}, errors.Join(err, errConfigRead)
	}

	return config, nil
}

// PollerOptions maps the pacing and supervision settings onto the poller.
func (c Config) PollerOptions() poller.Options {
	return poller.Options{
		Pacing: poller.Pacing{
			OnlineDelay:   c.OnlineDelay,
			OfflineDelay:  c.OfflineDelay,
			SlowdownStep:  c.SlowdownStep,
			SlowdownDecay: c.SlowdownDecay,
		},
		FetchTimeout:     c.HTTPTimeout,
		MaxConcurrent:    c.MaxConcurrentFetches,
		LivenessInterval: c.LivenessInterval,
		MaxRestarts:      c.MaxRestarts,
	}
}

func (c Config) PollerPlayers() []poller.Player {
	players := make([]poller.Player, 0, len(c.Players))
	for _, player := range c.Players {
		players = append(players, poller.Player{UID: player.UID, Name: player.Name, Platform: player.Platform})
	}

	return players
}
