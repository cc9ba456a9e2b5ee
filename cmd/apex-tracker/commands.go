package main

import (
	"container/ring"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/apexstats/apex-tracker/internal/cache"
	"github.com/apexstats/apex-tracker/internal/cdata"
	"github.com/apexstats/apex-tracker/internal/config"
	"github.com/apexstats/apex-tracker/internal/games"
	"github.com/apexstats/apex-tracker/internal/network"
	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/apexstats/apex-tracker/internal/store"
	"github.com/apexstats/apex-tracker/internal/ui"
	"github.com/dustin/go-humanize"
	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

var (
	errNoLogFile     = errors.New("no log_file configured, logs are written to stderr")
	errUnknownAction = errors.New("unknown migrate action")
	errPlayerMissing = errors.New("player is not configured")
)

func reconstructCmd() *cobra.Command {
	var uid int64

	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Rebuild game events from stored snapshots",
		Long:  "Scan the stored snapshot history and record any matches not seen before. Safe to run repeatedly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			catalog, errCatalog := cdata.LoadFile(userConfig.CatalogPath)
			if errCatalog != nil {
				return errors.Join(errCatalog, errApp)
			}

			database, errDB := openDatabase(cmd.Context(), userConfig)
			if errDB != nil {
				return errDB
			}
			defer closeWithLog("database", database)

			processor := games.NewProcessor(store.New(database), catalog)

			var (
				stats   games.Stats
				errStat error
			)
			if uid > 0 {
				stats, errStat = processor.ProcessPlayer(cmd.Context(), uid)
			} else {
				stats, errStat = processor.ProcessAll(cmd.Context())
			}

			if errStat != nil {
				return errors.Join(errStat, errApp)
			}

			cmd.Println(ui.Table([]string{"Found", "Inserted", "Failed"}, [][]string{{
				humanize.Comma(int64(stats.Found)),
				humanize.Comma(int64(stats.Inserted)),
				humanize.Comma(int64(stats.Failed)),
			}}))

			return nil
		},
	}

	cmd.Flags().Int64Var(&uid, "uid", 0, "Only reconstruct a single player")

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the cdata classification catalog",
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Download the cdata source and write a new catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			fsCache, errCache := cache.New(config.PathCache(config.CacheDirName), cache.DefaultMaxAge)
			if errCache != nil {
				return errors.Join(errCache, errApp)
			}

			updater := cdata.NewUpdater(network.NewClient(userConfig.HTTPTimeout), fsCache, userConfig.CatalogURL)
			catalog, errUpdate := updater.Update(cmd.Context(), userConfig.CatalogPath)
			if errUpdate != nil {
				return errors.Join(errUpdate, errApp)
			}

			cmd.Printf("Wrote catalog %s with %s entries to %s\n", catalog.Version(),
				humanize.Comma(int64(catalog.Len())), userConfig.CatalogPath)

			return nil
		},
	}

	classify := &cobra.Command{
		Use:   "classify <key>...",
		Short: "Show how cdata keys are classified",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rows := make([][]string, 0, len(args))
			for _, key := range args {
				class := cdata.Classify(key)
				rows = append(rows, []string{key, string(class.Category), string(class.Legend),
					string(class.Grouping), string(class.Mode)})
			}

			cmd.Println(ui.Table([]string{"Key", "Category", "Legend", "Grouping", "Mode"}, rows))
		},
	}

	cmd.AddCommand(update, classify)

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ingestion counters for every tracked player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			database, errDB := openDatabase(cmd.Context(), userConfig)
			if errDB != nil {
				return errDB
			}
			defer closeWithLog("database", database)

			queries := store.New(database)
			tasks, errTasks := queries.Tasks(cmd.Context())
			if errTasks != nil {
				return errors.Join(errTasks, errApp)
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				played, errGames := queries.GameEventCount(cmd.Context(), task.UID)
				if errGames != nil {
					return errors.Join(errGames, errApp)
				}

				online, inMatch := "-", "-"
				if latest, errLatest := queries.LatestSnapshot(cmd.Context(), task.UID); errLatest == nil {
					online, inMatch = ui.Flag(latest.Online), ui.Flag(latest.InMatch)
				}

				fetchErrors := humanize.Comma(task.FetchErrors)
				if task.FetchErrors > 0 {
					fetchErrors = ui.Error(fetchErrors)
				}

				rows = append(rows, []string{
					task.PlayerName,
					strconv.FormatInt(task.UID, 10),
					online,
					inMatch,
					humanize.Comma(task.RecordsFetched),
					humanize.Comma(task.RecordsInserted),
					fetchErrors,
					humanize.Comma(task.RateLimits),
					humanize.Comma(played),
					humanize.Time(task.LastUpdate),
				})
			}

			cmd.Println(ui.Title(fmt.Sprintf("Tracking %d players", len(tasks))))
			cmd.Println(ui.Table([]string{
				"Name", "UID", "Online", "In Match", "Fetched", "Stored", "Errors", "Limited", "Games", "Updated",
			}, rows))

			return nil
		},
	}
}

func logsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the application log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			if userConfig.LogFile == "" {
				return errNoLogFile
			}

			return printLog(cmd.Context().Done(), cmd.OutOrStdout(), config.LogPath(userConfig.LogFile), lines, follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines as they are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print first")

	return cmd
}

// printLog writes the last n lines of the file, then keeps following it until done when follow is set.
func printLog(done <-chan struct{}, output io.Writer, logPath string, lines int, follow bool) error {
	backlog, errBacklog := tail.TailFile(logPath, tail.Config{Logger: tail.DiscardingLogger, MustExist: true})
	if errBacklog != nil {
		return errors.Join(errBacklog, errApp)
	}

	recent := ring.New(max(1, lines))
	for line := range backlog.Lines {
		if line.Err != nil {
			continue
		}

		recent.Value = line.Text
		recent = recent.Next()
	}

	if err := backlog.Stop(); err != nil {
		slog.Debug("Failed to stop log reader", slog.String("error", err.Error()))
	}

	if lines > 0 {
		recent.Do(func(value any) {
			if text, ok := value.(string); ok {
				_, _ = fmt.Fprintln(output, text)
			}
		})
	}

	if !follow {
		return nil
	}

	tailFile, errTail := tail.TailFile(logPath, tail.Config{
		// Start at the end of the file, only watch for new lines.
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
		Follow:   true,
		ReOpen:   true,
	})
	if errTail != nil {
		return errors.Join(errTail, errApp)
	}

	defer func() {
		if errStop := tailFile.Stop(); errStop != nil {
			slog.Error("Failed to stop tailing log cleanly", slog.String("error", errStop.Error()))
		}
	}()

	for {
		select {
		case line := <-tailFile.Lines:
			if line == nil {
				continue
			}

			_, _ = fmt.Fprintln(output, line.Text)
		case <-done:
			return nil
		}
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|up-one|down-one]",
		Short:     "Apply or revert database schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "up-one", "down-one"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := store.MigrateUp
			if len(args) == 1 {
				switch args[0] {
				case "up":
				case "down":
					action = store.MigrateDn
				case "up-one":
					action = store.MigrateUpOne
				case "down-one":
					action = store.MigrateDownOne
				default:
					return fmt.Errorf("%w: %s", errUnknownAction, args[0])
				}
			}

			_, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			database, errDB := store.Open(cmd.Context(), userConfig.DatabasePath, false)
			if errDB != nil {
				return errors.Join(errDB, errApp)
			}
			defer closeWithLog("database", database)

			if err := store.Migrate(database, action); err != nil {
				return errors.Join(err, errApp)
			}

			cmd.Println("Migration complete")

			return nil
		},
	}
}

func playersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Manage the tracked players",
	}

	var platform string

	add := &cobra.Command{
		Use:   "add <uid> <name>",
		Short: "Start tracking a player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, errUID := strconv.ParseInt(args[0], 10, 64)
			if errUID != nil {
				return errors.Join(errUID, config.ErrInvalidConfig)
			}

			parsed, valid := respawn.ParsePlatform(platform)
			if !valid {
				return fmt.Errorf("%w: unknown platform %q", config.ErrInvalidConfig, platform)
			}

			loader, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			userConfig.Players = append(userConfig.Players, config.Player{UID: uid, Name: args[1], Platform: parsed})
			if err := userConfig.Validate(); err != nil {
				return err
			}

			if err := loader.Write(userConfig); err != nil {
				return errors.Join(err, errApp)
			}

			cmd.Printf("Tracking %s (%d) on %s\n", args[1], uid, parsed)

			return nil
		},
	}
	add.Flags().StringVar(&platform, "platform", string(respawn.PlatformPC), "Platform: PC, PS4, X1 or SWITCH")

	remove := &cobra.Command{
		Use:   "remove <uid>",
		Short: "Stop tracking a player, stored history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, errUID := strconv.ParseInt(args[0], 10, 64)
			if errUID != nil {
				return errors.Join(errUID, config.ErrInvalidConfig)
			}

			loader, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			tracked := len(userConfig.Players)
			userConfig.Players = slices.DeleteFunc(userConfig.Players, func(player config.Player) bool {
				return player.UID == uid
			})

			if len(userConfig.Players) == tracked {
				return fmt.Errorf("%w: %d", errPlayerMissing, uid)
			}

			return loader.Write(userConfig)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tracked players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, userConfig, errConfig := loadConfig(nil)
			if errConfig != nil {
				return errConfig
			}

			rows := make([][]string, 0, len(userConfig.Players))
			for _, player := range userConfig.Players {
				rows = append(rows, []string{player.Name, strconv.FormatInt(player.UID, 10), string(player.Platform)})
			}

			cmd.Println(ui.Table([]string{"Name", "UID", "Platform"}, rows))

			return nil
		},
	}

	cmd.AddCommand(add, remove, list)

	return cmd
}
