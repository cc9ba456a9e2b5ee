package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/fang"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var (
	BuildVersion   = "master"
	BuildCommit    = "00000000"
	BuildDate      = time.Now().Format("2006-01-02T15:04:05Z")
	BuildGoVersion = runtime.Version()
	cfgFile        string
	rootCmd        = &cobra.Command{
		Use:   "apex-tracker",
		Short: "Apex Legends match tracker",
		Long:  `apex-tracker - Polls player live state and reconstructs played matches for Apex Legends`,
		RunE:  run,
	}

	runCmd = &cobra.Command{
		Use:               "run",
		Short:             "Poll the configured players",
		Long:              "Poll the configured players, store changed snapshots and reconstruct matches as they end",
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE:              run,
	}

	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		Long:              "Print detailed version information about apex-tracker",
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		Run:               version,
	}
)

var errApp = errors.New("application error")

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.AddCommand(runCmd, versionCmd, reconstructCmd(), catalogCmd(), statusCmd(), logsCmd(),
		migrateCmd(), playersCmd())

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		slog.Error("Exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func version(_ *cobra.Command, _ []string) {
	fmt.Printf("apex-tracker - Apex Legends match tracker\n\n") //nolint:forbidigo
	fmt.Printf("  Version: %s\n", BuildVersion)                 //nolint:forbidigo
	fmt.Printf("  Commit:  %s\n", BuildCommit)                  //nolint:forbidigo
	fmt.Printf("  Built:   %s\n", BuildDate)                    //nolint:forbidigo
	fmt.Printf("  Runtime: %s\n\n", BuildGoVersion)             //nolint:forbidigo
}
