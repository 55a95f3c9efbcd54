// Package cli implements the toyrent command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Kerhoff/toyrent/internal/config"
	"github.com/Kerhoff/toyrent/pkg/logger"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// appFactory builds the App for a command; tests replace it
type appFactory func(ctx context.Context) (*App, error)

func defaultFactory(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg, logger.NewWithOutput(cfg.LogLevel, os.Stderr))
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultFactory)
}

func newRootCommand(factory appFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "toyrent",
		Short: "Toy rental subscription client",
		Long: color.CyanString(`toyrent - toy rental subscription client

Signs in with a one-time code, keeps a local copy of the account
(children, subscriptions, delivery addresses, plans) and serves it
to local pages over HTTP and WebSocket.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newServeCommand(factory))
	rootCmd.AddCommand(newLoginCommand(factory))
	rootCmd.AddCommand(newSyncCommand(factory))
	rootCmd.AddCommand(newChildrenCommand(factory))
	rootCmd.AddCommand(newPlansCommand(factory))
	rootCmd.AddCommand(newLogoutCommand(factory))

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			title := color.New(color.FgCyan, color.Bold)

			title.Fprint(out, "toyrent version: ")
			fmt.Fprintln(out, Version)
			title.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			title.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			title.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}

// withApp builds the App, runs fn and closes the App
func withApp(cmd *cobra.Command, factory appFactory, fn func(a *App) error) error {
	a, err := factory(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
