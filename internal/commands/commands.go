// Package commands holds the kimai-deck command tree.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"kimai-deck/internal/config"
)

// rootOptions are shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool

	log *slog.Logger
	cfg config.Config
}

func New() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "kimai-deck",
		Short:         "Toggle Kimai time tracking from a deck of keys.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ro.log = newLogger(os.Stdout, ro.verbose)
			slog.SetDefault(ro.log)

			cfg, err := config.Load(ro.configPath)
			if err != nil {
				ro.log.Error("failed to load config", slog.String("error", err.Error()))
				return err
			}
			ro.cfg = cfg
			ro.log.Debug("config loaded",
				slog.String("path", cfg.Path),
				slog.String("kimai", cfg.Kimai.URL),
				slog.Int("keys", len(cfg.Keys)),
			)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "key layout file (default: $KIMAI_DECK_CONFIG or the user config dir)")
	cmd.PersistentFlags().BoolVarP(&ro.verbose, "verbose", "v", false, "enable verbose logging")

	AddCommands(cmd, ro)
	return cmd
}

func AddCommands(topLevel *cobra.Command, ro *rootOptions) {
	addRun(topLevel, ro)
	addStatus(topLevel, ro)
	addCatalog(topLevel, ro)
	addHistory(topLevel, ro)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
