// cmd/deckhand/main.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deckhand/internal/config"
	"deckhand/internal/manager"
	"deckhand/internal/scheduler"
	"deckhand/internal/types/options"
	"deckhand/pkg/utils"
)

func main() {
	cfg := config.NewConfig()

	rootCmd := &cobra.Command{
		Use:   "deckhand",
		Short: "Worker container installer and update manager",
		Long: `Installs and maintains the deckhand worker container on this host.

Checks host requirements, runs the worker's interactive first-time setup,
and replaces the running container with freshly pulled images on demand or
on a schedule.

Environment variables:
  DECKHAND_LOG_LEVEL   : Logging level (debug, info, warn, error)
  DECKHAND_IMAGE       : Worker image reference
  DECKHAND_CONTAINER   : Worker container name
  DECKHAND_VOLUME      : Durable volume holding worker credentials
  DECKHAND_DB          : Journal database path
  DECKHAND_APPRISE_URL : Apprise URL for notifications
  DECKHAND_UPDATE_CRON : Cron expression for scheduled updates`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.LoadFromEnv(); err != nil {
				return err
			}
			if err := cfg.SetLogLevel(cfg.LogLevel); err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			return cfg.Validate()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfg.LogLevel, "log-level", "l",
		config.DefaultLogLevel, "Log level")
	rootCmd.PersistentFlags().StringVarP(&cfg.DbPath, "db", "D",
		config.DefaultDbPath, "Journal database path")
	rootCmd.PersistentFlags().StringVarP(&cfg.AppriseURL, "apprise-url", "a",
		"", "Apprise URL for notifications")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Yes, "yes", "y",
		false, "Assume yes on every prompt")
	rootCmd.PersistentFlags().BoolVar(&cfg.IgnoreWarnings, "ignore-warnings",
		false, "Proceed past requirement warnings without asking")

	rootCmd.AddCommand(
		newCheckCmd(cfg),
		newInstallCmd(cfg),
		newUpdateCmd(cfg),
		newScheduleCmd(cfg),
		newHistoryCmd(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		// A declined prompt is a deliberate operator decision, not a
		// failure.
		if errors.Is(err, manager.ErrDeclined) {
			cfg.Logger.Info("aborted by operator")
			os.Exit(0)
		}
		cfg.Logger.Error(err)
		os.Exit(1)
	}
}

func newCheckCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check host requirements",
		Long: `Evaluate this host against the worker's requirements and print the
report. Exits nonzero when a hard requirement is not met; warnings alone
exit zero.

Examples:
  # Check the current host
  deckhand check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager.New(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			verdict := m.CheckHost(cmd.Context())
			if errs := verdict.Errors(); len(errs) > 0 {
				return fmt.Errorf("%d host requirement(s) not met (see %s)",
					len(errs), manager.TroubleshootingURL)
			}
			return nil
		},
	}
}

func newInstallCmd(cfg *config.Config) *cobra.Command {
	var opts = options.NewInstallOptions()

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the worker container",
		Long: `Install the worker on this host: check requirements, pull the image,
run the worker's interactive setup, then start the long-running container.

Examples:
  # Standard install
  deckhand install

  # Install a specific tag
  deckhand install --image-tag v1.4.2

  # Install and stay running, applying scheduled updates
  deckhand install --auto-update`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager.New(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx := cmd.Context()
			if err := m.EnforceRequirements(ctx); err != nil {
				return err
			}

			result, err := m.Install(ctx, opts)
			if err != nil {
				return err
			}
			if result.Cancelled {
				cfg.Logger.Info("installation cancelled during worker setup")
				return nil
			}
			if result.Error != nil {
				return result.Error
			}

			if !cfg.AutoUpdate {
				return nil
			}

			s := scheduler.NewScheduler(m, scheduler.Options{Logger: cfg.Logger})
			if err := s.Start(cfg.UpdateCron); err != nil {
				return err
			}
			if next := s.NextRun(); next != nil {
				cfg.Logger.Infof("first update scheduled at: %s",
					next.Format("2006-01-02 15:04:05"))
			}
			s.Wait()
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.ImageTag, "image-tag", "t", "",
		"Image tag or full reference to install instead of the configured one")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false,
		"Show what would be installed without making changes")
	cmd.Flags().BoolVar(&cfg.AutoUpdate, "auto-update", false,
		"Stay running after install and apply updates on the configured schedule")
	cmd.Flags().StringVar(&cfg.UpdateCron, "update-cron", config.DefaultCron,
		"Cron expression used with --auto-update")

	return cmd
}

func newUpdateCmd(cfg *config.Config) *cobra.Command {
	var opts = options.NewUpdateOptions()

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the worker container",
		Long: `Pull the configured image and replace the running worker with it. The
old container is stopped before the new one starts, then renamed aside and
removed after confirmation. There is no automatic rollback: on failure the
rollover stops where it is and reports the stage that failed.

Examples:
  # Update to the configured image
  deckhand update

  # Update to a specific tag
  deckhand update --image-tag v1.4.2

  # See what would happen
  deckhand update --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager.New(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx := cmd.Context()
			if err := m.EnforceRequirements(ctx); err != nil {
				return err
			}

			result, err := m.Update(ctx, opts)
			if err != nil {
				return err
			}
			if result.Error != nil {
				return result.Error
			}
			if result.OldKept {
				cfg.Logger.Infof("previous container kept as %s-old", result.ContainerName)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.ImageTag, "image-tag", "t", "",
		"Image tag or full reference to update to instead of the configured one")
	cmd.Flags().BoolVar(&opts.CloneVolumes, "clone-volumes", false,
		"Mount the old container's volumes into the new one")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false,
		"Show what would be updated without making changes")

	return cmd
}

func newScheduleCmd(cfg *config.Config) *cobra.Command {
	var opts = options.NewUpdateOptions()

	cmd := &cobra.Command{
		Use:   `schedule ["cron-expression"]`,
		Short: "Run updates on a schedule",
		Long: `Keep running and update the worker on a cron schedule. Without an
argument the configured expression is used (DECKHAND_UPDATE_CRON, default
"0 4 * * *").

Cron Expression Format:
  ┌───────────── minute (0 - 59)
  │ ┌───────────── hour (0 - 23)
  │ │ ┌───────────── day of month (1 - 31)
  │ │ │ ┌───────────── month (1 - 12)
  │ │ │ │ ┌───────────── day of week (0 - 6)
  │ │ │ │ │
  * * * * *

Examples:
  # Nightly at 04:00
  deckhand schedule

  # Every six hours
  deckhand schedule "0 */6 * * *"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager.New(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			cronExpr := cfg.UpdateCron
			if len(args) > 0 {
				cronExpr = args[0]
			}

			s := scheduler.NewScheduler(m, scheduler.Options{
				UpdateOpts: opts,
				Logger:     cfg.Logger,
			})
			if err := s.Start(cronExpr); err != nil {
				return err
			}
			if next := s.NextRun(); next != nil {
				cfg.Logger.Infof("first update scheduled at: %s",
					next.Format("2006-01-02 15:04:05"))
			}
			s.Wait()
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.ImageTag, "image-tag", "t", "",
		"Image tag or full reference to update to instead of the configured one")
	cmd.Flags().BoolVar(&opts.CloneVolumes, "clone-volumes", false,
		"Mount the old container's volumes into the new one")

	return cmd
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var opts options.HistoryOptions
	var since string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show install and update history",
		Long: `Show recorded install and update attempts, newest first.

Examples:
  # Full history
  deckhand history

  # Last 5 entries
  deckhand history -n 5

  # Entries since a date, as JSON
  deckhand history -S 2026-01-01 -j`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since != "" {
				t, err := utils.ParseTime(since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD)")
				}
				opts.Since = t
			}

			m, err := manager.New(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			entries, err := m.History(opts)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				cfg.Logger.Info("no history found")
				return nil
			}

			if opts.JSON {
				if err := json.NewEncoder(os.Stdout).Encode(entries); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
				return nil
			}

			for _, e := range entries {
				cfg.Logger.Infof("[%s] %s %s (ID: %d)",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Operation, e.Container, e.ID)
				cfg.Logger.Infof("  Status: %s", e.Status)
				if e.Stage != "" {
					cfg.Logger.Infof("  Stage: %s", e.Stage)
				}
				switch {
				case e.FromImage != "" && e.ToImage != "":
					cfg.Logger.Infof("  Image: %s -> %s", e.FromImage, e.ToImage)
				case e.ToImage != "":
					cfg.Logger.Infof("  Image: %s", e.ToImage)
				}
				if e.Message != "" {
					cfg.Logger.Infof("  Message: %s", e.Message)
				}
				cfg.Logger.Info("")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Container, "container", "",
		"Filter on container name")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0,
		"Limit number of entries")
	cmd.Flags().BoolVarP(&opts.JSON, "json", "j", false,
		"Output in JSON format")
	cmd.Flags().StringVarP(&since, "since", "S", "",
		"Show entries since date (YYYY-MM-DD)")

	return cmd
}
