package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"WolverineBrief/internal/app"
	"WolverineBrief/internal/config"
	"WolverineBrief/internal/logging"
)

type cli struct {
	configPath string
	app        *app.Application
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "wolverinebrief",
		Short: "Weekly neighbourhood digest pipeline",
		Long: `wolverinebrief collects local open-data records, composes a weekly
digest and sends it to subscribers.

Example usage:
  wolverinebrief collect                   # fetch sources into the item store
  wolverinebrief compose --end 2026-10-12  # render the week ending that day
  wolverinebrief distribute --dry-run      # list who would receive the digest
  wolverinebrief run                       # all three stages in order`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $WOLVERINE_BRIEF_CONFIG)")

	root.AddCommand(c.collectCmd(), c.composeCmd(), c.distributeCmd(), c.runCmd())
	return root
}

func (c *cli) setup() error {
	if c.configPath != "" {
		if err := os.Setenv("WOLVERINE_BRIEF_CONFIG", c.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format).With("run_id", uuid.NewString())
	c.app = app.New(cfg, c.logger)
	return nil
}

func (c *cli) collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Fetch every configured source and store new items",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.app.RunCollect(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d seen=%d dropped=%d warnings=%d\n",
				len(result.Inserted), result.Seen, result.Dropped, len(result.Warnings))
			return nil
		},
	}
}

func (c *cli) composeCmd() *cobra.Command {
	var end string
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Render the weekly digest from stored items",
		RunE: func(cmd *cobra.Command, args []string) error {
			endAt, err := parseEnd(end, c.cfg.Digest.Location())
			if err != nil {
				return err
			}
			digest, err := c.app.RunCompose(cmd.Context(), endAt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "items=%d sections=%d written=%s\n",
				digest.ItemCount(), len(digest.Sections), c.app.DigestPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&end, "end", "", "window end date YYYY-MM-DD, exclusive (default now)")
	return cmd
}

func (c *cli) distributeCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Send the last composed digest to active subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.app.RunDistribute(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d succeeded=%d failed=%d\n",
				report.Attempted, report.Succeeded, report.Failed)
			for _, f := range report.Failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", f.SubscriberID, f.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log recipients without sending")
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	var (
		end    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect, compose and distribute in one invocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			endAt, err := parseEnd(end, c.cfg.Digest.Location())
			if err != nil {
				return err
			}
			return c.app.Run(cmd.Context(), endAt, dryRun)
		},
	}
	cmd.Flags().StringVar(&end, "end", "", "window end date YYYY-MM-DD, exclusive (default now)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log recipients without sending")
	return cmd
}

// parseEnd reads a calendar date as midnight in loc; empty means now.
func parseEnd(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	end, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --end %q: want YYYY-MM-DD", value)
	}
	return end, nil
}
