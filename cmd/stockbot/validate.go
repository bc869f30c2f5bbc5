package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stockbot/internal/app"
	"stockbot/internal/config"
	"stockbot/internal/task/scheduler"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file and show the next poll times",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateConfig(cmd.OutOrStdout(), cfgPath, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(w io.Writer, path string, now time.Time) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", red("FAIL"), path)
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				fmt.Fprintf(w, "  - %s\n", line)
			}
		}
		return fmt.Errorf("config invalid")
	}

	fmt.Fprintf(w, "%s %s\n", green("OK"), path)
	fmt.Fprintf(w, "  role bindings: %d, excluded seeds: %d, excluded gear: %d\n",
		len(cfg.Roles.Bindings), len(cfg.Roles.ExcludedSeeds), len(cfg.Roles.ExcludedGear))
	if cfg.Storage != nil && cfg.Storage.Driver != "" {
		fmt.Fprintf(w, "  storage: %s\n", cfg.Storage.Driver)
	}

	if !cfg.Scheduler.IsEnabled() {
		fmt.Fprintln(w, "  scheduler: disabled")
		return nil
	}
	sched, err := app.Schedule(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  schedule: %s (offset %s, %s)\n", cyan(sched.CronSpec()), sched.Offset, sched.Location)
	for _, t := range scheduler.Upcoming(sched, now, 3) {
		fmt.Fprintf(w, "  next: %s\n", t.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
