/*
commands.go - Subcommand implementations

  query        schedguard query <schedule> [--date D] [--config F]
                 [--quiet] [--verbose] [--format text|json]
  holidays     schedguard holidays [--year N]
  materialize  schedguard materialize <schedule> --from D --to D [--config F]
*/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/schedule-guard/engine"
)

// =============================================================================
// QUERY
// =============================================================================

func newQueryCmd() *cobra.Command {
	var (
		dateInput  string
		configPath string
		quiet      bool
		verbose    bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "query <schedule name>",
		Short: "Decide whether a schedule runs on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queryDate, err := parseQueryDate(dateInput)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			sc := cfg.findSchedule(args[0])
			if sc == nil {
				return fmt.Errorf("schedule not found: %s (available: %v)", args[0], cfg.scheduleNames())
			}

			calendar, err := buildCalendar(sc)
			if err != nil {
				return err
			}

			shouldRun, err := calendar.ShouldRun(queryDate)
			if err != nil {
				return err
			}
			status, err := calendar.Status(queryDate)
			if err != nil {
				return err
			}

			if !quiet {
				switch format {
				case "json":
					printQueryJSON(sc.Name, queryDate, shouldRun, status)
				case "text":
					printQueryText(sc, queryDate, shouldRun, status, verbose)
				default:
					return fmt.Errorf("unknown format %q: use text or json", format)
				}
			}

			skipExitCode = !shouldRun
			return nil
		},
	}

	cmd.Flags().StringVarP(&dateInput, "date", "d", "today", "query date (YYYY-MM-DD or 'today')")
	cmd.Flags().StringVarP(&configPath, "config", "c", "schedules.json", "path to JSON configuration file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress output, only use exit code")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed reasoning")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json")
	return cmd
}

func printQueryText(sc *ScheduleConfig, date engine.Date, shouldRun bool, status engine.RunStatus, verbose bool) {
	result := "SKIP"
	if shouldRun {
		result = "RUN"
	}
	fmt.Printf("Schedule: %s\n", sc.Name)
	fmt.Printf("Date:     %s\n", date)
	fmt.Printf("Status:   %s\n", status)
	fmt.Printf("Result:   %s\n", result)

	if verbose {
		fmt.Println("\nDetails:")
		fmt.Printf("  Rule Type: %s\n", sc.Rule.RuleType)
		if sc.Rule.RuleConfig != "" {
			fmt.Printf("  Rule Config: %s\n", sc.Rule.RuleConfig)
		}
		if len(sc.Deviations) > 0 {
			fmt.Printf("  Deviations: %d configured\n", len(sc.Deviations))
		}
	}
}

func printQueryJSON(name string, date engine.Date, shouldRun bool, status engine.RunStatus) {
	out := map[string]any{
		"schedule":  name,
		"date":      date.String(),
		"shouldRun": shouldRun,
		"status":    string(status),
	}
	json.NewEncoder(os.Stdout).Encode(out)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func newHolidaysCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "Print the US federal holidays of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = time.Now().Year()
			}
			for _, holiday := range engine.USFederalHolidays(year) {
				fmt.Printf("%s  %-9s %s\n", holiday, holiday.Weekday(), engine.USFederalHolidayName(holiday))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year to list (default: current year)")
	return cmd
}

// =============================================================================
// MATERIALIZE
// =============================================================================

func newMaterializeCmd() *cobra.Command {
	var (
		configPath string
		fromInput  string
		toInput    string
	)

	cmd := &cobra.Command{
		Use:   "materialize <schedule name>",
		Short: "Print the run dates of a schedule over a range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseQueryDate(fromInput)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := parseQueryDate(toInput)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			sc := cfg.findSchedule(args[0])
			if sc == nil {
				return fmt.Errorf("schedule not found: %s (available: %v)", args[0], cfg.scheduleNames())
			}

			calendar, err := buildCalendar(sc)
			if err != nil {
				return err
			}
			decisions, err := calendar.ShouldRunRange(from, to)
			if err != nil {
				return err
			}

			for _, dec := range decisions {
				if dec.Run {
					fmt.Println(dec.Date)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "schedules.json", "path to JSON configuration file")
	cmd.Flags().StringVar(&fromInput, "from", "today", "range start (YYYY-MM-DD or 'today')")
	cmd.Flags().StringVar(&toInput, "to", "", "range end (YYYY-MM-DD)")
	cmd.MarkFlagRequired("to")
	return cmd
}
