/*
main.go - schedguard command-line interface

PURPOSE:
  Answers "should this schedule run today?" from a static JSON configuration
  file, with no server or database. Built for crontab and CI guards:

    schedguard query "Payroll Schedule" && ./submit-payroll.sh

COMMANDS:
  query        Run/skip decision for a schedule on a date
  holidays     Print the US federal holidays of a year
  materialize  Print the run dates of a schedule over a range

EXIT CODES (query):
  0 = schedule should run
  1 = schedule should not run
  2 = error (schedule not found, invalid config, bad date)

CONFIGURATION:
  JSON file (default ./schedules.json):
  {
    "schedules": [
      {
        "name": "Payroll Schedule",
        "description": "US payroll processing calendar",
        "rule": {"ruleType": "WEEKDAYS_ONLY"},
        "deviations": [
          {"date": "2025-12-25", "action": "FORCE_SKIP", "reason": "Christmas Day"}
        ]
      }
    ]
  }

SEE ALSO:
  - config.go: Config loading and calendar assembly
  - engine/calendar.go: The aggregate answering the queries
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// skipExitCode marks the "schedule should not run" outcome so main can turn
// it into exit code 1 while real errors stay exit code 2.
var skipExitCode bool

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if skipExitCode {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schedguard",
		Short:         "Query whether a schedule should run on a given date",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newQueryCmd())
	root.AddCommand(newHolidaysCmd())
	root.AddCommand(newMaterializeCmd())
	return root
}
