package main

import (
	"github.com/Afrawles/devexport/internal/devexport"
	"github.com/spf13/cobra"
)

var calendarOut devexport.Outputs

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Export meetings from your primary Google Calendar",
	RunE:  runCalendar,
}

func init() {
	rootCmd.AddCommand(calendarCmd)

	calendarCmd.Flags().StringVar(&calendarOut.Rows, "out", "meetings_activity.csv", "Output CSV")
	calendarCmd.Flags().StringVar(&calendarOut.SummaryMD, "summary-md", "meetings_summary.md", "Markdown summary")
	calendarCmd.Flags().StringVar(&calendarOut.SummaryCSV, "summary-csv", "", "CSV summary by meeting series")
}

func runCalendar(cmd *cobra.Command, args []string) error {
	w, err := resolveWindow()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := devexport.GoogleClient(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	src, err := devexport.CalendarSource(cmd.Context(), client, logger)
	if err != nil {
		return err
	}

	return runJob(cmd.Context(), src, w, calendarOut)
}
