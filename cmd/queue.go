package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show a student's due reviews, highest priority first",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, _ := cmd.Flags().GetString("student")
		exerciseID, _ := cmd.Flags().GetString("exercise")
		bucket, _ := cmd.Flags().GetString("bucket")
		limit, _ := cmd.Flags().GetInt("limit")
		forecastDays, _ := cmd.Flags().GetInt("forecast")

		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		entries, err := svc.scheduler.Queue(cmd.Context(), student, spacedrep.Filters{
			ExerciseID: exerciseID,
			Bucket:     spacedrep.Bucket(bucket),
		}, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "Nothing due. Come back later.")
		} else {
			printHeader(out, 84, "%-6s  %-12s  %-8s  %-6s  %-8s  %-5s  %-7s  %s",
				"ID", "Exercise", "Priority", "Bucket", "Interval", "Ease", "Success", "Overdue")
			for _, e := range entries {
				fmt.Fprintf(out, "%-6d  %-12s  %-8d  %s  %-8s  %-5.2f  %-7s  %.1fd\n",
					e.Item.ID,
					truncate(e.Item.ExerciseID, 12),
					e.Item.Priority,
					theme.Bucket(string(e.Bucket)).Render(fmt.Sprintf("%-6s", e.Bucket)),
					fmt.Sprintf("%dd", e.Item.IntervalDays),
					e.Item.EaseFactor,
					fmt.Sprintf("%.0f%%", e.Item.SuccessRate),
					e.OverdueDays,
				)
			}
		}

		if forecastDays > 0 {
			days, err := svc.scheduler.Forecast(cmd.Context(), student, forecastDays)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printForecast(out, days)
		}
		return nil
	},
}

func printForecast(w io.Writer, days []spacedrep.DayForecast) {
	printHeader(w, 30, "%-12s  %s", "Day", "Due")
	for _, d := range days {
		fmt.Fprintf(w, "%-12s  %d\n", d.Date.Format("Mon Jan 02"), d.Due)
	}
}

func init() {
	queueCmd.Flags().StringP("student", "s", "", "Student ID")
	queueCmd.Flags().StringP("exercise", "e", "", "Restrict to one exercise")
	queueCmd.Flags().StringP("bucket", "b", "", "Priority bucket: low, medium or high")
	queueCmd.Flags().IntP("limit", "n", 20, "Maximum number of items (0 = all)")
	queueCmd.Flags().Int("forecast", 0, "Also show due counts for the next N days")
	_ = queueCmd.MarkFlagRequired("student")
}
