package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List a student's recent reviews, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, _ := cmd.Flags().GetString("student")
		limit, _ := cmd.Flags().GetInt("limit")

		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		entries, err := svc.history.List(cmd.Context(), student, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No reviews recorded yet.")
			return nil
		}

		printHeader(out, 72, "%-16s  %-6s  %-6s  %-6s  %-7s  %-8s  %s",
			"Reviewed", "Item", "Result", "Rating", "Seconds", "Interval", "Ease")
		for _, e := range entries {
			result := theme.Incorrect.Render(fmt.Sprintf("%-6s", "miss"))
			if e.WasCorrect {
				result = theme.Correct.Render(fmt.Sprintf("%-6s", "ok"))
			}
			fmt.Fprintf(out, "%-16s  %-6d  %s  %-6s  %-7d  %-8s  %.2f\n",
				formatTime(e.ReviewedAt),
				e.QueueItemID,
				result,
				e.SelfRating,
				e.TimeSpentSeconds,
				fmt.Sprintf("%dd", e.IntervalDays),
				e.EaseFactor,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringP("student", "s", "", "Student ID")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of reviews to show")
	_ = historyCmd.MarkFlagRequired("student")
}
