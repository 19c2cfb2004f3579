package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
	"github.com/EberSantana/flowedu-sub004/internal/ui/components"
	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a student's review statistics and points",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, _ := cmd.Flags().GetString("student")

		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		stats, err := svc.history.Analytics(ctx, student)
		if err != nil {
			return err
		}
		balance, err := svc.wallet.Balance(ctx, student)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render("Review statistics for "+student))
		fmt.Fprintln(out, components.NewProgressBar("Success", stats.SuccessRate/100, true, 48).View())
		fmt.Fprintf(out, "Reviews:      %d (%d correct)\n", stats.TotalReviews, stats.CorrectReviews)
		fmt.Fprintf(out, "Today:        %d\n", stats.ReviewedToday)
		fmt.Fprintf(out, "Streak:       %d days\n", stats.StreakDays)
		fmt.Fprintf(out, "Avg session:  %.0fs\n", stats.AverageSessionSeconds)
		if stats.LastReviewedAt != nil {
			fmt.Fprintf(out, "Last review:  %s\n", formatTime(*stats.LastReviewedAt))
		}
		if stats.TotalReviews > 0 {
			fmt.Fprint(out, "Ratings:     ")
			for _, r := range spacedrep.AllRatings() {
				fmt.Fprintf(out, " %s %d", r, stats.ByRating[string(r)])
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Points:       %s\n", theme.Tier("gold").Render(fmt.Sprintf("%d", balance)))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringP("student", "s", "", "Student ID")
	_ = statsCmd.MarkFlagRequired("student")
}
