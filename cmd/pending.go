package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/triage"
	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List answers waiting for teacher review, least confident first",
	RunE: func(cmd *cobra.Command, args []string) error {
		teacher, _ := cmd.Flags().GetString("teacher")
		exercises, _ := cmd.Flags().GetStringSlice("exercise")
		limit, _ := cmd.Flags().GetInt("limit")

		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		scope := triage.Scope{TeacherID: teacher, ExerciseIDs: exercises, Limit: limit}
		answers, err := svc.triage.ListPending(cmd.Context(), scope)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(answers) == 0 {
			fmt.Fprintln(out, "No answers waiting for review.")
			return nil
		}

		printHeader(out, 96, "%-6s  %-12s  %-12s  %-3s  %-5s  %-5s  %-16s  %s",
			"ID", "Student", "Exercise", "Q", "Score", "Conf", "Submitted", "Answer")
		for _, a := range answers {
			conf := fmt.Sprintf("%-5d", a.AIConfidence)
			if a.Degraded {
				conf = fmt.Sprintf("%-5s", "n/a")
			}
			fmt.Fprintf(out, "%-6d  %-12s  %-12s  %-3d  %-5d  %s  %-16s  %s\n",
				a.ID,
				truncate(a.StudentID, 12),
				truncate(a.ExerciseID, 12),
				a.QuestionNumber,
				a.AIScore,
				theme.Flagged.Render(conf),
				formatTime(a.CreatedAt),
				truncate(a.StudentAnswerText, 30),
			)
		}

		stats, err := svc.triage.Stats(cmd.Context(), triage.Scope{TeacherID: teacher, ExerciseIDs: exercises})
		if err != nil {
			return err
		}
		printRule(out, 96)
		fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("%d pending, mean confidence %.1f, %d degraded",
			stats.Pending, stats.MeanConfidence, stats.Degraded)))
		return nil
	},
}

func init() {
	pendingCmd.Flags().StringP("teacher", "t", "", "Teacher ID")
	pendingCmd.Flags().StringSliceP("exercise", "e", nil, "Restrict to exercise IDs")
	pendingCmd.Flags().IntP("limit", "n", 20, "Maximum number of answers (0 = all)")
	_ = pendingCmd.MarkFlagRequired("teacher")
}
