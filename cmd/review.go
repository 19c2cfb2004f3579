package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/session"
	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

var reviewCmd = &cobra.Command{
	Use:   "review <item-id>...",
	Short: "Record the outcome of reviewing one or more queue items",
	Long: `Record reviews for queue items. Every item gets the same outcome flags.
Several items are recorded as one sitting and summarized at the end.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, a := range args {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		student, _ := cmd.Flags().GetString("student")
		correct, _ := cmd.Flags().GetBool("correct")
		rating, _ := cmd.Flags().GetString("rating")
		seconds, _ := cmd.Flags().GetInt("seconds")
		notes, _ := cmd.Flags().GetString("notes")

		if _, ok := spacedrep.ParseRating(rating); !ok {
			return fmt.Errorf("invalid --rating %q: want again, hard, good or easy", rating)
		}

		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		out := cmd.OutOrStdout()
		var outcomes []session.Outcome
		for _, id := range ids {
			rev, err := svc.scheduler.Open(cmd.Context(), id, student)
			if err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}
			if err := rev.SetNotes(notes); err != nil {
				return err
			}
			outcome, err := rev.Close(correct, rating, time.Now())
			if err != nil {
				return err
			}
			if seconds > 0 {
				outcome.TimeSpentSeconds = seconds
			}

			res, err := svc.scheduler.RecordReview(cmd.Context(), spacedrep.RecordInput{
				QueueItemID:      outcome.QueueItemID,
				WasCorrect:       outcome.WasCorrect,
				TimeSpentSeconds: outcome.TimeSpentSeconds,
				SelfRating:       outcome.SelfRating,
				Notes:            outcome.Notes,
			})
			if err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}
			outcomes = append(outcomes, outcome)

			mark := theme.Incorrect.Render("✗")
			if correct {
				mark = theme.Correct.Render("✓")
			}
			fmt.Fprintf(out, "%s item %d: next review %s (interval %dd, ease %.2f, success %.0f%%)\n",
				mark, res.QueueItemID, formatTime(res.NextReviewDate), res.NewInterval, res.NewEaseFactor, res.NewSuccessRate)
			if res.Mastered {
				fmt.Fprintln(out, theme.Correct.Render("Mastered!"))
			}
		}

		if len(outcomes) > 1 {
			printSummary(out, session.BuildSummary(outcomes))
		}
		return nil
	},
}

func printSummary(out io.Writer, s *session.Summary) {
	ratings := make([]string, 0, len(s.ByRating))
	for r, n := range s.ByRating {
		ratings = append(ratings, fmt.Sprintf("%s %d", r, n))
	}
	sort.Strings(ratings)

	body := fmt.Sprintf("%s\n%d reviewed, %d correct (%.0f%%)\ntime %s\n%s",
		theme.Header.Render("Sitting"),
		s.TotalReviews, s.TotalCorrect, s.Accuracy*100,
		s.Duration, strings.Join(ratings, ", "))
	fmt.Fprintln(out, theme.Card.Render(body))
}

func init() {
	reviewCmd.Flags().StringP("student", "s", "", "Student ID (checked against the item when set)")
	reviewCmd.Flags().Bool("correct", false, "The student recalled the answer correctly")
	reviewCmd.Flags().StringP("rating", "r", "good", "Self rating: again, hard, good or easy")
	reviewCmd.Flags().Int("seconds", 0, "Time spent in seconds")
	reviewCmd.Flags().String("notes", "", "Review notes")
}
