package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/grading"
	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade a single answer without storing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		answer, _ := cmd.Flags().GetString("answer")
		correct, _ := cmd.Flags().GetString("correct")
		extra, _ := cmd.Flags().GetString("context")
		objective, _ := cmd.Flags().GetBool("objective")
		asJSON, _ := cmd.Flags().GetBool("json")

		if objective && correct == "" {
			return fmt.Errorf("--objective requires --correct")
		}

		var j grading.Judgment
		if objective {
			j = grading.NewGrader(nil, cfg.Grading, logger, nil).GradeObjective(answer, correct)
		} else {
			svc, err := openServices(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer svc.Close()

			j = svc.grader.AnalyzeAnswer(cmd.Context(), grading.Input{
				Question:      question,
				StudentAnswer: answer,
				CorrectAnswer: correct,
				Context:       extra,
			})
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(j)
		}
		printJudgment(out, j, cfg.Grading.ConfidenceThreshold)
		return nil
	},
}

func printJudgment(w io.Writer, j grading.Judgment, threshold int) {
	fmt.Fprintln(w, theme.Title.Render("Judgment"))
	fmt.Fprintf(w, "Score:       %d\n", j.Score)
	fmt.Fprintf(w, "Confidence:  %s\n", theme.Confidence(j.Confidence, threshold).Render(fmt.Sprintf("%d", j.Confidence)))
	if j.NeedsReview {
		fmt.Fprintf(w, "Review:      %s\n", theme.Flagged.Render("needs teacher review"))
	} else {
		fmt.Fprintf(w, "Review:      %s\n", theme.Correct.Render("final"))
	}
	if j.Degraded {
		fmt.Fprintf(w, "Degraded:    %s\n", theme.Incorrect.Render("yes"))
	}
	fmt.Fprintf(w, "Feedback:    %s\n", j.Feedback)
	if len(j.Strengths) > 0 {
		fmt.Fprintf(w, "Strengths:   %s\n", strings.Join(j.Strengths, "; "))
	}
	if len(j.Weaknesses) > 0 {
		fmt.Fprintf(w, "Weaknesses:  %s\n", strings.Join(j.Weaknesses, "; "))
	}
	if j.Reasoning != "" {
		fmt.Fprintln(w, theme.Hint.Render(j.Reasoning))
	}
}

func init() {
	gradeCmd.Flags().StringP("question", "q", "", "Question text")
	gradeCmd.Flags().StringP("answer", "a", "", "Student answer")
	gradeCmd.Flags().String("correct", "", "Reference answer (optional for subjective questions)")
	gradeCmd.Flags().String("context", "", "Extra context for the judge")
	gradeCmd.Flags().Bool("objective", false, "Compare with --correct instead of calling the judge")
	gradeCmd.Flags().Bool("json", false, "Print the judgment as JSON")
	_ = gradeCmd.MarkFlagRequired("question")
}
