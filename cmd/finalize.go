package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
	"github.com/EberSantana/flowedu-sub004/internal/wallet"
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize <answer-id>",
	Short: "Record the teacher's final score for an answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		score, _ := cmd.Flags().GetInt("score")
		var feedback *string
		if cmd.Flags().Changed("feedback") {
			f, _ := cmd.Flags().GetString("feedback")
			feedback = &f
		}

		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		a, err := svc.triage.Finalize(cmd.Context(), id, score, feedback)
		if err != nil {
			return err
		}

		tier := wallet.TierForScore(a.EffectiveScore())
		fmt.Fprintf(cmd.OutOrStdout(), "%s answer %d finalized at %d (AI %d, confidence %d) %s\n",
			theme.Correct.Render("✓"),
			a.ID, a.EffectiveScore(), a.AIScore, a.AIConfidence,
			theme.Tier(string(tier)).Render(tier.DisplayName()))
		return nil
	},
}

func init() {
	finalizeCmd.Flags().IntP("score", "s", 0, "Final score (0-100)")
	finalizeCmd.Flags().StringP("feedback", "f", "", "Feedback for the student")
	_ = finalizeCmd.MarkFlagRequired("score")
}
