package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EberSantana/flowedu-sub004/internal/store"
	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "Manage the exercise catalogue",
}

var exercisesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import or replace exercises from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		exercises, err := svc.catalogue.ImportFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, ex := range exercises {
			fmt.Fprintf(out, "%s %s  %s (%d questions)\n",
				theme.Correct.Render("✓"), ex.ID, ex.Title, len(ex.Questions))
		}
		fmt.Fprintf(out, "Imported %d exercises.\n", len(exercises))
		return nil
	},
}

var exercisesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogue exercises",
	RunE: func(cmd *cobra.Command, args []string) error {
		teacher, _ := cmd.Flags().GetString("teacher")

		svc, err := openServices(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer svc.Close()

		exercises, err := svc.catalogue.List(cmd.Context(), teacher)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(exercises) == 0 {
			fmt.Fprintln(out, "No exercises found.")
			return nil
		}

		printHeader(out, 72, "%-16s  %-12s  %-9s  %-10s  %s", "ID", "Teacher", "Questions", "Objective", "Title")
		for _, ex := range exercises {
			objective := 0
			for _, q := range ex.Questions {
				if q.Kind == store.KindObjective {
					objective++
				}
			}
			fmt.Fprintf(out, "%-16s  %-12s  %-9d  %-10d  %s\n",
				truncate(ex.ID, 16), truncate(ex.TeacherID, 12), len(ex.Questions), objective, ex.Title)
		}
		return nil
	},
}

func init() {
	exercisesListCmd.Flags().StringP("teacher", "t", "", "Only exercises of this teacher")

	exercisesCmd.AddCommand(exercisesImportCmd)
	exercisesCmd.AddCommand(exercisesListCmd)
}
