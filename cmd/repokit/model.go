package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/healthcheck"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Print or install the built-in scoring model",
	Long: `Print the built-in scoring model. With --write, install it at the
configured scoring model path unless a model already exists there (use
--force to replace it).`,
	Run: func(cmd *cobra.Command, args []string) {
		write, _ := cmd.Flags().GetBool("write")
		force, _ := cmd.Flags().GetBool("force")
		if err := runModel(settings, write, force, os.Stdout); err != nil {
			fail(err)
		}
	},
}

func init() {
	modelCmd.Flags().Bool("write", false, "Write the model into the repository")
	modelCmd.Flags().Bool("force", false, "Replace an existing model")
	rootCmd.AddCommand(modelCmd)
}

func runModel(s config.Settings, write, force bool, out io.Writer) error {
	if !write {
		_, err := out.Write(scoring.DefaultModelYAML)
		return err
	}
	if !force && repo.Exists(s.Root, s.ScoringModel) {
		// Validate what is there so the user learns whether it still loads.
		if _, err := healthcheck.LoadModel(s); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s already exists (use --force to replace)\n", yellow("⚠"), s.ScoringModel)
		return nil
	}
	if err := repo.WriteFileAtomic(s.Path(s.ScoringModel), scoring.DefaultModelYAML, 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Wrote %s\n", green("✓"), s.ScoringModel)
	return nil
}
