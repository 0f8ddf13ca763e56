package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josetascon/cinemri-simulation/pkg/config"
	"github.com/josetascon/cinemri-simulation/pkg/transform"
)

// CheckCmd returns the command verifying that a breathing model is complete
func CheckCmd() *cobra.Command {
	var phases int

	cmd := &cobra.Command{
		Use:   "check <model> [parameters]",
		Short: "Verify the deformation fields of a breathing model",
		Long: `List every field a complete registration ring provides (forward and
inverse warps between adjacent phases, both orders) and report which ones are
present in <model>/seq/. The phase count comes from the parameter file unless
--phases is given.

Examples:
  cinemri check model/p01 params.yaml
  cinemri check --phases 10 model/p01`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := layout{model: args[0]}

			if !cmd.Flags().Changed("phases") {
				cfg := config.DefaultConfig()
				if len(args) == 2 {
					var err error
					if cfg, err = config.LoadConfig(args[1]); err != nil {
						return err
					}
				}
				phases = cfg.Video.Phases
			}
			if phases < 1 {
				return &config.ConfigurationError{Field: "phases", Reason: fmt.Sprintf("must be at least 1, got %d", phases)}
			}

			table, err := transform.ScanDir(paths.fieldDir())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			missing := 0
			for _, key := range transform.RingKeys(phases) {
				_, err := table.Lookup(key)
				if err != nil {
					missing++
				}
				fmt.Fprintf(out, "%-22s %s\n", key.Name(), statusWord(err == nil))
			}

			refPath, refErr := paths.referencePath()
			name := "reference"
			if refErr == nil {
				name = refPath
			}
			fmt.Fprintf(out, "%-22s %s\n", name, statusWord(refErr == nil))

			if missing > 0 || refErr != nil {
				return fmt.Errorf("model %s is incomplete: %d of %d fields missing", args[0], missing, len(transform.RingKeys(phases)))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&phases, "phases", "p", 0, "Number of breathing phases")

	return cmd
}
