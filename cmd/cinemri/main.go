package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/josetascon/cinemri-simulation/internal/cli"
)

func main() {
	slog.SetDefault(cli.NewLogger(os.Stderr, false))

	rootCmd := &cobra.Command{
		Use:   "cinemri",
		Short: "Cine MR breathing simulation",
		Long: `cinemri synthesizes time-resolved 2D MR sequences of a breathing patient by
warping a static reference volume through a cyclic 4D breathing model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.SynthesizeCmd())
	rootCmd.AddCommand(cli.CheckCmd())
	rootCmd.AddCommand(cli.ConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
