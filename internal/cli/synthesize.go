package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/josetascon/cinemri-simulation/pkg/config"
	"github.com/josetascon/cinemri-simulation/pkg/frames"
	"github.com/josetascon/cinemri-simulation/pkg/nifti"
	"github.com/josetascon/cinemri-simulation/pkg/resample"
	"github.com/josetascon/cinemri-simulation/pkg/synthesis"
	"github.com/josetascon/cinemri-simulation/pkg/transform"
)

// SynthesizeCmd returns the command that produces the cine MR frames
func SynthesizeCmd() *cobra.Command {
	var overwrite, debug, verbose bool

	cmd := &cobra.Command{
		Use:   "synthesize <input> <model> <output> <parameters>",
		Short: "Synthesize a breathing cine MR sequence",
		Long: `Warp the reference volume through the breathing model and write one
2D frame per simulated timestamp.

Inputs:
  <input>/masks/<label>.nii.gz           masks listed in Segments.labels-input
  <model>/4dct-mr/4dct00_to_mr_Warped.*  reference volume
  <model>/seq/NNtoMM_0[Inverse]Warp.*    phase-to-phase deformation fields

Frames already present in <output> are kept and the run resumes after them,
unless --overwrite is given.

Examples:
  cinemri synthesize data/p01 model/p01 out/p01 params.yaml
  cinemri synthesize -d data/p01 model/p01 out/p01 params.yaml   # plan only
  cinemri synthesize -w -v data/p01 model/p01 out/p01 params.yaml`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := layout{input: args[0], model: args[1]}
			output, paramFile := args[2], args[3]

			if _, err := os.Stat(paramFile); err != nil {
				return fmt.Errorf("parameter file: %w", err)
			}
			cfg, err := config.LoadConfig(paramFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := NewLogger(cmd.ErrOrStderr(), verbose)
			params, err := buildParams(cfg, paths, output)
			if err != nil {
				return err
			}
			params.Overwrite = overwrite
			params.Debug = debug
			params.Logger = logger
			params.OnFrame = newFrameTable(cmd.OutOrStdout(), debug || verbose).row

			if missing := params.Fields.Missing(cfg.Video.Phases); len(missing) > 0 {
				logger.Warn("field store is incomplete", "dir", paths.fieldDir(), "missing", len(missing))
			}

			scheduler, err := synthesis.NewScheduler(params)
			if err != nil {
				return err
			}
			summary, err := scheduler.Run()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case summary.AlreadyComplete:
				fmt.Fprintf(out, "%s all %d frames already in %s\n",
					color.New(color.FgYellow).Sprint("SKIP"), summary.Total, output)
			case debug:
				fmt.Fprintf(out, "%s planned %d of %d frames (nothing written)\n",
					color.New(color.FgYellow).Sprint("DEBUG"), summary.Produced, summary.Total)
			default:
				fmt.Fprintf(out, "%s wrote frames %d..%d to %s\n",
					color.New(color.FgGreen).Sprint("DONE"), summary.Start, summary.Total-1, output)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&overwrite, "overwrite", "w", false, "Regenerate every frame even if output exists")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Compute and print frame plans without writing")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every frame")

	return cmd
}

// buildParams loads the run inputs named by cfg
func buildParams(cfg *config.Config, paths layout, output string) (*synthesis.Params, error) {
	view, err := resample.ParseView(cfg.Video.View)
	if err != nil {
		return nil, err
	}
	maskInterp, err := resample.ParseInterpolator(cfg.Segments.Interpolation)
	if err != nil {
		return nil, err
	}
	format, err := frames.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	table, err := transform.ScanDir(paths.fieldDir())
	if err != nil {
		return nil, err
	}

	refPath, err := paths.referencePath()
	if err != nil {
		return nil, err
	}
	reference, err := nifti.ReadVolume(refPath)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	masks, err := paths.loadMasks(cfg.Segments.LabelsInput)
	if err != nil {
		return nil, err
	}

	channels := append([]frames.Channel{frames.PrimaryChannel(output)},
		frames.AuxiliaryChannels(output, cfg.Segments.LabelsOutput, len(masks))...)

	return &synthesis.Params{
		Timeline: synthesis.Timeline{
			Phases:          cfg.Video.Phases,
			Reference:       cfg.Video.ReferencePhase,
			Period:          cfg.Video.BreathingPeriod,
			FrameRate:       cfg.Video.FrameRate,
			Duration:        cfg.Video.Duration,
			Amplitude:       cfg.Video.Amplitude,
			RandomAmplitude: cfg.RandomAmplitude(),
		},
		View:              view,
		Slice:             cfg.Video.Slice,
		Reference:         reference,
		Auxiliary:         masks,
		Fields:            table,
		Loader:            transform.LoaderFunc(nifti.ReadField),
		ImageInterpolator: resample.Linear,
		MaskInterpolator:  maskInterp,
		Writer:            frames.NewWriter(format, channels),
		Amplitudes:        synthesis.NewUniformAmplitude(cfg.Video.Seed),
		Workers:           cfg.Processing.Workers,
	}, nil
}
