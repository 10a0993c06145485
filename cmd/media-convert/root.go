package main

import (
	"fmt"
	"strings"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/startup"

	"github.com/spf13/cobra"
)

var log = logging.Component("cli")

const modeAuto = "auto"

type rootOptions struct {
	configPath string
	mode       string
	outputDir  string
	overwrite  bool
	quiet      bool
	verbose    bool
}

func newRootCommand(tc toolchain) *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "media-convert [flags] FILE...",
		Short: "Convert HEIC photos to JPEG and MOV videos to MP4",
		Long: `Convert HEIC/HEIF photos to JPEG and QuickTime MOV videos to MP4.

The mode is picked from each file's extension unless --mode is given.
Outputs are written next to the source, or into --output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logging.SetLevel(logging.LevelDebug)
			} else {
				logging.SetLevel(logging.LevelWarn)
			}
		},
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			mode, err := parseModeFlag(opts.mode)
			if err != nil {
				return err
			}
			cfg, err := startup.ReadConfig(opts.configPath)
			if err != nil {
				return err
			}
			r := &runner{
				tc:        tc,
				cfg:       cfg,
				mode:      mode,
				outputDir: opts.outputDir,
				overwrite: opts.overwrite,
				quiet:     opts.quiet,
				out:       cmd.OutOrStdout(),
				errOut:    cmd.ErrOrStderr(),
			}
			return r.run(cmd.Context(), args)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.mode, "mode", "m", modeAuto, "Conversion mode: auto, image or video")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "Directory for converted files (default: next to the source)")
	flags.BoolVarP(&opts.overwrite, "force", "f", false, "Overwrite existing output files")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not show progress")

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newCheckCommand(tc, &opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// parseModeFlag returns "" for auto detection.
func parseModeFlag(value string) (mediatypes.Mode, error) {
	if value == "" || strings.EqualFold(value, modeAuto) {
		return "", nil
	}
	mode, err := mediatypes.ParseMode(value)
	if err != nil {
		return "", fmt.Errorf("--mode: %w", err)
	}
	return mode, nil
}
