package main

import (
	"context"
	"fmt"
	"time"

	"media-converter/internal/startup"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCheckCommand(tc toolchain, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report configuration and converter availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := startup.ReadConfig(opts.configPath)
			if err != nil {
				return err
			}

			stopImages := tc.startImages()
			defer stopImages()

			out := cmd.OutOrStdout()
			if cfg.ConfigFile != "" {
				fmt.Fprintf(out, "Config file:   %s\n", cfg.ConfigFile)
			}
			fmt.Fprintf(out, "Language:      %s\n", cfg.Language)
			fmt.Fprintf(out, "Work dir:      %s\n", cfg.WorkDir)
			fmt.Fprintf(out, "Upload limit:  %s\n", humanize.IBytes(uint64(cfg.MaxUploadBytes())))

			var problems int

			vips, heif := tc.imageStatus()
			switch {
			case heif:
				fmt.Fprintln(out, "Image:         libvips with HEIF [OK]")
			case vips:
				fmt.Fprintln(out, "Image:         libvips without HEIF [FAIL]")
				problems++
			default:
				fmt.Fprintln(out, "Image:         libvips unavailable [FAIL]")
				problems++
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if version, err := tc.probe(ctx, cfg.FFmpegPath); err != nil {
				fmt.Fprintf(out, "Video:         %v [FAIL]\n", err)
				problems++
			} else {
				fmt.Fprintf(out, "Video:         %s [OK]\n", version)
			}

			if problems > 0 {
				return fmt.Errorf("%d converter(s) unavailable", problems)
			}
			return nil
		},
	}
}
