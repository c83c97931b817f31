package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/VisualDNA/pkg/utils"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/audio"
)

func newSpectrogramCommand(ctx *commandContext) *cobra.Command {
	var (
		output        string
		width, height int
	)

	cmd := &cobra.Command{
		Use:   "spectrogram <video>",
		Short: "Render the soundtrack of a video as a PNG spectrogram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			videoPath := args[0]
			if output == "" {
				output = strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath)) + "_spectrogram.png"
			}
			if width <= 0 || height <= 0 {
				return errors.New("--width and --height must be positive")
			}

			ws, err := utils.NewWorkspace(cfg.Storage.TempDir, "visualdna-spectrogram-")
			if err != nil {
				return err
			}
			defer ws.Release()

			wavPath, err := audio.ExtractWAV(cmd.Context(), videoPath, ws.Dir, audio.ExtractConfig{
				SampleRate: cfg.Audio.SampleRate,
				MaxSeconds: cfg.Audio.MaxSeconds,
			})
			if err != nil {
				return err
			}
			if err := audio.RenderSpectrogram(wavPath, output, width, height); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(ctx.out, "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output PNG (default: <video>_spectrogram.png)")
	cmd.Flags().IntVar(&width, "width", 1024, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 512, "Image height in pixels")
	return cmd
}
