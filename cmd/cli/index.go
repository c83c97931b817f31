package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/VisualDNA/pkg/logger"
	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/utils"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var (
		urls    []string
		name    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "index [video...]",
		Short: "Fingerprint videos and add them to the catalog",
		Long: "Fingerprint local videos, or videos downloaded with --url, and upsert them\n" +
			"into the catalog. A video whose file name is already catalogued is replaced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(urls) == 0 {
				return errors.New("give at least one video path or --url")
			}
			if name != "" && len(args)+len(urls) > 1 {
				return errors.New("--name only applies when indexing a single video")
			}

			return ctx.withService(func(svc visualdna.Service, cfg *visualdna.Config) error {
				var indexed []*models.Video
				var failed int

				for _, path := range args {
					progress := newFrameProgress(filepath.Base(path), true)
					v, err := svc.IndexVideo(cmd.Context(), path, visualdna.IndexOptions{
						Filename: name,
						Progress: progress.Func(),
						NoCache:  noCache,
					})
					progress.Done()
					if err != nil {
						failed++
						logger.Errorf("Indexing %s failed: %v", path, err)
						color.New(color.FgRed).Fprintf(ctx.out, "✗ %s: %v\n", path, err)
						continue
					}
					indexed = append(indexed, v)
				}

				for _, u := range urls {
					opts := visualdna.IndexOptions{Filename: name, NoCache: noCache}
					if opts.Filename == "" {
						opts.Filename = utils.CatalogName(u)
					}
					v, err := svc.IndexURL(cmd.Context(), u, opts)
					if err != nil {
						failed++
						logger.Errorf("Indexing %s failed: %v", u, err)
						color.New(color.FgRed).Fprintf(ctx.out, "✗ %s: %v\n", u, err)
						continue
					}
					indexed = append(indexed, v)
				}

				if len(indexed) > 0 {
					fmt.Fprintln(ctx.out, renderVideos(indexed))
				}
				color.New(color.FgGreen).Fprintf(ctx.out, "Indexed %d video(s)\n", len(indexed))
				if failed > 0 {
					return fmt.Errorf("%d of %d video(s) failed", failed, failed+len(indexed))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "Download and index a video URL (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "Catalog name for a single video (default: file name)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore the fingerprint cache")
	return cmd
}

func renderVideos(videos []*models.Video) string {
	rows := make([][]string, len(videos))
	for i, v := range videos {
		audio := "-"
		if v.AudioID != nil {
			audio = *v.AudioID
		}
		rows[i] = []string{
			v.Filename,
			humanize.Comma(int64(v.FrameCount)),
			formatDuration(v.DurationMs),
			audio,
			humanize.Time(v.CreatedAt),
		}
	}
	return renderTable(
		[]string{"Filename", "Frames", "Duration", "Soundtrack", "Added"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func formatDuration(ms int) string {
	if ms <= 0 {
		return "-"
	}
	sec := ms / 1000
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}
