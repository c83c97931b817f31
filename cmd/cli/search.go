package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/VisualDNA/pkg/logger"
	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		visualWeight float64
		topK         int
		name         string
		asJSON       bool
		noCache      bool
	)

	cmd := &cobra.Command{
		Use:   "search <video>",
		Short: "Rank catalog videos by similarity to a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath := args[0]
			info, err := os.Stat(videoPath)
			if err != nil {
				return fmt.Errorf("%w: %v", visualdna.ErrDecodeFailure, err)
			}

			return ctx.withService(func(svc visualdna.Service, cfg *visualdna.Config) error {
				opts := visualdna.SearchOptions{Filename: name, TopK: topK, NoCache: noCache}
				if cmd.Flags().Changed("visual-weight") {
					w := models.WeightsFromVisual(visualWeight)
					opts.Weights = &w
				}

				logger.Infof("Searching %s (%s)", filepath.Base(videoPath), humanize.Bytes(uint64(info.Size())))
				progress := newFrameProgress("Fingerprinting", !asJSON)
				opts.Progress = progress.Func()

				res, err := svc.Search(cmd.Context(), videoPath, opts)
				progress.Done()
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(ctx.out, res)
				}
				printSearchResult(ctx, res)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&visualWeight, "visual-weight", 100, "Visual weight in percent; audio gets the rest")
	cmd.Flags().IntVar(&topK, "top", 0, "Number of results (default from config, 3)")
	cmd.Flags().StringVar(&name, "name", "", "Catalog name of the target, excluded from results (default: file name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore the fingerprint cache")
	return cmd
}

func printSearchResult(ctx *commandContext, res *models.SearchResult) {
	out := ctx.out
	fmt.Fprintln(out)
	printKV(out, "Target", res.TargetFilename)
	printKV(out, "Frames", humanize.Comma(int64(res.FrameCount)))
	if res.AudioID != nil {
		printKV(out, "Soundtrack", *res.AudioID)
	} else {
		printKV(out, "Soundtrack", "no match")
	}
	printKV(out, "Elapsed", res.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(out)

	if len(res.Results) == 0 {
		color.New(color.FgYellow).Fprintln(out, "No catalog videos to compare against")
	} else {
		rows := make([][]string, len(res.Results))
		for i, r := range res.Results {
			rows[i] = []string{
				strconv.Itoa(i + 1),
				r.Filename,
				fmt.Sprintf("%.2f", r.VisualScore),
				fmt.Sprintf("%.0f", r.AudioScore),
				formatScore(r.FinalScore),
			}
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Filename", "Visual", "Audio", "Score"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
		))
	}

	if len(res.Skipped) > 0 {
		warn := color.New(color.FgYellow)
		warn.Fprintf(out, "\nSkipped %d catalog entries with unreadable fingerprints:\n", len(res.Skipped))
		for _, s := range res.Skipped {
			warn.Fprintf(out, "  %s: %s\n", s.Filename, s.Reason)
		}
	}
}
