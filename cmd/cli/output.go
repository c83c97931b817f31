package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// scoreColor picks green for strong matches, yellow for plausible ones and
// red for the rest.
func scoreColor(score float64) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen, color.Bold)
	case score >= 50:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func formatScore(score float64) string {
	return scoreColor(score).Sprintf("%.2f", score)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// frameProgress draws a bar on stderr while a video is fingerprinted. The
// bar appears on the first progress report, once the total is known.
type frameProgress struct {
	label string
	p     *mpb.Progress
	bar   *mpb.Bar
}

func newFrameProgress(label string, enabled bool) *frameProgress {
	if !enabled || !stderrIsTerminal() {
		return nil
	}
	return &frameProgress{
		label: label,
		p:     mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr)),
	}
}

// Func returns the callback for fingerprint.Build, or nil when disabled.
func (f *frameProgress) Func() fingerprint.ProgressFunc {
	if f == nil {
		return nil
	}
	return func(done, total int) {
		if f.bar == nil {
			f.bar = f.p.AddBar(int64(total),
				mpb.PrependDecorators(
					decor.Name(f.label+": "),
					decor.CountersNoUnit("%d / %d"),
				),
				mpb.AppendDecorators(
					decor.Percentage(),
					decor.AverageETA(decor.ET_STYLE_GO),
				),
			)
		}
		// totals are estimates; keep the bar open past them
		if done >= total {
			f.bar.SetTotal(int64(done)+1, false)
		}
		f.bar.SetCurrent(int64(done))
	}
}

// Done completes the bar and waits for the final render.
func (f *frameProgress) Done() {
	if f == nil {
		return
	}
	if f.bar != nil {
		f.bar.SetTotal(-1, true)
	}
	f.p.Wait()
}

func printKV(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "  %-12s %v\n", key+":", value)
}
