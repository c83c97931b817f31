package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/catalog"
)

type mongoFlags struct {
	uri        string
	database   string
	collection string
}

func (m *mongoFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.uri, "mongo-uri", "", "Use a MongoDB collection instead of a file")
	cmd.Flags().StringVar(&m.database, "mongo-db", "visualdna", "MongoDB database")
	cmd.Flags().StringVar(&m.collection, "mongo-collection", "catalog", "MongoDB collection")
}

func (m *mongoFlags) open(ctx context.Context) (*catalog.MongoSource, error) {
	return catalog.NewMongoSource(ctx, m.uri, m.database, m.collection)
}

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and manage the reference catalog",
	}
	cmd.AddCommand(newCatalogListCommand(ctx))
	cmd.AddCommand(newCatalogShowCommand(ctx))
	cmd.AddCommand(newCatalogDeleteCommand(ctx))
	cmd.AddCommand(newCatalogImportCommand(ctx))
	cmd.AddCommand(newCatalogExportCommand(ctx))
	cmd.AddCommand(newCatalogStatsCommand(ctx))
	return cmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc visualdna.Service, _ *visualdna.Config) error {
				videos, err := svc.ListEntries()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(ctx.out, videos)
				}
				if len(videos) == 0 {
					color.New(color.FgYellow).Fprintln(ctx.out, "The catalog is empty")
					return nil
				}
				ptrs := make([]*models.Video, len(videos))
				for i := range videos {
					ptrs[i] = &videos[i]
				}
				fmt.Fprintln(ctx.out, renderVideos(ptrs))
				fmt.Fprintf(ctx.out, "%s video(s)\n", humanize.Comma(int64(len(videos))))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <filename>",
		Short: "Show one catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc visualdna.Service, _ *visualdna.Config) error {
				v, err := svc.GetEntry(args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				out := ctx.out
				printKV(out, "Filename", v.Filename)
				printKV(out, "Frames", humanize.Comma(int64(v.FrameCount)))
				printKV(out, "Duration", formatDuration(v.DurationMs))
				if v.AudioID != nil {
					printKV(out, "Soundtrack", *v.AudioID)
				}
				if v.SourceURL != "" {
					printKV(out, "Source", v.SourceURL)
				}
				printKV(out, "Added", humanize.Time(v.CreatedAt))
				printKV(out, "Fingerprint", humanize.Bytes(uint64(len(v.Fingerprint)/2)))
				return nil
			})
		},
	}
}

func newCatalogDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <filename>...",
		Short: "Remove videos from the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc visualdna.Service, _ *visualdna.Config) error {
				var errs []error
				for _, name := range args {
					if err := svc.DeleteEntry(name); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", name, err))
						continue
					}
					color.New(color.FgGreen).Fprintf(ctx.out, "Deleted %s\n", name)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	var (
		sheet string
		mongo mongoFlags
	)
	cmd := &cobra.Command{
		Use:   "import [file.csv|file.xlsx]",
		Short: "Upsert catalog rows from a spreadsheet or MongoDB",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res *catalog.Result
			switch {
			case mongo.uri != "":
				src, err := mongo.open(cmd.Context())
				if err != nil {
					return err
				}
				defer src.Close(context.Background())
				if res, err = src.Load(cmd.Context()); err != nil {
					return err
				}
			case len(args) == 1:
				var err error
				if res, err = catalog.ReadFile(args[0], sheet); err != nil {
					return err
				}
			default:
				return errors.New("give a catalog file or --mongo-uri")
			}

			warn := color.New(color.FgYellow)
			for _, q := range res.Quarantined {
				warn.Fprintf(ctx.out, "Rejected %v\n", q)
			}

			return ctx.withService(func(svc visualdna.Service, _ *visualdna.Config) error {
				n, err := svc.ImportCatalog(res.Records)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(ctx.out, "Imported %d record(s), rejected %d\n", n, len(res.Quarantined))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Workbook sheet (default: first sheet)")
	mongo.register(cmd)
	return cmd
}

func newCatalogExportCommand(ctx *commandContext) *cobra.Command {
	var mongo mongoFlags
	cmd := &cobra.Command{
		Use:   "export [file.csv|file.xlsx]",
		Short: "Write the catalog to a spreadsheet or MongoDB",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mongo.uri == "" && len(args) == 0 {
				return errors.New("give an output file or --mongo-uri")
			}
			if len(args) == 1 {
				if _, err := catalog.FormatOf(args[0]); err != nil {
					return err
				}
			}

			return ctx.withService(func(svc visualdna.Service, _ *visualdna.Config) error {
				records, err := svc.ExportCatalog()
				if err != nil {
					return err
				}

				if mongo.uri != "" {
					src, err := mongo.open(cmd.Context())
					if err != nil {
						return err
					}
					defer src.Close(context.Background())
					if err := src.Upsert(cmd.Context(), records); err != nil {
						return err
					}
					color.New(color.FgGreen).Fprintf(ctx.out, "Upserted %d record(s) into %s.%s\n", len(records), mongo.database, mongo.collection)
				}

				if len(args) == 1 {
					if err := catalog.WriteFile(args[0], records); err != nil {
						return err
					}
					size := ""
					if info, err := os.Stat(args[0]); err == nil {
						size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
					}
					color.New(color.FgGreen).Fprintf(ctx.out, "Wrote %d record(s) to %s%s\n", len(records), args[0], size)
				}
				return nil
			})
		},
	}
	mongo.register(cmd)
	return cmd
}

func newCatalogStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and soundtrack index sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc visualdna.Service, cfg *visualdna.Config) error {
				st, err := svc.Stats()
				if err != nil {
					return err
				}
				printKV(ctx.out, "Database", cfg.Storage.DBPath)
				if info, err := os.Stat(cfg.Storage.DBPath); err == nil {
					printKV(ctx.out, "Size", humanize.Bytes(uint64(info.Size())))
				}
				printKV(ctx.out, "Videos", humanize.Comma(st.Videos))
				printKV(ctx.out, "Soundtracks", humanize.Comma(st.Tracks))
				printKV(ctx.out, "Landmarks", humanize.Comma(st.Landmarks))
				return nil
			})
		},
	}
}
