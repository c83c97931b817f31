package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/VisualDNA/pkg/logger"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
)

type commandContext struct {
	configPath string
	dbPath     string
	tempDir    string
	logLevel   string
	quiet      bool

	out io.Writer
	// newService builds the service for a command; tests replace it.
	newService func(opts ...visualdna.Option) (visualdna.Service, error)

	configOnce sync.Once
	config     *visualdna.Config
	configErr  error
}

func newCommandContext(out io.Writer) *commandContext {
	return &commandContext{out: out, newService: visualdna.NewService}
}

// ensureConfig loads the config file once and layers the global flags on
// top of it.
func (c *commandContext) ensureConfig() (*visualdna.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := visualdna.LoadConfig(strings.TrimSpace(c.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if c.dbPath != "" {
			cfg.Storage.DBPath = c.dbPath
		}
		if c.tempDir != "" {
			cfg.Storage.TempDir = c.tempDir
		}
		if c.logLevel != "" {
			cfg.Log.Level = c.logLevel
		}
		if err := configureLogger(cfg.Log); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configureLogger points the process logger at stderr so stdout stays
// parseable.
func configureLogger(lc visualdna.LogConfig) error {
	level, err := logger.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	log.SetOutput(os.Stderr)
	log.SetFormat(lc.Format)
	log.SetLevel(level)
	return nil
}

func (c *commandContext) withService(fn func(visualdna.Service, *visualdna.Config) error, opts ...visualdna.Option) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	svc, err := c.newService(append([]visualdna.Option{visualdna.WithConfig(*cfg)}, opts...)...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()
	return fn(svc, cfg)
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newCommandContext(os.Stdout))
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "visualdna",
		Short:         "Find the catalog videos most similar to a video",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !ctx.quiet && cmd.Name() != "version" {
				printBanner()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "visualdna.toml", "Configuration file path")
	flags.StringVar(&ctx.dbPath, "db", "", "Path to the SQLite database file (env: VISUALDNA_DB_PATH)")
	flags.StringVar(&ctx.tempDir, "temp", "", "Directory for temporary files (env: VISUALDNA_TEMP_DIR)")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	flags.BoolVarP(&ctx.quiet, "quiet", "q", false, "Do not print the banner")

	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newIndexCommand(ctx))
	rootCmd.AddCommand(newCatalogCommand(ctx))
	rootCmd.AddCommand(newSpectrogramCommand(ctx))
	rootCmd.AddCommand(newVersionCommand(ctx))

	return rootCmd
}

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(ctx.out, "visualdna %s\n", version)
			return nil
		},
	}
}
