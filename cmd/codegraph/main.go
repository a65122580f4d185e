package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codegraph/internal/config"
	"codegraph/internal/logging"
	"codegraph/util"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes one command line and releases everything it opened.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{v: viper.New()}
	rootCmd := c.rootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := c.close(); err == nil {
		err = cerr
	}
	return err
}

// cli holds state shared by every subcommand of one root command.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	app     *app
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codegraph",
		Short: "Code knowledge graph for retrieval-augmented agents",
		Long: `codegraph parses a repository into a graph of files, functions and classes,
stores it in SQLite and answers relationship queries for an agent, next to an
optional external vector search.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: codegraph.yaml in the working directory or repository root)")
	flags.String("db", "", "path to the graph database")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write JSON logs to this rotated file")
	_ = c.v.BindPFlag("db_path", flags.Lookup("db"))
	_ = c.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("log.file", flags.Lookup("log-file"))

	rootCmd.AddCommand(
		newIngestCmd(c),
		newQueryCmd(c),
		newSearchCmd(c),
		newResetCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return rootCmd
}

func (c *cli) load() error {
	var dirs []string
	if c.cfgFile != "" {
		if _, err := os.Stat(c.cfgFile); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		c.v.SetConfigFile(c.cfgFile)
	} else {
		dirs = append(dirs, ".")
		if root, err := util.WorkingRoot(); err == nil {
			dirs = append(dirs, root)
		}
	}

	cfg, err := config.Load(c.v, dirs...)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// App builds the component graph on first use so that commands such as
// version never open the database.
func (c *cli) App(cmd *cobra.Command) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:   c.cfg.Log.Level,
		File:    c.cfg.Log.File,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	a, err := newApp(cmd.Context(), c.cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	// The log sink closes last.
	a.closers = append([]func() error{closeLog}, a.closers...)
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}
