package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/hdfmast/internal/pipeline"
	"github.com/ajitpratap0/hdfmast/pkg/config"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
	"github.com/ajitpratap0/hdfmast/pkg/logger"
	"github.com/ajitpratap0/hdfmast/pkg/metrics"
	"github.com/ajitpratap0/hdfmast/pkg/observability"
	"github.com/ajitpratap0/hdfmast/pkg/source"
)

var version = "0.1.0"

const usageLine = "hdfmast <store_path> <group_name> <type_name> [csv_path|-]"

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = source.StdinIsTerminal

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit status.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.IsType(err, errors.ErrorTypeUsage) {
			fmt.Fprintf(stderr, "Usage: %s\n", usageLine)
		}
		return 1
	}
	return 0
}

type app struct {
	v          *viper.Viper
	configPath string
	itemsize   map[string]int
	stdin      io.Reader
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), stdin: stdin}

	root := &cobra.Command{
		Use:   usageLine,
		Short: "Partition a CSV master file into a hierarchical compressed store",
		Long: `hdfmast reads CSV rows in chunks and appends each row to the table
{key}/{group_name}/{type_name}, where key is the row's first column. Existing
tables are extended. After the run every touched table carries the input's
column names as an attribute.

Input is read from csv_path, or from standard input when csv_path is "-" or
omitted. Bytes are decoded as ISO-8859-1 unless --encoding says otherwise.

A store_path equal to a subcommand name (ls, dump, export, config, version,
help) runs that subcommand instead. Write such stores as ./export.`,
		Args:          usageArgs(cobra.RangeArgs(3, 4)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runIngest,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	defaults := config.Default()
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.Int("chunk-size", defaults.ChunkSize, "Rows read and partitioned per chunk")
	flags.String("delimiter", defaults.Delimiter, "Field delimiter")
	flags.String("encoding", defaults.Encoding, "Input encoding (iso-8859-1, windows-1252, utf-8)")
	flags.String("compression", defaults.Compression.Algorithm, "Block compression (zlib, gzip, deflate, zstd, snappy, s2, lz4, none)")
	flags.String("level", defaults.Compression.Level, "Compression level (fastest, default, better, best)")
	flags.Duration("lock-timeout", defaults.LockTimeout, "Wait for a store locked by another process")
	flags.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Encoding, "Log format (console, json)")
	flags.String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	flags.Bool("trace", false, "Print run and chunk spans to stderr")
	root.Flags().StringToIntVar(&a.itemsize, "itemsize", nil, "Minimum column width, e.g. --itemsize NAME=80 (repeatable)")

	root.AddCommand(
		a.lsCmd(),
		a.dumpCmd(),
		a.exportCmd(),
		a.configCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "hdfmast v%s\n", version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}

// usageArgs marks positional argument failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return errors.Wrap(err, errors.ErrorTypeUsage, "invalid arguments")
		}
		return nil
	}
}

// setup resolves the configuration for cmd and installs the global logger.
func (a *app) setup(cmd *cobra.Command) (*config.Config, error) {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(a.v, a.configPath)
	if err != nil {
		return nil, err
	}
	for name, width := range a.itemsize {
		if width <= 0 {
			return nil, errors.New(errors.ErrorTypeConfig, "item size must be positive").WithDetail("column", name)
		}
		if cfg.Itemsize.Overrides == nil {
			cfg.Itemsize.Overrides = make(map[string]int)
		}
		cfg.Itemsize.Overrides[name] = width
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging configuration")
	}
	logger.Set(l)
	return cfg, nil
}

func (a *app) runIngest(cmd *cobra.Command, args []string) (err error) {
	cfg, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "hdfmast-cli"))

	inputPath := source.StdinPath
	if len(args) == 4 {
		inputPath = args[3]
	}
	in, err := source.OpenInput(inputPath, a.stdin, stdinIsTerminal)
	if err != nil {
		return err
	}
	defer in.Close()

	decoded, err := source.Decode(in, cfg.Encoding)
	if err != nil {
		return err
	}

	if cfg.Trace {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.Writer = cmd.ErrOrStderr()
		shutdown, err := observability.InitTracing(tc)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
		}
		defer func() {
			if serr := shutdown(context.Background()); serr != nil {
				log.Warn("failed to flush traces", zap.Error(serr))
			}
		}()
	}

	runCfg, err := pipeline.FromConfig(cfg, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	collector := metrics.NewCollector("ingest")
	if cfg.MetricsFile != "" {
		defer func() {
			if werr := collector.WriteTextfile(cfg.MetricsFile); werr != nil {
				log.Warn("failed to write metrics", zap.String("path", cfg.MetricsFile), zap.Error(werr))
			}
		}()
	}

	log.Debug("reading input", zap.String("input", in.Name), zap.String("encoding", cfg.Encoding))
	_, err = pipeline.New(runCfg, log, collector).Run(cmd.Context(), decoded)
	return err
}
