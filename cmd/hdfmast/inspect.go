package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cf "github.com/ajitpratap0/hdfmast/pkg/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/config"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
	"github.com/ajitpratap0/hdfmast/pkg/formats/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/logger"
	"github.com/ajitpratap0/hdfmast/pkg/store"
)

func (a *app) openReadOnly(cfg *config.Config, path string) (*store.Store, error) {
	opts := store.DefaultOptions()
	opts.ReadOnly = true
	opts.Timeout = cfg.LockTimeout
	opts.Logger = logger.Get()
	return store.Open(path, opts)
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <store_path>",
		Short: "List tables with their row counts and columns",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.setup(cmd)
			if err != nil {
				return err
			}
			st, err := a.openReadOnly(cfg, args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			tables, err := st.Tables()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tROWS\tCOLUMNS")
			for _, path := range tables {
				info, err := st.Table(path)
				if err != nil {
					return err
				}
				cols := make([]string, len(info.Columns))
				for i, c := range info.Columns {
					cols[i] = fmt.Sprintf("%s(%d)", c.Name, c.Itemsize)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Path, info.Rows, strings.Join(cols, ","))
			}
			return tw.Flush()
		},
	}
}

type selectFlags struct {
	columns []string
	where   []string
}

func (s *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&s.columns, "columns", nil, "Columns to read, in order (default all)")
	cmd.Flags().StringArrayVar(&s.where, "where", nil, "Keep rows where COLUMN=VALUE (repeatable)")
}

func (s *selectFlags) query() (store.Query, error) {
	q := store.Query{Columns: s.columns}
	for _, w := range s.where {
		col, val, ok := strings.Cut(w, "=")
		if !ok || col == "" {
			return q, errors.New(errors.ErrorTypeUsage, "--where expects COLUMN=VALUE").WithDetail("where", w)
		}
		q.Where = append(q.Where, store.Condition{Column: col, Value: val})
	}
	return q, nil
}

// selectTable reads the rows of table that match the flags.
func (a *app) selectTable(cmd *cobra.Command, sf *selectFlags, storePath, table string) (*cf.Frame, error) {
	q, err := sf.query()
	if err != nil {
		return nil, err
	}
	cfg, err := a.setup(cmd)
	if err != nil {
		return nil, err
	}
	st, err := a.openReadOnly(cfg, storePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Select(table, q)
}

func writeFrame(w io.Writer, f *cf.Frame, wc *columnar.WriterConfig) (columnar.Writer, error) {
	fw, err := columnar.NewWriter(w, wc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create writer")
	}
	if err := fw.WriteFrame(f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to write rows")
	}
	if err := fw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to finish output")
	}
	return fw, nil
}

func (a *app) dumpCmd() *cobra.Command {
	sf := &selectFlags{}
	cmd := &cobra.Command{
		Use:   "dump <store_path> <table>",
		Short: "Print the rows of a table as CSV",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.selectTable(cmd, sf, args[0], args[1])
			if err != nil {
				return err
			}
			wc := columnar.DefaultWriterConfig(f.Names())
			wc.Format = columnar.CSV
			_, err = writeFrame(cmd.OutOrStdout(), f, wc)
			return err
		},
	}
	sf.register(cmd)
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	sf := &selectFlags{}
	var format, output, codec string
	cmd := &cobra.Command{
		Use:   "export <store_path> <table>",
		Short: "Write a table to a Parquet, Arrow, Avro or CSV file",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ff, err := columnar.ParseFormat(format)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeUsage, "invalid --format")
			}
			if output == "" {
				return errors.New(errors.ErrorTypeUsage, "--output is required")
			}
			f, err := a.selectTable(cmd, sf, args[0], args[1])
			if err != nil {
				return err
			}

			out, err := os.Create(output)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").WithDetail("path", output)
			}
			defer func() {
				if cerr := out.Close(); cerr != nil && err == nil {
					err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output").WithDetail("path", output)
				}
			}()

			wc := columnar.DefaultWriterConfig(f.Names())
			wc.Format = ff
			wc.Compression = codec
			fw, err := writeFrame(out, f, wc)
			if err != nil {
				return err
			}
			logger.Get().Info("table exported",
				zap.String("table", args[1]),
				zap.String("format", string(ff)),
				zap.String("output", output),
				zap.Int64("rows", fw.RowsWritten()),
				zap.Int64("bytes", fw.BytesWritten()))
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", string(columnar.Parquet), "Output format (parquet, arrow, avro, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (required)")
	cmd.Flags().StringVar(&codec, "codec", "", "Codec inside the file; empty selects the format default")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.setup(cmd)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
