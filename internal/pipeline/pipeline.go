// Package pipeline implements the ingest run: it reads delimited input in
// chunks, partitions every chunk by the value of its first column and
// appends each partition to the table at {key}/{group_name}/{type_name}.
//
// # Overview
//
// A run holds one writable store handle from start to finish:
//
//	p := pipeline.New(cfg, logger, metrics.NewCollector("ingest"))
//	res, err := p.Run(ctx, input)
//
// All partitions of one chunk are appended in a single store transaction, so
// a chunk is either fully written or not written at all. Chunks committed
// before a failure stay in the store.
//
// After the input is exhausted every touched table receives the input's
// column names as an attribute, in one final transaction. An interrupted run
// therefore leaves no such attributes behind.
package pipeline

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/hdfmast/pkg/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/compression"
	"github.com/ajitpratap0/hdfmast/pkg/config"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
	"github.com/ajitpratap0/hdfmast/pkg/logger"
	"github.com/ajitpratap0/hdfmast/pkg/metrics"
	"github.com/ajitpratap0/hdfmast/pkg/observability"
	"github.com/ajitpratap0/hdfmast/pkg/source"
	"github.com/ajitpratap0/hdfmast/pkg/store"
)

// Config contains the parameters of one run.
type Config struct {
	StorePath string
	GroupName string
	TypeName  string

	ChunkSize   int
	Delimiter   rune
	Compression *compression.Config
	Itemsize    columnar.ItemsizeHints
	AttrName    string
	LockTimeout time.Duration
}

// DefaultConfig returns the default run parameters for the given target.
func DefaultConfig(storePath, groupName, typeName string) *Config {
	return &Config{
		StorePath:   storePath,
		GroupName:   groupName,
		TypeName:    typeName,
		ChunkSize:   source.DefaultChunkSize,
		Delimiter:   ',',
		Compression: compression.DefaultConfig(),
		Itemsize:    columnar.DefaultItemsizeHints(),
		AttrName:    config.DefaultAttrName,
		LockTimeout: time.Second,
	}
}

// FromConfig derives run parameters from an application configuration.
func FromConfig(cfg *config.Config, storePath, groupName, typeName string) (*Config, error) {
	comp, err := cfg.CompressionConfig()
	if err != nil {
		return nil, err
	}
	return &Config{
		StorePath:   storePath,
		GroupName:   groupName,
		TypeName:    typeName,
		ChunkSize:   cfg.ChunkSize,
		Delimiter:   cfg.DelimiterRune(),
		Compression: comp,
		Itemsize:    cfg.Itemsize,
		AttrName:    cfg.AttrName,
		LockTimeout: cfg.LockTimeout,
	}, nil
}

func (c *Config) validate() error {
	switch {
	case c.StorePath == "":
		return errors.New(errors.ErrorTypeUsage, "store path is required")
	case c.GroupName == "":
		return errors.New(errors.ErrorTypeUsage, "group name is required")
	case c.TypeName == "":
		return errors.New(errors.ErrorTypeUsage, "type name is required")
	case c.ChunkSize <= 0:
		return errors.New(errors.ErrorTypeConfig, "chunk size must be positive").WithDetail("chunk_size", c.ChunkSize)
	case c.AttrName == "":
		return errors.New(errors.ErrorTypeConfig, "attribute name is required")
	}
	return nil
}

// TablePath returns the table a partition with the given key is appended to.
func (c *Config) TablePath(key string) string {
	return store.JoinPath(key, c.GroupName, c.TypeName)
}

// Result summarizes a completed run.
type Result struct {
	Chunks int
	Rows   int64
	// Tables lists every touched table in order of first write.
	Tables []string
	// Columns is the input header as stored in the column names attribute.
	Columns      []string
	BytesWritten int64
	Duration     time.Duration
}

// Pipeline runs ingests.
type Pipeline struct {
	config   *Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	resource *resourceMonitor
}

// New creates a pipeline. A nil logger selects the global logger and a nil
// collector is replaced by a private one.
func New(cfg *Config, log *zap.Logger, m *metrics.Collector) *Pipeline {
	if cfg.Compression == nil {
		cfg.Compression = compression.DefaultConfig()
	}
	if log == nil {
		log = logger.Get()
	}
	if m == nil {
		m = metrics.NewCollector("ingest")
	}
	return &Pipeline{
		config:   cfg,
		logger:   log,
		metrics:  m,
		resource: newResourceMonitor(),
	}
}

// Metrics returns the pipeline's collector.
func (p *Pipeline) Metrics() *metrics.Collector { return p.metrics }

// Run reads input to the end and appends it to the store. The input must
// already be decoded to UTF-8 text.
func (p *Pipeline) Run(ctx context.Context, input io.Reader) (res *Result, err error) {
	if err := p.config.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := observability.NewSpan(ctx, "ingest",
		attribute.String("store", p.config.StorePath),
		attribute.String("group_name", p.config.GroupName),
		attribute.String("type_name", p.config.TypeName))
	defer func() {
		span.Fail(err)
		span.End()
	}()

	log := p.logger.With(
		zap.String("store", p.config.StorePath),
		zap.String("group_name", p.config.GroupName),
		zap.String("type_name", p.config.TypeName))

	reader, err := source.NewChunkReader(input, source.ReaderOptions{
		ChunkSize: p.config.ChunkSize,
		Delimiter: p.config.Delimiter,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(p.config.StorePath, &store.Options{
		Compression: p.config.Compression,
		Timeout:     p.config.LockTimeout,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	log.Info("starting ingest",
		zap.Int("chunk_size", p.config.ChunkSize),
		zap.String("compression", string(p.config.Compression.Algorithm)),
		zap.Strings("columns", reader.Columns()))

	res = &Result{Columns: reader.Columns()}
	touched := make(map[string]struct{})
	throughput := metrics.NewThroughputTracker(p.metrics)

	for {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, errors.ErrorTypeInternal, "ingest cancelled")
		}

		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}

		if err := p.processChunk(ctx, st, chunk, res, touched, log); err != nil {
			return res, err
		}
		throughput.Increment(int64(len(chunk.Rows)))
	}

	if err := p.attachColumnNames(st, res, log); err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	throughput.GetAndReset()
	span.SetAttribute("chunks", res.Chunks)
	span.SetAttribute("rows", res.Rows)
	span.SetAttribute("tables", len(res.Tables))

	log.Info("ingest complete",
		zap.Int("chunks", res.Chunks),
		zap.Int64("rows", res.Rows),
		zap.Int("tables", len(res.Tables)),
		zap.Int64("bytes_written", res.BytesWritten),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// processChunk partitions one chunk and appends every partition in a single
// transaction.
func (p *Pipeline) processChunk(ctx context.Context, st *store.Store, chunk *source.Chunk, res *Result, touched map[string]struct{}, log *zap.Logger) (err error) {
	timer := metrics.NewTimer("chunk")
	_, span := observability.NewSpan(ctx, "chunk",
		attribute.Int("index", chunk.Index),
		attribute.Int("rows", len(chunk.Rows)))
	defer func() {
		span.Fail(err)
		span.End()
	}()

	frame, err := chunk.Frame()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeParse, "malformed chunk").WithDetail("chunk", chunk.Index)
	}
	groups := frame.GroupBy(0)
	for _, g := range groups {
		if g.Key == "" {
			return errors.New(errors.ErrorTypeParse, "empty partition key in first column").
				WithDetail("chunk", chunk.Index).
				WithDetail("row", chunk.Index*p.config.ChunkSize+firstEmptyRow(frame)+1)
		}
	}

	opts := store.AppendOptions{MinItemsize: p.config.Itemsize}
	var appended []store.AppendResult
	err = st.Update(func(tx *store.Tx) error {
		appended = appended[:0]
		for _, g := range groups {
			r, err := tx.Append(p.config.TablePath(g.Key), g.Frame, opts)
			if err != nil {
				return err
			}
			appended = append(appended, r)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var bytes int
	for _, r := range appended {
		if _, ok := touched[r.Path]; !ok {
			touched[r.Path] = struct{}{}
			res.Tables = append(res.Tables, r.Path)
		}
		bytes += r.Bytes
		p.metrics.TableAppended(r.Created, r.Bytes)
		if len(r.Widened) > 0 {
			log.Debug("columns widened", zap.String("table", r.Path), zap.Strings("columns", r.Widened))
		}
	}

	res.Chunks++
	res.Rows += int64(len(chunk.Rows))
	res.BytesWritten += int64(bytes)

	elapsed := timer.Stop()
	p.metrics.ChunkProcessed(len(chunk.Rows), elapsed)
	p.metrics.SetTablesTouched(len(res.Tables))
	span.SetAttribute("groups", len(groups))

	usage := p.resource.sample()
	p.metrics.SetMemoryRSS(usage.MemoryRSS)

	log.Info("chunk appended",
		zap.Int("chunk", chunk.Index),
		zap.Int("rows", len(chunk.Rows)),
		zap.Int("groups", len(groups)),
		zap.Int("bytes", bytes),
		zap.Duration("elapsed", elapsed))
	log.Debug("resource usage",
		zap.Uint64("rss_bytes", usage.MemoryRSS),
		zap.Uint64("heap_bytes", usage.HeapAlloc),
		zap.Float64("cpu_percent", usage.CPUPercent),
		zap.Float64("system_memory_percent", usage.SystemMemoryPercent))
	return nil
}

// attachColumnNames stamps every touched table that still exists with the
// input header.
func (p *Pipeline) attachColumnNames(st *store.Store, res *Result, log *zap.Logger) error {
	if len(res.Tables) == 0 {
		return nil
	}
	err := st.Update(func(tx *store.Tx) error {
		for _, path := range res.Tables {
			ok, err := tx.Has(path)
			if err != nil {
				return err
			}
			if !ok {
				log.Warn("touched table no longer exists", zap.String("table", path))
				continue
			}
			if err := tx.SetAttr(path, p.config.AttrName, res.Columns); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to attach column names")
	}
	return nil
}

func firstEmptyRow(f *columnar.Frame) int {
	for i, v := range f.Column(0) {
		if v == "" {
			return i
		}
	}
	return 0
}
