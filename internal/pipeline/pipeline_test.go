package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/hdfmast/pkg/config"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
	"github.com/ajitpratap0/hdfmast/pkg/metrics"
	"github.com/ajitpratap0/hdfmast/pkg/source"
	"github.com/ajitpratap0/hdfmast/pkg/store"
	"github.com/ajitpratap0/hdfmast/pkg/testutil"
)

func run(t *testing.T, cfg *Config, input string) (*Result, error) {
	t.Helper()
	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	return New(cfg, testutil.TestLogger(t), nil).Run(ctx, strings.NewReader(input))
}

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	opts := store.DefaultOptions()
	opts.ReadOnly = true
	opts.Logger = testutil.TestLogger(t)
	s, err := store.Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func readTable(t *testing.T, s *store.Store, path string) [][]string {
	t.Helper()
	f, err := s.Select(path, store.Query{})
	require.NoError(t, err)
	return f.Rows()
}

func TestAccountsScenario(t *testing.T) {
	path := testutil.TempStorePath(t)
	cfg := DefaultConfig(path, "accts", "v1")

	res, err := run(t, cfg, "ID,NAME\n1,a\n1,b\n2,c\n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, []string{"1/accts/v1", "2/accts/v1"}, res.Tables)
	assert.Equal(t, []string{"ID", "NAME"}, res.Columns)
	assert.Positive(t, res.BytesWritten)

	s := openStore(t, path)
	assert.Equal(t, [][]string{{"1", "a"}, {"1", "b"}}, readTable(t, s, "1/accts/v1"))
	assert.Equal(t, [][]string{{"2", "c"}}, readTable(t, s, "2/accts/v1"))

	for _, table := range res.Tables {
		var names []string
		require.NoError(t, s.Attr(table, "column_names", &names))
		assert.Equal(t, []string{"ID", "NAME"}, names)
	}

	info, err := s.Table("1/accts/v1")
	require.NoError(t, err)
	assert.Equal(t, 21, info.Columns[0].Itemsize)
	assert.Equal(t, 60, info.Columns[1].Itemsize)
}

func TestSecondRunDoublesRows(t *testing.T) {
	path := testutil.TempStorePath(t)
	input := "ID,NAME\n1,a\n1,b\n2,c\n"

	_, err := run(t, DefaultConfig(path, "accts", "v1"), input)
	require.NoError(t, err)
	_, err = run(t, DefaultConfig(path, "accts", "v1"), input)
	require.NoError(t, err)

	s := openStore(t, path)
	assert.Equal(t, [][]string{{"1", "a"}, {"1", "b"}, {"1", "a"}, {"1", "b"}}, readTable(t, s, "1/accts/v1"))
	assert.Equal(t, [][]string{{"2", "c"}, {"2", "c"}}, readTable(t, s, "2/accts/v1"))
}

func TestChunkSizeDoesNotChangeContents(t *testing.T) {
	var b strings.Builder
	b.WriteString("KEY,NAME,TYPE\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "%d,name-%d,%c\n", i%7, i, 'A'+i%3)
	}
	input := b.String()

	contents := func(chunkSize int) map[string][][]string {
		path := testutil.TempStorePath(t)
		cfg := DefaultConfig(path, "g", "t")
		cfg.ChunkSize = chunkSize
		res, err := run(t, cfg, input)
		require.NoError(t, err)

		s := openStore(t, path)
		out := make(map[string][][]string)
		for _, table := range res.Tables {
			out[table] = readTable(t, s, table)
		}
		return out
	}

	small := contents(2)
	large := contents(1_000_000)
	assert.Len(t, large, 7)
	assert.Equal(t, large, small)
}

func TestTouchedTablesInFirstOccurrenceOrder(t *testing.T) {
	cfg := DefaultConfig(testutil.TempStorePath(t), "g", "t")
	cfg.ChunkSize = 2

	res, err := run(t, cfg, "K\nb\na\nc\nb\na\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/g/t", "a/g/t", "c/g/t"}, res.Tables)
	assert.Equal(t, 3, res.Chunks)
}

func TestItemsizeHintsAndWidening(t *testing.T) {
	path := testutil.TempStorePath(t)
	long := strings.Repeat("x", 75)
	input := "ID,NAME,ITS,DESCR\n1,short,AB,d\n1," + long + ",ABCDEFG,d\n"

	cfg := DefaultConfig(path, "g", "t")
	cfg.ChunkSize = 1
	_, err := run(t, cfg, input)
	require.NoError(t, err)

	s := openStore(t, path)
	info, err := s.Table("1/g/t")
	require.NoError(t, err)
	assert.Equal(t, []store.ColumnInfo{
		{Name: "ID", Itemsize: 21},
		{Name: "NAME", Itemsize: 75},
		{Name: "ITS", Itemsize: 7},
		{Name: "DESCR", Itemsize: 21},
	}, info.Columns)
	assert.Equal(t, [][]string{{"1", "short", "AB", "d"}, {"1", long, "ABCDEFG", "d"}}, readTable(t, s, "1/g/t"))
}

func TestLatin1BytesAreStoredAsText(t *testing.T) {
	path := testutil.TempStorePath(t)
	csvPath := testutil.WriteCSV(t, "ID,NAME\n1,Zürich\n")

	f, err := source.OpenInput(csvPath, nil, nil)
	require.NoError(t, err)
	defer f.Close()
	in, err := source.Decode(f, source.EncodingLatin1)
	require.NoError(t, err)

	res, err := New(DefaultConfig(path, "g", "t"), testutil.TestLogger(t), nil).Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, []string{"1/g/t"}, res.Tables)

	s := openStore(t, path)
	assert.Equal(t, [][]string{{"1", "Zürich"}}, readTable(t, s, "1/g/t"))
}

func TestHeaderOnlyCreatesNoTables(t *testing.T) {
	path := testutil.TempStorePath(t)
	res, err := run(t, DefaultConfig(path, "g", "t"), "ID,NAME\n")
	require.NoError(t, err)
	assert.Empty(t, res.Tables)
	assert.Equal(t, 0, res.Chunks)

	tables, err := openStore(t, path).Tables()
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestEmptyInputIsParseError(t *testing.T) {
	_, err := run(t, DefaultConfig(testutil.TempStorePath(t), "g", "t"), "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestRaggedRowStopsRunKeepingEarlierChunks(t *testing.T) {
	path := testutil.TempStorePath(t)
	cfg := DefaultConfig(path, "g", "t")
	cfg.ChunkSize = 2

	_, err := run(t, cfg, "A,B\n1,x\n1,y\n2,z\n2\n")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	s := openStore(t, path)
	assert.Equal(t, [][]string{{"1", "x"}, {"1", "y"}}, readTable(t, s, "1/g/t"))
	ok, err := s.Has("2/g/t")
	require.NoError(t, err)
	assert.False(t, ok, "the failing chunk must not be partially written")

	attrs, err := s.Attrs("1/g/t")
	require.NoError(t, err)
	assert.NotContains(t, attrs, "column_names", "failed runs do not attach column names")
}

func TestEmptyKeyIsParseError(t *testing.T) {
	path := testutil.TempStorePath(t)
	_, err := run(t, DefaultConfig(path, "g", "t"), "A,B\n1,x\n,y\n")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	tables, err := openStore(t, path).Tables()
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestSchemaMismatchIsStorageError(t *testing.T) {
	path := testutil.TempStorePath(t)
	_, err := run(t, DefaultConfig(path, "g", "t"), "A,B\n1,x\n")
	require.NoError(t, err)

	_, err = run(t, DefaultConfig(path, "g", "t"), "A,C\n1,x\n")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorage))
	assert.True(t, errors.Is(err, store.ErrSchemaMismatch))
}

func TestKeysWithSeparatorNest(t *testing.T) {
	path := testutil.TempStorePath(t)
	res, err := run(t, DefaultConfig(path, "g", "t"), "K,V\na/b,1\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/g/t"}, res.Tables)

	tables, err := openStore(t, path).Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/g/t"}, tables)
}

func TestLeadingSeparatorKeysShareOneTable(t *testing.T) {
	m := metrics.NewCollector("ingest")
	path := testutil.TempStorePath(t)

	res, err := New(DefaultConfig(path, "g", "t"), testutil.TestLogger(t), m).
		Run(context.Background(), strings.NewReader("ID,NAME\n/1,a\n1,b\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1/g/t"}, res.Tables)
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "hdfmast_tables_touched" {
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}

	s := openStore(t, path)
	assert.Equal(t, [][]string{{"/1", "a"}, {"1", "b"}}, readTable(t, s, "1/g/t"))
	var names []string
	require.NoError(t, s.Attr("1/g/t", "column_names", &names))
	assert.Equal(t, []string{"ID", "NAME"}, names)
}

func TestMissingTouchedTableWarnsOnRunLogger(t *testing.T) {
	path := testutil.TempStorePath(t)
	_, err := run(t, DefaultConfig(path, "g", "t"), "K\n1\n")
	require.NoError(t, err)

	baseCore, baseLogs := observer.New(zap.DebugLevel)
	runCore, runLogs := observer.New(zap.DebugLevel)
	p := New(DefaultConfig(path, "g", "t"), zap.New(baseCore), nil)
	runLog := zap.New(runCore).With(zap.String("store", path))

	st, err := store.Open(path, &store.Options{Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	defer st.Close()

	res := &Result{Tables: []string{"1/g/t", "2/g/t"}, Columns: []string{"K"}}
	require.NoError(t, p.attachColumnNames(st, res, runLog))

	assert.Zero(t, baseLogs.Len())
	warnings := runLogs.FilterMessage("touched table no longer exists").All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, path, fields["store"])
	assert.Equal(t, "2/g/t", fields["table"])
}

func TestCustomAttrNameAndCompression(t *testing.T) {
	path := testutil.TempStorePath(t)
	appCfg := config.Default()
	appCfg.AttrName = "header"
	appCfg.Compression.Algorithm = "zstd"
	appCfg.Delimiter = ";"

	cfg, err := FromConfig(appCfg, path, "g", "t")
	require.NoError(t, err)
	_, err = run(t, cfg, "A;B\n1;x\n")
	require.NoError(t, err)

	s := openStore(t, path)
	var names []string
	require.NoError(t, s.Attr("1/g/t", "header", &names))
	assert.Equal(t, []string{"A", "B"}, names)
	assert.Equal(t, [][]string{{"1", "x"}}, readTable(t, s, "1/g/t"))
}

func TestDuplicateHeadersAreRenamed(t *testing.T) {
	path := testutil.TempStorePath(t)
	res, err := run(t, DefaultConfig(path, "g", "t"), "K,A,A\n1,x,y\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"K", "A", "A.1"}, res.Columns)
}

func TestMetricsAreRecorded(t *testing.T) {
	m := metrics.NewCollector("ingest")
	cfg := DefaultConfig(testutil.TempStorePath(t), "g", "t")
	cfg.ChunkSize = 2

	_, err := New(cfg, testutil.TestLogger(t), m).Run(context.Background(), strings.NewReader("K\n1\n1\n2\n"))
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				got[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, got["hdfmast_rows_total"])
	assert.Equal(t, 2.0, got["hdfmast_chunks_total"])
	assert.Equal(t, 2.0, got["hdfmast_table_appends_total"])
	assert.Equal(t, 1, promtest.CollectAndCount(m.Registry(), "hdfmast_tables_touched"))
}

func TestValidation(t *testing.T) {
	_, err := run(t, DefaultConfig("", "g", "t"), "A\n1\n")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUsage))

	_, err = run(t, DefaultConfig(testutil.TempStorePath(t), "", "t"), "A\n1\n")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUsage))

	cfg := DefaultConfig(testutil.TempStorePath(t), "g", "t")
	cfg.ChunkSize = 0
	_, err = run(t, cfg, "A\n1\n")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig(testutil.TempStorePath(t), "g", "t"), testutil.TestLogger(t), nil).
		Run(ctx, strings.NewReader("A\n1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTablePath(t *testing.T) {
	cfg := DefaultConfig("x", "accts", "v1")
	assert.Equal(t, "42/accts/v1", cfg.TablePath("42"))
	assert.Equal(t, "a/b/accts/v1", cfg.TablePath("a/b"))
}
