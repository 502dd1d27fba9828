package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("ingest")

	c.ChunkProcessed(3, 10*time.Millisecond)
	c.ChunkProcessed(2, 20*time.Millisecond)
	c.TableAppended(true, 100)
	c.TableAppended(false, 50)
	c.TableAppended(false, 25)
	c.SetTablesTouched(1)

	assert.Equal(t, 5.0, promtest.ToFloat64(c.rows))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.chunks))
	assert.Equal(t, 175.0, promtest.ToFloat64(c.bytesWritten))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.appends.WithLabelValues("true")))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.appends.WithLabelValues("false")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.tablesTouched))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("a")
	b := NewCollector("b")
	a.ChunkProcessed(10, time.Millisecond)

	assert.Equal(t, 10.0, promtest.ToFloat64(a.rows))
	assert.Equal(t, 0.0, promtest.ToFloat64(b.rows))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector("ingest")
	c.ChunkProcessed(7, time.Millisecond)

	path := filepath.Join(t.TempDir(), "hdfmast.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `hdfmast_rows_total{component="ingest"} 7`)
	assert.Contains(t, string(data), "hdfmast_chunk_duration_seconds_bucket")
}

func TestThroughputTracker(t *testing.T) {
	c := NewCollector("ingest")
	tr := NewThroughputTracker(c)
	tr.Increment(100)
	time.Sleep(5 * time.Millisecond)

	rate := tr.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, promtest.ToFloat64(c.throughput))

	assert.NotPanics(t, func() { NewThroughputTracker(nil).GetAndReset() })
}

func TestTimer(t *testing.T) {
	timer := NewTimer("chunk")
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
	assert.Equal(t, "chunk", timer.Name())
}
