package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hdfmast/pkg/formats/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/source"
	"github.com/ajitpratap0/hdfmast/pkg/testutil"
)

func withTerminal(t *testing.T, terminal bool) {
	t.Helper()
	prev := stdinIsTerminal
	stdinIsTerminal = func() bool { return terminal }
	t.Cleanup(func() { stdinIsTerminal = prev })
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(append(args, "--log-level", "error"), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func ingest(t *testing.T, content string, extra ...string) string {
	t.Helper()
	storePath := testutil.TempStorePath(t)
	csvPath := testutil.WriteCSV(t, content)
	args := append([]string{storePath, "accts", "v1", csvPath}, extra...)
	code, _, stderr := runCLI(t, "", args...)
	require.Equal(t, 0, code, stderr)
	return storePath
}

func TestTerminalGuardLeavesStoreUntouched(t *testing.T) {
	withTerminal(t, true)
	storePath := testutil.TempStorePath(t)

	for _, args := range [][]string{
		{storePath, "accts", "v1"},
		{storePath, "accts", "v1", "-"},
	} {
		code, _, stderr := runCLI(t, "", args...)
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, source.NoInputMessage)
		assert.Contains(t, stderr, "Usage:")
		assert.NoFileExists(t, storePath)
	}
}

func TestTerminalGuardLeavesExistingStoreUnchanged(t *testing.T) {
	storePath := ingest(t, "ID,NAME\n1,a\n")
	before, err := os.ReadFile(storePath)
	require.NoError(t, err)
	statBefore, err := os.Stat(storePath)
	require.NoError(t, err)

	withTerminal(t, true)
	code, _, stderr := runCLI(t, "", storePath, "accts", "v1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, source.NoInputMessage)

	after, err := os.ReadFile(storePath)
	require.NoError(t, err)
	statAfter, err := os.Stat(storePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, statBefore.ModTime(), statAfter.ModTime())
}

func TestStoreNamedLikeSubcommand(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	csvPath := testutil.WriteCSV(t, "ID\n1\n")
	code, _, stderr := runCLI(t, "", "./export", "g", "t", csvPath)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(dir, "export"))

	code, out, _ := runCLI(t, "", "dump", "./export", "1/g/t")
	require.Equal(t, 0, code)
	assert.Equal(t, "ID\n1\n", out)

	code, _, stderr = runCLI(t, "", "export", "g", "t", csvPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")
}

func TestMissingArguments(t *testing.T) {
	storePath := testutil.TempStorePath(t)
	code, _, stderr := runCLI(t, "", storePath, "accts")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")
	assert.NoFileExists(t, storePath)

	code, _, _ = runCLI(t, "", storePath, "a", "b", "c", "d")
	assert.Equal(t, 1, code)
}

func TestIngestAndDump(t *testing.T) {
	storePath := ingest(t, "ID,NAME\n1,a\n1,b\n2,c\n")

	code, out, stderr := runCLI(t, "", "ls", storePath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "1/accts/v1")
	assert.Contains(t, out, "2/accts/v1")
	assert.Contains(t, out, "NAME(60)")

	code, out, stderr = runCLI(t, "", "dump", storePath, "2/accts/v1")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "ID,NAME\n2,c\n", out)

	code, out, stderr = runCLI(t, "", "dump", storePath, "1/accts/v1", "--where", "NAME=b", "--columns", "NAME")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "NAME\nb\n", out)
}

func TestIngestFromStdin(t *testing.T) {
	withTerminal(t, false)
	storePath := testutil.TempStorePath(t)

	code, _, stderr := runCLI(t, "K,V\nx,1\n", storePath, "g", "t")
	require.Equal(t, 0, code, stderr)

	code, out, _ := runCLI(t, "", "dump", storePath, "x/g/t")
	require.Equal(t, 0, code)
	assert.Equal(t, "K,V\nx,1\n", out)
}

func TestLatin1InputIsDecoded(t *testing.T) {
	storePath := ingest(t, "ID,NAME\n1,Müller\n")

	code, out, _ := runCLI(t, "", "dump", storePath, "1/accts/v1")
	require.Equal(t, 0, code)
	assert.Equal(t, "ID,NAME\n1,Müller\n", out)
}

func TestItemsizeFlag(t *testing.T) {
	storePath := ingest(t, "ID,NAME\n1,a\n", "--itemsize", "NAME=80", "--itemsize", "ID=5")

	code, out, _ := runCLI(t, "", "ls", storePath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "ID(5),NAME(80)")
}

func TestParseErrorExitsNonZero(t *testing.T) {
	storePath := testutil.TempStorePath(t)
	csvPath := testutil.WriteCSV(t, "A,B\n1,x\n2\n")

	code, _, stderr := runCLI(t, "", storePath, "g", "t", csvPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
	assert.NotContains(t, stderr, "Usage:")
}

func TestExport(t *testing.T) {
	storePath := ingest(t, "ID,NAME\n1,a\n1,b\n")

	for _, format := range columnar.Formats() {
		t.Run(string(format), func(t *testing.T) {
			output := filepath.Join(t.TempDir(), "out"+columnar.GetFormatInfo(format).FileExtension)
			code, _, stderr := runCLI(t, "", "export", storePath, "1/accts/v1", "-f", string(format), "-o", output)
			require.Equal(t, 0, code, stderr)

			f, err := os.Open(output)
			require.NoError(t, err)
			defer f.Close()
			frame, err := columnar.ReadFrame(f, format)
			require.NoError(t, err)
			assert.Equal(t, []string{"ID", "NAME"}, frame.Names())
			assert.Equal(t, [][]string{{"1", "a"}, {"1", "b"}}, frame.Rows())
		})
	}
}

func TestExportRequiresOutput(t *testing.T) {
	storePath := ingest(t, "ID\n1\n")
	code, _, stderr := runCLI(t, "", "export", storePath, "1/accts/v1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--output is required")
}

func TestBadWhere(t *testing.T) {
	storePath := ingest(t, "ID\n1\n")
	code, _, _ := runCLI(t, "", "dump", storePath, "1/accts/v1", "--where", "ID")
	assert.Equal(t, 1, code)
}

func TestConfigCommandLayersEnvironment(t *testing.T) {
	t.Setenv("HDFMAST_CHUNK_SIZE", "42")
	code, out, stderr := runCLI(t, "", "config", "--compression", "zstd")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "chunk_size: 42")
	assert.Contains(t, out, "algorithm: zstd")
}

func TestMetricsFile(t *testing.T) {
	metricsPath := filepath.Join(t.TempDir(), "run.prom")
	ingest(t, "ID\n1\n2\n", "--metrics-file", metricsPath)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hdfmast_rows_total")
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "hdfmast v"+version)
}
