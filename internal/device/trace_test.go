package device

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTrace(start time.Time) *Trace {
	tr := NewTrace()
	n := 0
	tr.now = func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
	return tr
}

func TestTraceBounded(t *testing.T) {
	tr := NewTrace()
	for i := 0; i < MaxTraceEntries+5; i++ {
		tr.Add(Received, "{TCC}")
	}
	assert.Equal(t, MaxTraceEntries, tr.Len())
	tr.Clear()
	assert.Zero(t, tr.Len())
}

func TestTraceListener(t *testing.T) {
	tr := NewTrace()
	var got []TraceEntry
	tr.OnAdd(func(e TraceEntry) { got = append(got, e) })
	tr.Add(Sent, "[CCM] G")
	require.Len(t, got, 1)
	assert.Equal(t, "[CCM] G", got[0].Text)
}

func TestNilTrace(t *testing.T) {
	var tr *Trace
	tr.Add(Sent, "x")
	tr.OnAdd(nil)
	tr.Clear()
	assert.Nil(t, tr.Entries())
	assert.Zero(t, tr.Len())
}

func TestWriteCSV(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := fixedTrace(start)
	tr.Add(Sent, "[DCS] S SM0ABC")
	tr.Add(Received, "{DCS} SM0ABC")
	tr.Add(Received, "booting")
	tr.Add(Sent, "free text")

	var buf bytes.Buffer
	n, err := WriteCSV(&buf, tr.Entries(), CSVExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "Direction,Code,Data\n"+
		"tx,DCS,S SM0ABC\n"+
		"rx,DCS,SM0ABC\n"+
		"rx,,booting\n"+
		"tx,,free text\n", buf.String())

	buf.Reset()
	n, err = WriteCSV(&buf, tr.Entries(), CSVExportOptions{
		IncludeTimestamps: true,
		ReceivedOnly:      true,
		FilterByTime:      true,
		StartTime:         start.Add(2 * time.Second),
		EndTime:           start.Add(2 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the rows written are counted")
	assert.Equal(t, "Timestamp,Direction,Code,Data\n"+
		"2024-05-01 12:00:02.000,rx,DCS,SM0ABC\n", buf.String())
}

func TestExportCSV(t *testing.T) {
	tr := NewTrace()
	tr.Add(Received, "{MIN} ready")
	tr.Add(Sent, "[CCM] G")
	path := filepath.Join(t.TempDir(), "trace.csv")
	n, err := ExportCSV(path, tr.Entries(), CSVExportOptions{ReceivedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rx,MIN,ready")

	_, err = ExportCSV(filepath.Join(t.TempDir(), "missing", "x.csv"), nil, CSVExportOptions{})
	assert.Error(t, err)
}
