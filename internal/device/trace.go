package device

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"wspr-tx-config/internal/wspr"
)

// Direction of a traced line.
type Direction int

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return "tx"
	}
	return "rx"
}

// TraceEntry is one line of serial traffic.
type TraceEntry struct {
	Time time.Time
	Dir  Direction
	Text string
}

// MaxTraceEntries bounds the trace kept in memory.
const MaxTraceEntries = 10000

// Trace records serial traffic for the debug pane and CSV export. A nil
// *Trace discards everything.
type Trace struct {
	mu       sync.Mutex
	entries  []TraceEntry
	listener func(TraceEntry)
	now      func() time.Time
}

func NewTrace() *Trace {
	return &Trace{now: time.Now}
}

// OnAdd registers a callback run for every new entry. It is called outside
// the trace lock.
func (t *Trace) OnAdd(fn func(TraceEntry)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.listener = fn
	t.mu.Unlock()
}

func (t *Trace) Add(dir Direction, text string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	e := TraceEntry{Time: t.now(), Dir: dir, Text: text}
	t.entries = append(t.entries, e)
	if len(t.entries) > MaxTraceEntries {
		t.entries = t.entries[len(t.entries)-MaxTraceEntries:]
	}
	fn := t.listener
	t.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Entries returns a copy of the recorded traffic.
func (t *Trace) Entries() []TraceEntry {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Trace) Clear() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}

// CSVExportOptions configures how traffic is exported to CSV.
type CSVExportOptions struct {
	IncludeTimestamps bool
	ReceivedOnly      bool
	FilterByTime      bool
	StartTime         time.Time
	EndTime           time.Time
}

// WriteCSV writes the entries as CSV and returns how many entries passed
// the filters. Replies are split into code and data columns; everything
// else lands in the data column.
func WriteCSV(w io.Writer, entries []TraceEntry, opts CSVExportOptions) (int, error) {
	cw := csv.NewWriter(w)

	header := []string{"Direction", "Code", "Data"}
	if opts.IncludeTimestamps {
		header = append([]string{"Timestamp"}, header...)
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	n := 0
	for _, e := range entries {
		if opts.ReceivedOnly && e.Dir != Received {
			continue
		}
		if opts.FilterByTime {
			if e.Time.Before(opts.StartTime) || e.Time.After(opts.EndTime) {
				continue
			}
		}

		code, data := splitLine(e)
		record := []string{e.Dir.String(), code, data}
		if opts.IncludeTimestamps {
			record = append([]string{e.Time.Format("2006-01-02 15:04:05.000")}, record...)
		}
		if err := cw.Write(record); err != nil {
			return n, fmt.Errorf("failed to write record: %w", err)
		}
		n++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("failed to flush csv writer: %w", err)
	}
	return n, nil
}

// ExportCSV writes the entries to a file and returns the row count.
func ExportCSV(path string, entries []TraceEntry, opts CSVExportOptions) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := WriteCSV(f, entries, opts)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

func splitLine(e TraceEntry) (string, string) {
	if e.Dir == Received {
		if r, err := wspr.ParseReply(e.Text); err == nil {
			return string(r.Code), r.Data
		}
		return "", e.Text
	}
	// Requests look like "[CCC] op value".
	if len(e.Text) >= 5 && e.Text[0] == '[' && e.Text[4] == ']' {
		data := ""
		if len(e.Text) > 6 {
			data = e.Text[6:]
		}
		return e.Text[1:4], data
	}
	return "", e.Text
}
