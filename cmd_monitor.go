package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/wspr"
)

var monitorFlags struct {
	csv      string
	duration time.Duration
	status   bool
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print device traffic until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonitor(cmd.Context(), cmd.OutOrStdout())
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the built-in transmitter emulator and show what it reports",
	Long: `Run the built-in transmitter emulator through a full beacon cycle and
print the decoded status, as monitor --status would for real hardware.

To open the configuration window against the emulator use
  wsprcfg --simulate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagSimulate = true
		monitorFlags.status = true
		return runMonitor(cmd.Context(), cmd.OutOrStdout())
	},
}

func runMonitor(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if monitorFlags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, monitorFlags.duration)
		defer cancel()
	}

	return withDevice(ctx, func(e *env, c *conn) error {
		if e.sim != nil && monitorFlags.status {
			// Start the emulated beacon so there is something to watch.
			if err := c.ctl.Start(); err != nil {
				return err
			}
		}

		events := make(chan string, 64)
		if monitorFlags.status {
			c.ctl.OnUpdate(func(code wspr.Code, st wspr.Status) {
				if line := describe(code, st); line != "" {
					select {
					case events <- line:
					default:
					}
				}
			})
		} else {
			e.trace.OnAdd(func(t device.TraceEntry) {
				select {
				case events <- fmt.Sprintf("%s %s %s", t.Time.Format("15:04:05.000"), t.Dir, t.Text):
				default:
				}
			})
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case line := <-events:
					fmt.Fprintln(out, line)
				}
			}
		})
		g.Go(func() error {
			sess := c.ctl.Session()
			select {
			case <-gctx.Done():
				return nil
			case <-sess.Done():
				return sess.Err()
			}
		})
		err := g.Wait()

		if monitorFlags.csv != "" {
			entries := e.trace.Entries()
			opts := device.CSVExportOptions{IncludeTimestamps: true}
			n, xerr := device.ExportCSV(monitorFlags.csv, entries, opts)
			if xerr != nil {
				return xerr
			}
			fmt.Fprintf(out, "exported %d lines to %s\n", n, monitorFlags.csv)
		}
		return err
	})
}

// describe turns a status update into a line for people, or "" for
// updates not worth a line.
func describe(code wspr.Code, st wspr.Status) string {
	switch code {
	case wspr.CodeCurrentMode:
		return "mode: " + st.Mode.String()
	case wspr.CodeTxOn:
		if st.TxOn {
			return fmt.Sprintf("transmitter on, %s Hz", st.TxFrequency)
		}
		return "transmitter off"
	case wspr.CodeNextBand:
		return "next band: " + wspr.BandName(st.NextBand)
	case wspr.CodeTxBand:
		return fmt.Sprintf("transmitting on %s: %3d%%", wspr.BandName(st.TxBand), st.TxPercent())
	case wspr.CodeCycleComplete:
		return "transmission complete"
	case wspr.CodePauseProgress:
		return fmt.Sprintf("pause: %ds left", st.PauseLeft)
	case wspr.CodeGPSLock:
		if st.GPSLocked {
			return "gps locked"
		}
		return "gps not locked"
	case wspr.CodeGPSLocator:
		return "gps locator: " + st.GPSLocator
	case wspr.CodeGPSTime:
		if len(st.Satellites) == 0 {
			return ""
		}
		return fmt.Sprintf("gps %s, %d satellites, signal %d%%", st.GPSTime, len(st.Satellites), wspr.SignalQuality(st.Satellites))
	case wspr.CodeMessage:
		if n := len(st.Messages); n > 0 {
			return "device: " + st.Messages[n-1]
		}
	}
	return ""
}

func init() {
	f := monitorCmd.Flags()
	f.StringVar(&monitorFlags.csv, "csv", "", "export the traffic to this CSV file on exit")
	f.DurationVar(&monitorFlags.duration, "duration", 0, "stop after this long")
	f.BoolVar(&monitorFlags.status, "status", false, "print decoded status instead of raw lines")

	simulateCmd.Flags().DurationVar(&monitorFlags.duration, "duration", 0, "stop after this long")

	rootCmd.AddCommand(monitorCmd, simulateCmd)
}
