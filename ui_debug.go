package main

import (
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/wspr"
)

func (ui *AppUI) buildDebugTab() fyne.CanvasObject {
	clearBtn := widget.NewButton("Clear", func() {
		ui.mu.Lock()
		ui.lines = nil
		ui.displayLines = nil
		ui.mu.Unlock()
		ui.env.trace.Clear()
		ui.output.Refresh()
	})

	exportBtn := widget.NewButton("Export CSV", func() {
		ui.showExportDialog()
	})

	autoscrollChk := widget.NewCheck("Autoscroll", func(checked bool) {
		ui.mu.Lock()
		ui.autoscroll = checked
		ui.mu.Unlock()
	})
	autoscrollChk.SetChecked(true)

	timestampChk := widget.NewCheck("Timestamps", func(checked bool) {
		ui.mu.Lock()
		ui.showTimestamp = checked
		ui.rebuildDisplayLines()
		ui.mu.Unlock()
		ui.output.Refresh()
	})

	// Copy the display text outside the lock; fyne calls back into the
	// list while refreshing.
	ui.output = widget.NewList(
		func() int {
			ui.mu.Lock()
			defer ui.mu.Unlock()
			return len(ui.displayLines)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.TextStyle = fyne.TextStyle{Monospace: true}
			return label
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ui.mu.Lock()
			var text string
			if id < len(ui.displayLines) {
				text = ui.displayLines[id]
			}
			ui.mu.Unlock()
			obj.(*widget.Label).SetText(text)
		},
	)

	raw := widget.NewEntry()
	raw.SetPlaceHolder("[CCM] G")
	crlf := widget.NewCheck("CR LF", nil)
	crlf.SetChecked(true)
	send := func() {
		text := raw.Text
		ui.withController(func(c *device.Controller) error {
			if err := c.SendRaw(text, crlf.Checked); err != nil {
				return err
			}
			raw.SetText("")
			return nil
		})
	}
	raw.OnSubmitted = func(string) { send() }
	sendBtn := widget.NewButton("Send", send)
	ui.deviceWidgets = append(ui.deviceWidgets, raw, sendBtn)

	ui.messageList = widget.NewList(
		func() int { return len(ui.messages) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			var text string
			if id < len(ui.messages) {
				text = ui.messages[id]
			}
			obj.(*widget.Label).SetText(text)
		},
	)

	optionsRow := container.NewHBox(
		autoscrollChk,
		timestampChk,
		layout.NewSpacer(),
		clearBtn,
		exportBtn,
	)
	sendRow := container.NewBorder(nil, nil, nil, container.NewHBox(crlf, sendBtn), raw)

	traffic := container.NewBorder(optionsRow, sendRow, nil, nil, ui.output)
	messages := container.NewBorder(widget.NewLabel("Device messages"), nil, nil, nil, ui.messageList)
	split := container.NewVSplit(traffic, messages)
	split.Offset = 0.75
	return split
}

// traceLine runs on whichever goroutine moved the line.
func (ui *AppUI) traceLine(e device.TraceEntry) {
	ui.mu.Lock()
	ui.lines = append(ui.lines, e)
	if len(ui.lines) > device.MaxTraceEntries {
		ui.lines = ui.lines[len(ui.lines)-device.MaxTraceEntries:]
	}
	ui.displayLines = append(ui.displayLines, ui.formatLine(e))
	if len(ui.displayLines) > device.MaxTraceEntries {
		ui.displayLines = ui.displayLines[len(ui.displayLines)-device.MaxTraceEntries:]
	}
	shouldScroll := ui.autoscroll
	count := len(ui.displayLines)
	ui.mu.Unlock()

	fyne.Do(func() {
		ui.output.Refresh()
		if shouldScroll && count > 0 {
			ui.output.ScrollToBottom()
		}
	})
}

func (ui *AppUI) formatLine(e device.TraceEntry) string {
	arrow := "<"
	if e.Dir == device.Sent {
		arrow = ">"
	}
	if ui.showTimestamp {
		return fmt.Sprintf("[%s] %s %s", e.Time.Format("15:04:05.000"), arrow, e.Text)
	}
	return arrow + " " + e.Text
}

// rebuildDisplayLines regenerates all display strings. Must be called with
// ui.mu held.
func (ui *AppUI) rebuildDisplayLines() {
	ui.displayLines = make([]string, len(ui.lines))
	for i, line := range ui.lines {
		ui.displayLines[i] = ui.formatLine(line)
	}
}

func (ui *AppUI) addMessage(st wspr.Status) {
	if n := len(st.Messages); n > 0 {
		ui.messages = append(ui.messages, time.Now().Format("15:04:05")+"  "+st.Messages[n-1])
		if len(ui.messages) > wspr.MaxMessages {
			ui.messages = ui.messages[len(ui.messages)-wspr.MaxMessages:]
		}
		ui.messageList.Refresh()
		ui.messageList.ScrollToBottom()
	}
}

func parseClock(now time.Time, text string) (time.Time, error) {
	t, err := time.Parse("15:04:05", text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time format (use HH:MM:SS): %s", text)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local), nil
}

func (ui *AppUI) showExportDialog() {
	entries := ui.env.trace.Entries()
	if len(entries) == 0 {
		dialog.ShowInformation("Export", "No traffic to export.", ui.window)
		return
	}

	includeTimestamps := widget.NewCheck("Include timestamps", nil)
	includeTimestamps.SetChecked(true)
	receivedOnly := widget.NewCheck("Replies only", nil)
	filterByTime := widget.NewCheck("Filter by time range", nil)

	startEntry := widget.NewEntry()
	startEntry.SetPlaceHolder("Start (HH:MM:SS)")
	startEntry.Disable()

	endEntry := widget.NewEntry()
	endEntry.SetPlaceHolder("End (HH:MM:SS)")
	endEntry.Disable()

	filterByTime.OnChanged = func(checked bool) {
		if checked {
			startEntry.Enable()
			endEntry.Enable()
		} else {
			startEntry.Disable()
			endEntry.Disable()
		}
	}

	form := widget.NewForm(
		widget.NewFormItem("Timestamps", includeTimestamps),
		widget.NewFormItem("Direction", receivedOnly),
		widget.NewFormItem("Time Filter", filterByTime),
		widget.NewFormItem("Start", startEntry),
		widget.NewFormItem("End", endEntry),
	)

	dialog.ShowCustomConfirm("Export CSV Options", "Export", "Cancel", form, func(confirmed bool) {
		if !confirmed {
			return
		}

		opts := device.CSVExportOptions{
			IncludeTimestamps: includeTimestamps.Checked,
			ReceivedOnly:      receivedOnly.Checked,
			FilterByTime:      filterByTime.Checked,
		}
		if filterByTime.Checked {
			now := time.Now()
			if text := strings.TrimSpace(startEntry.Text); text != "" {
				t, err := parseClock(now, text)
				if err != nil {
					dialog.ShowError(err, ui.window)
					return
				}
				opts.StartTime = t
			}
			opts.EndTime = now
			if text := strings.TrimSpace(endEntry.Text); text != "" {
				t, err := parseClock(now, text)
				if err != nil {
					dialog.ShowError(err, ui.window)
					return
				}
				opts.EndTime = t
			}
		}

		fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			defer writer.Close()
			n, err := device.WriteCSV(writer, entries, opts)
			if err != nil {
				dialog.ShowError(fmt.Errorf("failed to write CSV: %w", err), ui.window)
				return
			}
			dialog.ShowInformation("Export", fmt.Sprintf("Exported %d lines to CSV.", n), ui.window)
		}, ui.window)
		fd.SetFileName("wspr_traffic.csv")
		fd.Show()
	}, ui.window)
}
