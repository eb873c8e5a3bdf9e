package main

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/wspr"
)

var (
	modeNames     = []string{"Idle", "WSPR beacon", "Signal generator"}
	modeByName    = map[string]wspr.Mode{"Idle": wspr.ModeIdle, "WSPR beacon": wspr.ModeBeacon, "Signal generator": wspr.ModeGenerator}
	locationNames = []string{"GPS", "Manual"}
	powerModes    = []string{"Normal", "Altitude"}
)

// Radio labels are capitalised; the value names are not.
func radioLabel(s string) string {
	switch s {
	case "gps":
		return "GPS"
	case "":
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func modeName(m wspr.Mode) string {
	for name, v := range modeByName {
		if v == m {
			return name
		}
	}
	return ""
}

type wsprTab struct {
	mode      *widget.Label
	call      *widget.Entry
	locator   *widget.Entry
	name      *widget.Entry
	pause     *widget.Entry
	location  *widget.RadioGroup
	powerMode *widget.RadioGroup
	power     *widget.Select
	startMode *widget.Select
	pauseBar  *widget.ProgressBar
	bands     [wspr.NumBands]*widget.Check
	bandBars  [wspr.NumBands]*widget.ProgressBar
	bandMarks [wspr.NumBands]*widget.Label
	lowPass   [wspr.NumBands]*widget.Label
}

func powerLabel(dbm int) string {
	return fmt.Sprintf("%d dBm (%s W)", dbm, strconv.FormatFloat(wspr.PowerWatts(dbm), 'g', 3, 64))
}

func (ui *AppUI) buildWSPRTab() fyne.CanvasObject {
	t := &ui.wspr

	t.mode = widget.NewLabelWithStyle("Mode: unknown", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	startBtn := widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), func() {
		ui.withController((*device.Controller).Start)
	})
	stopBtn := widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
		ui.withController((*device.Controller).Stop)
	})

	// Entries commit on Enter.
	t.call = widget.NewEntry()
	t.call.SetPlaceHolder("Callsign")
	t.call.OnSubmitted = func(s string) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if len(s) > wspr.MaxCallsignLen {
			s = s[:wspr.MaxCallsignLen]
		}
		t.call.SetText(s)
		ui.withController(func(c *device.Controller) error { return c.SetCallsign(s) })
	}
	t.locator = widget.NewEntry()
	t.locator.SetPlaceHolder("JO65")
	t.locator.OnSubmitted = func(s string) {
		ui.withController(func(c *device.Controller) error { return c.SetLocator(s) })
	}
	t.name = widget.NewEntry()
	t.name.OnSubmitted = func(s string) {
		ui.withController(func(c *device.Controller) error { return c.SetName(s) })
	}
	t.pause = widget.NewEntry()
	t.pause.SetPlaceHolder("seconds")
	t.pause.OnSubmitted = func(s string) {
		ui.withController(func(c *device.Controller) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("%w: pause %q", wspr.ErrInvalidValue, s)
			}
			return c.SetPause(n)
		})
	}

	t.location = widget.NewRadioGroup(locationNames, func(s string) {
		if ui.updating || s == "" {
			return
		}
		var l wspr.LocationSource
		if err := l.UnmarshalText([]byte(s)); err != nil {
			dialog.ShowError(err, ui.window)
			return
		}
		ui.withController(func(c *device.Controller) error { return c.SetLocationSource(l) })
	})
	t.location.Horizontal = true

	t.powerMode = widget.NewRadioGroup(powerModes, func(s string) {
		if ui.updating || s == "" {
			return
		}
		var p wspr.PowerMode
		if err := p.UnmarshalText([]byte(s)); err != nil {
			dialog.ShowError(err, ui.window)
			return
		}
		ui.withController(func(c *device.Controller) error { return c.SetPowerMode(p) })
	})
	t.powerMode.Horizontal = true

	labels := make([]string, len(wspr.PowerLevels))
	for i, p := range wspr.PowerLevels {
		labels[i] = powerLabel(p)
	}
	t.power = widget.NewSelect(labels, func(s string) {
		if ui.updating {
			return
		}
		for _, p := range wspr.PowerLevels {
			if powerLabel(p) == s {
				ui.withController(func(c *device.Controller) error { return c.SetReportedPower(p) })
				return
			}
		}
	})

	t.startMode = widget.NewSelect(modeNames, func(s string) {
		if ui.updating {
			return
		}
		m, ok := modeByName[s]
		if !ok {
			return
		}
		ui.withController(func(c *device.Controller) error { return c.SetStartMode(m) })
	})

	t.pauseBar = widget.NewProgressBar()
	t.pauseBar.Max = 100

	settings := widget.NewForm(
		widget.NewFormItem("Callsign", t.call),
		widget.NewFormItem("Locator", t.locator),
		widget.NewFormItem("Location from", t.location),
		widget.NewFormItem("Power field", t.powerMode),
		widget.NewFormItem("Reported power", t.power),
		widget.NewFormItem("Pause", t.pause),
		widget.NewFormItem("Pause progress", t.pauseBar),
		widget.NewFormItem("At power on", t.startMode),
		widget.NewFormItem("Name", t.name),
	)

	bandGrid := container.NewGridWithColumns(4)
	for i := range wspr.Bands {
		idx := i
		t.bands[i] = widget.NewCheck(wspr.Bands[i], func(on bool) {
			if ui.updating {
				return
			}
			ui.withController(func(c *device.Controller) error { return c.SetBand(idx, on) })
		})
		t.bandBars[i] = widget.NewProgressBar()
		t.bandBars[i].Max = 100
		t.bandMarks[i] = widget.NewLabel("")
		t.lowPass[i] = widget.NewLabel("")
		bandGrid.Add(t.bands[i])
		bandGrid.Add(t.bandBars[i])
		bandGrid.Add(t.bandMarks[i])
		bandGrid.Add(t.lowPass[i])

		ui.deviceWidgets = append(ui.deviceWidgets, t.bands[i])
	}

	ui.deviceWidgets = append(ui.deviceWidgets,
		startBtn, stopBtn, t.call, t.locator, t.name, t.pause,
		t.location, t.powerMode, t.power, t.startMode)

	top := container.NewHBox(t.mode, layout.NewSpacer(), startBtn, stopBtn)
	return container.NewBorder(top, nil, nil, nil,
		container.NewHSplit(
			container.NewVScroll(settings),
			container.NewVScroll(container.NewVBox(widget.NewLabel("Bands"), bandGrid)),
		),
	)
}

func (t *wsprTab) showMode(st wspr.Status) {
	t.mode.SetText("Mode: " + modeName(st.Mode))
}

// setEntry leaves an entry alone while the user is typing in it.
func (ui *AppUI) setEntry(e *widget.Entry, text string) {
	if f := ui.window.Canvas().Focused(); f != nil && f == fyne.Focusable(e) {
		return
	}
	e.SetText(text)
}

func (t *wsprTab) apply(ui *AppUI, code wspr.Code, st wspr.Status) {
	switch code {
	case wspr.CodeCallsign:
		ui.setEntry(t.call, st.Callsign)
	case wspr.CodeLocator:
		ui.setEntry(t.locator, st.Locator)
	case wspr.CodeName:
		ui.setEntry(t.name, st.Name)
	case wspr.CodeTxPause:
		ui.setEntry(t.pause, strconv.Itoa(st.Pause))
	case wspr.CodeLocationSource:
		t.location.SetSelected(radioLabel(st.LocationSource.String()))
	case wspr.CodePowerMode:
		t.powerMode.SetSelected(radioLabel(st.PowerMode.String()))
	case wspr.CodeReportedPower:
		t.power.SetSelected(powerLabel(st.ReportedPower))
	case wspr.CodeStartMode:
		t.startMode.SetSelected(modeName(st.StartMode))
	case wspr.CodeBand:
		for i, on := range st.Bands {
			t.bands[i].SetChecked(on)
		}
	case wspr.CodeLowPassFilter:
		for i, on := range st.LowPassFilters {
			if on {
				t.lowPass[i].SetText("LP filter")
			}
		}
	case wspr.CodePauseProgress, wspr.CodeTxBand, wspr.CodeNextBand, wspr.CodeCycleComplete, wspr.CodeCurrentMode:
		t.showProgress(st)
	}
}

func (t *wsprTab) showProgress(st wspr.Status) {
	t.pauseBar.SetValue(float64(st.PausePercent()))
	for i := range wspr.Bands {
		mark := ""
		switch {
		case i == st.TxBand:
			mark = "TX"
		case i == st.NextBand && st.Mode == wspr.ModeBeacon:
			mark = "next"
		}
		t.bandMarks[i].SetText(mark)
		v := 0.0
		if i == st.TxBand {
			v = float64(st.TxPercent())
		}
		t.bandBars[i].SetValue(v)
	}
}

type generatorTab struct {
	freq   *widget.Label
	digits [11]*widget.Label
	entry  *widget.Entry
	mode   *widget.Label
}

func (ui *AppUI) buildGeneratorTab() fyne.CanvasObject {
	t := &ui.gen

	t.freq = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Monospace: true, Bold: true})
	t.mode = widget.NewLabel("")

	// One column per digit from 100 MHz down to 0.01 Hz.
	cols := container.NewHBox()
	for i := range t.digits {
		step := int64(wspr.StepSizes[i])
		up := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() { ui.stepFrequency(step) })
		down := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() { ui.stepFrequency(-step) })
		t.digits[i] = widget.NewLabelWithStyle("0", fyne.TextAlignCenter, fyne.TextStyle{Monospace: true})
		cols.Add(container.NewVBox(up, t.digits[i], down))
		switch i {
		case 2, 5:
			cols.Add(widget.NewLabel(" "))
		case 8:
			cols.Add(widget.NewLabel("."))
		}
		ui.deviceWidgets = append(ui.deviceWidgets, up, down)
	}

	t.entry = widget.NewEntry()
	t.entry.SetPlaceHolder("Frequency in Hz, e.g. 10M or 14097100")
	t.entry.OnSubmitted = func(s string) {
		f, err := wspr.ParseHz(s)
		if err != nil {
			dialog.ShowError(err, ui.window)
			return
		}
		ui.withController(func(c *device.Controller) error {
			if err := c.SetGeneratorFrequency(f); err != nil {
				return err
			}
			t.showFrequency(f)
			return nil
		})
	}

	startBtn := widget.NewButtonWithIcon("Start generator", theme.MediaPlayIcon(), func() {
		ui.withController((*device.Controller).StartGenerator)
	})
	stopBtn := widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
		ui.withController((*device.Controller).Stop)
	})
	ui.deviceWidgets = append(ui.deviceWidgets, t.entry, startBtn, stopBtn)

	t.showFrequency(wspr.DefaultGeneratorFrequency)
	return container.NewVBox(
		t.freq,
		container.NewCenter(cols),
		container.NewBorder(nil, nil, widget.NewLabel("Set:"), nil, t.entry),
		container.NewHBox(startBtn, stopBtn, layout.NewSpacer(), t.mode),
	)
}

func (ui *AppUI) stepFrequency(delta int64) {
	ui.withController(func(c *device.Controller) error {
		f, err := c.StepFrequency(delta)
		ui.gen.showFrequency(f)
		return err
	})
}

func (t *generatorTab) showFrequency(f wspr.Frequency) {
	t.freq.SetText(f.String() + " Hz")
	for i, l := range t.digits {
		l.SetText(strconv.Itoa(f.Digit(i + 1)))
	}
}

func (t *generatorTab) showMode(st wspr.Status) {
	if st.Mode == wspr.ModeGenerator {
		t.mode.SetText("Generating")
		return
	}
	t.mode.SetText("")
}
