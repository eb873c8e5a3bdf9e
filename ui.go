package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/wspr"
)

const windowTitle = "ZachTek WSPR Transmitter Configuration"

func runGUI() error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	a := app.NewWithID("com.zachtek.wspr-tx-config")
	w := a.NewWindow(windowTitle)
	w.Resize(fyne.NewSize(960, 640))

	mgr := device.NewManager(e.opener(), e.openOptions(), e.controllerOptions(), e.log, e.trace)
	ui := NewAppUI(w, e, mgr)
	w.SetOnClosed(ui.shutdown)
	a.Lifecycle().SetOnStarted(ui.openStartupPort)

	w.ShowAndRun()
	return nil
}

// AppUI holds all UI state and widgets.
type AppUI struct {
	window fyne.Window
	env    *env
	mgr    *device.Manager
	log    *zap.Logger

	// updating is set while widgets are filled from device data so their
	// change handlers do not echo the values back. Main goroutine only.
	updating bool

	// Serial tab.
	portSelect *widget.Select
	refreshBtn *widget.Button
	connectBtn *widget.Button
	portStatus *widget.Label
	rxLabel    *widget.Label
	connected  atomic.Bool

	// Controls that need a device.
	deviceWidgets []fyne.Disableable

	// Toolbar.
	saveBtn       *widget.Button
	saveStatus    *widget.Label
	profileSelect *widget.Select

	wspr   wsprTab
	gen    generatorTab
	status statusTab

	// Debug tab.
	mu            sync.Mutex
	lines         []device.TraceEntry
	displayLines  []string
	autoscroll    bool
	showTimestamp bool
	output        *widget.List
	messages      []string
	messageList   *widget.List

	stopTicker chan struct{}
	stopOnce   sync.Once
}

func NewAppUI(window fyne.Window, e *env, mgr *device.Manager) *AppUI {
	ui := &AppUI{
		window:     window,
		env:        e,
		mgr:        mgr,
		log:        e.log,
		autoscroll: true,
		stopTicker: make(chan struct{}),
	}
	mgr.OnConnect(ui.attach)
	mgr.OnDisconnect(func(err error) {
		fyne.Do(func() {
			ui.setDisconnectedState()
			dialog.ShowError(fmt.Errorf("serial port error: %w", err), ui.window)
		})
	})
	ui.build()
	e.trace.OnAdd(ui.traceLine)
	go ui.tick()
	return ui
}

func (ui *AppUI) build() {
	tabs := container.NewAppTabs(
		container.NewTabItem("WSPR", ui.buildWSPRTab()),
		container.NewTabItem("Signal Generator", ui.buildGeneratorTab()),
		container.NewTabItem("Serial", ui.buildSerialTab()),
		container.NewTabItem("Device / GPS", ui.buildStatusTab()),
		container.NewTabItem("Debug", ui.buildDebugTab()),
	)

	ui.saveBtn = widget.NewButton("Save to device", ui.save)
	ui.saveBtn.Importance = widget.HighImportance
	ui.saveStatus = widget.NewLabel("")

	ui.profileSelect = widget.NewSelect(ui.env.cfg.ProfileNames(), nil)
	ui.profileSelect.PlaceHolder = "Profile"
	applyBtn := widget.NewButton("Apply", ui.applyProfile)
	storeBtn := widget.NewButton("Store as...", ui.storeProfile)
	deleteBtn := widget.NewButton("Delete", ui.deleteProfile)
	ui.deviceWidgets = append(ui.deviceWidgets, ui.saveBtn, applyBtn, storeBtn)

	toolbar := container.NewHBox(
		ui.saveBtn,
		ui.saveStatus,
		layout.NewSpacer(),
		ui.profileSelect,
		applyBtn,
		storeBtn,
		deleteBtn,
	)

	ui.window.SetContent(container.NewBorder(nil, toolbar, nil, nil, tabs))
	ui.setDisconnectedState()
	if ui.env.cfg.Port == "" {
		tabs.SelectIndex(2)
	}
}

func (ui *AppUI) buildSerialTab() fyne.CanvasObject {
	ui.portSelect = widget.NewSelect([]string{}, nil)
	ui.portSelect.PlaceHolder = "Select COM Port"

	ui.refreshBtn = widget.NewButton("Refresh", func() {
		ui.refreshPorts()
	})
	ui.refreshPorts()

	ui.connectBtn = widget.NewButton("Open", func() {
		ui.toggleConnection()
	})
	ui.portStatus = widget.NewLabel("Closed")
	ui.rxLabel = widget.NewLabel("")

	hint := widget.NewLabel("No port? " + strings.TrimPrefix(device.DriverHint(), "; "))
	hint.Wrapping = fyne.TextWrapWord

	portRow := container.NewHBox(
		widget.NewLabel("Port:"),
		ui.portSelect,
		ui.refreshBtn,
		ui.connectBtn,
	)
	return container.NewVBox(
		portRow,
		container.NewHBox(widget.NewLabel("Status:"), ui.portStatus, layout.NewSpacer(), ui.rxLabel),
		widget.NewSeparator(),
		hint,
	)
}

func (ui *AppUI) refreshPorts() {
	ports := ui.env.portNames()
	ui.portSelect.Options = ports
	switch {
	case ui.env.cfg.Port != "" && contains(ports, ui.env.cfg.Port):
		ui.portSelect.SetSelected(ui.env.cfg.Port)
	case len(ports) > 0:
		ui.portSelect.SetSelected(ports[0])
	default:
		ui.portSelect.ClearSelected()
	}
	ui.portSelect.Refresh()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (ui *AppUI) setDisconnectedState() {
	ui.connected.Store(false)
	ui.connectBtn.SetText("Open")
	ui.portSelect.Enable()
	ui.refreshBtn.Enable()
	ui.portStatus.SetText("Closed")
	ui.saveStatus.SetText("")
	for _, w := range ui.deviceWidgets {
		w.Disable()
	}
}

func (ui *AppUI) setConnectedState(name string) {
	ui.connected.Store(true)
	ui.connectBtn.SetText("Close")
	ui.portSelect.Disable()
	ui.refreshBtn.Disable()
	ui.portStatus.SetText("Open on " + name + ", waiting for device")
	for _, w := range ui.deviceWidgets {
		w.Enable()
	}
}

func (ui *AppUI) toggleConnection() {
	if ui.connected.Load() {
		ui.mgr.Disconnect()
		ui.setDisconnectedState()
		return
	}

	portName := ui.portSelect.Selected
	if portName == "" {
		dialog.ShowError(errors.New("no COM port selected"), ui.window)
		return
	}
	if err := ui.connect(portName); err != nil {
		dialog.ShowError(fmt.Errorf("failed to open: %w", err), ui.window)
	}
}

// openStartupPort opens the port given on the command line.
func (ui *AppUI) openStartupPort() {
	name, ok := ui.env.startupPort()
	if !ok || ui.connected.Load() {
		return
	}
	if !contains(ui.portSelect.Options, name) {
		ui.portSelect.Options = append(ui.portSelect.Options, name)
	}
	ui.portSelect.SetSelected(name)
	if err := ui.connect(name); err != nil {
		ui.log.Error("port cannot be opened", zap.String("port", name), zap.Error(err))
		dialog.ShowError(fmt.Errorf("port %q cannot be opened: %w", name, err), ui.window)
	}
}

func (ui *AppUI) connect(portName string) error {
	if _, err := ui.mgr.Connect(portName); err != nil {
		return err
	}
	ui.setConnectedState(portName)

	if portName != ui.env.cfg.Port && portName != simulatedPort {
		ui.env.cfg.SetPort(portName)
		if err := ui.env.cfg.Save(); err != nil {
			ui.log.Warn("could not remember port", zap.Error(err))
		}
	}
	return nil
}

// attach runs on the connecting goroutine before the controller starts.
func (ui *AppUI) attach(ctl *device.Controller) {
	ctl.OnUpdate(func(code wspr.Code, st wspr.Status) {
		fyne.Do(func() {
			ui.applyStatus(ctl, code, st)
		})
	})
}

// applyStatus refreshes the widgets that show code.
func (ui *AppUI) applyStatus(ctl *device.Controller, code wspr.Code, st wspr.Status) {
	ui.updating = true
	defer func() { ui.updating = false }()

	if ui.connected.Load() && ctl.Responsive() {
		ui.portStatus.SetText(fmt.Sprintf("Connected to %s on %s", productLabel(st), ctl.Session().Name()))
	}

	switch code {
	case wspr.CodeMessage:
		ui.addMessage(st)
		if !ctl.SavePending() && ui.saveStatus.Text == "Saving..." {
			ui.saveStatus.SetText("Saved")
		}
	case wspr.CodeCurrentMode:
		ui.wspr.showMode(st)
		ui.gen.showMode(st)
	case wspr.CodeGeneratorFrequency:
		ui.gen.showFrequency(st.GeneratorFrequency)
	}
	ui.wspr.apply(ui, code, st)
	ui.status.apply(code, st)
}

func productLabel(st wspr.Status) string {
	if st.Product == "" {
		return "device"
	}
	return wspr.ProductName(st.Product)
}

// withController runs fn on the open device and reports errors.
func (ui *AppUI) withController(fn func(*device.Controller) error) {
	ctl, err := ui.mgr.Controller()
	if err == nil {
		err = fn(ctl)
	}
	if err != nil {
		dialog.ShowError(err, ui.window)
	}
}

func (ui *AppUI) save() {
	ui.withController(func(ctl *device.Controller) error {
		if err := ctl.Save(); err != nil {
			return err
		}
		ui.saveStatus.SetText("Saving...")
		return nil
	})
}

func (ui *AppUI) applyProfile() {
	name := ui.profileSelect.Selected
	if name == "" {
		return
	}
	p, err := ui.env.cfg.Profile(name)
	if err != nil {
		dialog.ShowError(err, ui.window)
		return
	}
	ui.withController(func(ctl *device.Controller) error {
		return ctl.ApplySettings(p, false)
	})
}

func (ui *AppUI) storeProfile() {
	ctl, err := ui.mgr.Controller()
	if err != nil {
		dialog.ShowError(err, ui.window)
		return
	}
	name := widget.NewEntry()
	name.SetText(ctl.Snapshot().Callsign)
	dialog.ShowForm("Store profile", "Store", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Name", name)},
		func(ok bool) {
			if !ok {
				return
			}
			if err := ui.env.cfg.SetProfile(name.Text, ctl.Settings()); err != nil {
				dialog.ShowError(err, ui.window)
				return
			}
			if err := ui.env.cfg.Save(); err != nil {
				dialog.ShowError(err, ui.window)
				return
			}
			ui.profileSelect.Options = ui.env.cfg.ProfileNames()
			ui.profileSelect.SetSelected(name.Text)
		}, ui.window)
}

func (ui *AppUI) deleteProfile() {
	name := ui.profileSelect.Selected
	if name == "" {
		return
	}
	dialog.ShowConfirm("Delete profile", fmt.Sprintf("Delete profile %q?", name), func(ok bool) {
		if !ok {
			return
		}
		if err := ui.env.cfg.DeleteProfile(name); err != nil {
			dialog.ShowError(err, ui.window)
			return
		}
		if err := ui.env.cfg.Save(); err != nil {
			dialog.ShowError(err, ui.window)
		}
		ui.profileSelect.Options = ui.env.cfg.ProfileNames()
		ui.profileSelect.ClearSelected()
		ui.profileSelect.Refresh()
	}, ui.window)
}

// tick drives the mirror clock, the progress bars between reports and
// the RX counter.
func (ui *AppUI) tick() {
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ui.stopTicker:
			return
		case <-t.C:
		}
		ctl, err := ui.mgr.Controller()
		if err != nil {
			continue
		}
		hms, stale := ctl.Clock().Time()
		rx := ctl.Session().RxChars()
		fyne.Do(func() {
			ui.status.showClock(hms, stale)
			ui.rxLabel.SetText(fmt.Sprintf("RX %d chars", rx))
		})
	}
}

func (ui *AppUI) shutdown() {
	ui.stopOnce.Do(func() {
		close(ui.stopTicker)
		ui.mgr.Disconnect()
	})
}
