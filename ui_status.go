package main

import (
	"fmt"
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"wspr-tx-config/internal/wspr"
)

const skyRadius = 110

var snrColors = map[wspr.SNRClass]color.Color{
	wspr.SNRWeak:   color.NRGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff},
	wspr.SNRFair:   color.NRGBA{R: 0xe0, G: 0xa0, B: 0x20, A: 0xff},
	wspr.SNRGood:   color.NRGBA{R: 0x90, G: 0xc0, B: 0x30, A: 0xff},
	wspr.SNRStrong: color.NRGBA{R: 0x20, G: 0xa0, B: 0x40, A: 0xff},
}

type statusTab struct {
	product  *widget.Label
	hardware *widget.Label
	firmware *widget.Label
	refFreq  *widget.Label
	txFreq   *widget.Label
	txOn     *widget.Label
	gpsTime  *widget.Label
	gpsLoc   *widget.Label
	gpsLock  *widget.Label
	quality  *widget.ProgressBar
	sky      *fyne.Container
	satList  *widget.List
	sats     []wspr.Satellite
}

func (ui *AppUI) buildStatusTab() fyne.CanvasObject {
	t := &ui.status
	label := func() *widget.Label { return widget.NewLabel("-") }
	t.product, t.hardware, t.firmware, t.refFreq = label(), label(), label(), label()
	t.txFreq, t.txOn = label(), label()
	t.gpsLoc, t.gpsLock = label(), label()
	t.gpsTime = widget.NewLabelWithStyle("--:--:--", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})

	t.quality = widget.NewProgressBar()
	t.quality.Max = 100

	t.sky = container.NewWithoutLayout()
	t.drawSky()

	t.satList = widget.NewList(
		func() int { return len(t.sats) },
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.TextStyle = fyne.TextStyle{Monospace: true}
			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			var text string
			if id < len(t.sats) {
				s := t.sats[id]
				text = fmt.Sprintf("%3d  az %3d  el %2d  snr %2d", s.ID, s.Azimuth, s.Elevation, s.SNR)
			}
			obj.(*widget.Label).SetText(text)
		},
	)

	info := widget.NewForm(
		widget.NewFormItem("Product", t.product),
		widget.NewFormItem("Hardware", t.hardware),
		widget.NewFormItem("Firmware", t.firmware),
		widget.NewFormItem("Reference", t.refFreq),
		widget.NewFormItem("TX frequency", t.txFreq),
		widget.NewFormItem("Transmitting", t.txOn),
		widget.NewFormItem("GPS time", t.gpsTime),
		widget.NewFormItem("GPS locator", t.gpsLoc),
		widget.NewFormItem("GPS lock", t.gpsLock),
		widget.NewFormItem("Signal", t.quality),
	)

	plot := container.NewGridWrap(fyne.NewSize(2*skyRadius+20, 2*skyRadius+20), t.sky)
	return container.NewHSplit(
		container.NewVBox(info, plot),
		container.NewBorder(widget.NewLabel("Satellites"), nil, nil, nil, t.satList),
	)
}

func (t *statusTab) apply(code wspr.Code, st wspr.Status) {
	switch code {
	case wspr.CodeProduct:
		t.product.SetText(fmt.Sprintf("%s (%s)", wspr.ProductName(st.Product), st.Product))
	case wspr.CodeHardwareVersion, wspr.CodeHardwareRevision:
		t.hardware.SetText(fmt.Sprintf("%s rev %s", st.HardwareVersion, st.HardwareRevision))
	case wspr.CodeFirmwareVersion, wspr.CodeFirmwareRevision:
		t.firmware.SetText(fmt.Sprintf("%s rev %s", st.FirmwareVersion, st.FirmwareRevision))
	case wspr.CodeReferenceFreq:
		t.refFreq.SetText(st.ReferenceFreq)
	case wspr.CodeTxFrequency:
		t.txFreq.SetText(st.TxFrequency.String() + " Hz")
	case wspr.CodeTxOn:
		t.txOn.SetText(yesNo(st.TxOn))
	case wspr.CodeGPSLocator:
		t.gpsLoc.SetText(st.GPSLocator)
	case wspr.CodeGPSLock:
		t.gpsLock.SetText(yesNo(st.GPSLocked))
	case wspr.CodeGPSTime:
		t.sats = st.Satellites
		t.quality.SetValue(float64(wspr.SignalQuality(st.Satellites)))
		t.satList.Refresh()
		t.drawSky()
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// showClock greys out the time once GPS updates stop arriving.
func (t *statusTab) showClock(hms string, stale bool) {
	imp := widget.MediumImportance
	if stale {
		imp = widget.LowImportance
	}
	if t.gpsTime.Text == hms && t.gpsTime.Importance == imp {
		return
	}
	t.gpsTime.Importance = imp
	t.gpsTime.SetText(hms)
}

func (t *statusTab) drawSky() {
	grid := color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	var objs []fyne.CanvasObject
	for _, el := range []int{0, 30, 60} {
		r := float32(skyRadius) * float32(90-el) / 90
		c := canvas.NewCircle(color.Transparent)
		c.StrokeColor = grid
		c.StrokeWidth = 1
		c.Move(fyne.NewPos(skyRadius-r+10, skyRadius-r+10))
		c.Resize(fyne.NewSize(2*r, 2*r))
		objs = append(objs, c)
	}
	for _, s := range t.sats {
		class := wspr.ClassifySNR(s.SNR)
		if class == wspr.SNRHidden {
			continue
		}
		x, y := wspr.SkyPoint(s, skyRadius)
		dot := canvas.NewCircle(snrColors[class])
		dot.Move(fyne.NewPos(float32(x)+10-5, float32(y)+10-5))
		dot.Resize(fyne.NewSize(10, 10))
		id := canvas.NewText(strconv.Itoa(s.ID), grid)
		id.TextSize = 9
		id.Move(fyne.NewPos(float32(x)+10+6, float32(y)+10-6))
		objs = append(objs, dot, id)
	}
	t.sky.Objects = objs
	t.sky.Refresh()
}
