package simulator

import (
	"fmt"
	"net"
	"time"

	"wspr-tx-config/internal/wspr"
)

// dialFrequencies are the WSPR dial frequencies per band, in Hz. The
// transmitter adds the 1500 Hz audio offset.
var dialFrequencies = [wspr.NumBands]uint64{
	136000, 474200, 1836600, 3568600, 7038600, 10138700, 14095600, 18104600,
	21094600, 24924600, 28124600, 50293000, 70091000, 144489000, 432300000, 1296500000,
}

// TxFrequency is the carrier the emulator reports for a band.
func TxFrequency(band int) wspr.Frequency {
	return wspr.Frequency(dialFrequencies[band]+1500) * wspr.Hz
}

type satellite struct {
	id, az, el, snr int
}

var sky = []satellite{
	{3, 45, 62, 41}, {7, 130, 35, 33}, {12, 220, 18, 24}, {19, 300, 71, 45}, {25, 10, 8, 12},
}

func (d *Device) tick(conn net.Conn) {
	defer d.wg.Done()
	t := time.NewTicker(d.opts.Tick)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			for _, line := range d.Step() {
				if !d.send(conn, line) {
					return
				}
			}
		}
	}
}

// Step advances device time by one tick and returns the reports the device
// sends meanwhile. While transmitting the firmware is too busy for GPS
// reports.
func (d *Device) Step() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	step := d.opts.SecondsPerTick
	d.gpsSecs = (d.gpsSecs + step) % 86400

	if d.txBand < 0 {
		out = append(out, d.gpsReport()...)
	}
	if d.cur.mode != wspr.ModeBeacon {
		return out
	}

	switch {
	case d.txBand >= 0:
		d.txSeconds += step
		if d.txSeconds >= int(wspr.TxDuration/time.Second) {
			out = append(out,
				reply(wspr.CodeTxOn, "F"),
				reply(wspr.CodeCycleComplete, ""),
			)
			d.txBand, d.txSeconds = -1, 0
			d.pauseLeft = d.cur.pause
			if d.pauseLeft > 0 {
				out = append(out, reply(wspr.CodePauseProgress, fmt.Sprintf("%d", d.pauseLeft)))
			}
		} else {
			out = append(out, reply(wspr.CodeTxBand, fmt.Sprintf("%02d %03d", d.txBand, d.txSeconds)))
		}
	case d.pauseLeft > 0:
		d.pauseLeft = max(0, d.pauseLeft-step)
		out = append(out, reply(wspr.CodePauseProgress, fmt.Sprintf("%d", d.pauseLeft)))
	default:
		band := d.nextBand()
		if band < 0 {
			out = append(out, reply(wspr.CodeMessage, "No band enabled"))
			d.cur.mode = wspr.ModeIdle
			return append(out, reply(wspr.CodeCurrentMode, wspr.ModeIdle.Letter()))
		}
		d.txBand, d.txSeconds = band, 0
		out = append(out,
			reply(wspr.CodeNextBand, fmt.Sprintf("%02d", band)),
			reply(wspr.CodeTxFrequency, fmt.Sprintf("%d", uint64(TxFrequency(band)))),
			reply(wspr.CodeTxOn, "T"),
			reply(wspr.CodeTxBand, fmt.Sprintf("%02d %03d", band, 0)),
		)
	}
	return out
}

// nextBand rotates through the enabled bands.
func (d *Device) nextBand() int {
	for i := 0; i < wspr.NumBands; i++ {
		b := (d.nextIdx + i) % wspr.NumBands
		if d.cur.bands[b] {
			d.nextIdx = b + 1
			return b
		}
	}
	return -1
}

func (d *Device) gpsReport() []string {
	out := make([]string, 0, len(sky)+3)
	for _, s := range sky {
		out = append(out, reply(wspr.CodeGPSSatellite, fmt.Sprintf("%02d %03d %02d %02d", s.id, s.az, s.el, s.snr)))
	}
	h, m, s := d.gpsSecs/3600, d.gpsSecs/60%60, d.gpsSecs%60
	return append(out,
		reply(wspr.CodeGPSTime, fmt.Sprintf("%02d:%02d:%02d", h, m, s)),
		reply(wspr.CodeGPSLock, "T"),
		reply(wspr.CodeGPSLocator, d.cur.locator),
	)
}
