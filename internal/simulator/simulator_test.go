package simulator

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"wspr-tx-config/internal/wspr"
)

func TestHandleGet(t *testing.T) {
	d := New(DefaultOptions(), nil)

	assert.Equal(t, []string{"{CCM} N"}, d.handle("[CCM] G"))
	assert.Equal(t, []string{"{DCS} N0CALL"}, d.handle("[DCS] G"))
	assert.Equal(t, []string{"{OTP} 00120"}, d.handle("[OTP] G"))
	assert.Equal(t, []string{"{FLP} LP04", "{FLP} LP06"}, d.handle("[FLP] G"))

	bands := d.handle("[OBD] G")
	require.Len(t, bands, wspr.NumBands)
	assert.Equal(t, "{OBD} 06 E", bands[6])
	assert.Equal(t, "{OBD} 00 D", bands[0])
}

func TestHandleSet(t *testing.T) {
	d := New(DefaultOptions(), nil)

	assert.Equal(t, []string{"{DCS} SM0ABC"}, d.handle("[DCS] S SM0ABC"))
	assert.Equal(t, []string{"{OBD} 04 E"}, d.handle("[OBD] S 04 E"))
	assert.Equal(t, []string{"{DGF} 001409710000"}, d.handle("[DGF] S 001409710000"))
	assert.Nil(t, d.handle("[DGF] S 12"), "bad values are ignored")
	assert.Nil(t, d.handle("[FPN] S 01011"), "factory data is read only")
	assert.Nil(t, d.handle("garbage"))

	cur := d.Current()
	assert.Equal(t, "SM0ABC", cur.Callsign)
	assert.Equal(t, []string{"40m", "20m"}, cur.Bands)
	assert.Equal(t, "N0CALL", d.Saved().Callsign, "not saved yet")

	assert.Equal(t, []string{"{MIN} Settings saved"}, d.handle("[CSE] S"))
	assert.Equal(t, "SM0ABC", d.Saved().Callsign)
}

func TestStepBeaconCycle(t *testing.T) {
	opts := DefaultOptions()
	opts.SecondsPerTick = 100
	d := New(opts, nil)
	d.handle("[OTP] S 00150")

	// Idle: GPS only.
	out := d.Step()
	assert.Contains(t, out, "{GLC} T")
	assert.NotContains(t, out, "{TON} T")

	d.handle("[CCM] S W")
	out = d.Step()
	assert.Contains(t, out, "{TBN} 06")
	assert.Contains(t, out, "{TON} T")
	assert.Contains(t, out, "{TFQ} 1409710000")

	out = d.Step()
	assert.Equal(t, []string{"{TWS} 06 100"}, out, "no GPS while transmitting")

	out = d.Step()
	assert.Contains(t, out, "{TCC} ")
	assert.Contains(t, out, "{MPS} 150")

	out = d.Step()
	assert.Contains(t, out, "{MPS} 50")
	out = d.Step()
	assert.Contains(t, out, "{MPS} 0")
	out = d.Step()
	assert.Contains(t, out, "{TBN} 06", "next cycle starts after the pause")
}

func TestStepNoBands(t *testing.T) {
	d := New(DefaultOptions(), nil)
	d.handle("[OBD] S 06 D")
	d.handle("[CCM] S W")
	out := d.Step()
	assert.Contains(t, out, "{CCM} N")
	assert.Equal(t, wspr.ModeIdle, d.Mode())
}

func TestConnectAnnouncesAndAnswers(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := New(DefaultOptions(), nil)
	conn := d.Connect()
	r := bufio.NewReader(conn)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "{MIN} ZachTek WSPR TX simulator ready\r\n", line)

	go io.WriteString(conn, "[FPN] G\r\n")
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "{FPN} 01012\r\n", line)

	conn.Close()
	d.Close()
	assert.Equal(t, []string{"[FPN] G"}, d.Received())
}

func TestReconnectResetsUnsaved(t *testing.T) {
	opts := DefaultOptions()
	opts.Announce = false
	d := New(opts, nil)
	defer d.Close()

	d.handle("[DCS] S SM0ABC")
	d.handle("[OSM] S W")
	d.handle("[CSE] S")
	d.handle("[DCS] S SM0XYZ")

	c := d.Connect()
	defer c.Close()
	assert.Equal(t, "SM0ABC", d.Current().Callsign)
	assert.Equal(t, wspr.ModeBeacon, d.Mode(), "start mode applies after reset")
}

func TestTickerDrivesReports(t *testing.T) {
	defer goleak.VerifyNone(t)

	opts := DefaultOptions()
	opts.Announce = false
	opts.Tick = 5 * time.Millisecond
	d := New(opts, nil)
	conn := d.Connect()
	r := bufio.NewReader(conn)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "{GSI}")

	conn.Close()
	d.Close()
}
