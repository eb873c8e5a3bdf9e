// Package wspr implements the line protocol spoken by ZachTek WSPR
// transmitters and the device state it carries.
package wspr

// Code is the three letter identifier of a request or reply.
type Code string

// Commands.
const (
	CodeCurrentMode  Code = "CCM"
	CodeSaveSettings Code = "CSE"
)

// Options.
const (
	CodeTxPause        Code = "OTP"
	CodeStartMode      Code = "OSM"
	CodeBand           Code = "OBD"
	CodeLocationSource Code = "OLC"
	CodePowerMode      Code = "OPW"
)

// User data.
const (
	CodeCallsign           Code = "DCS"
	CodeLocator            Code = "DL4"
	CodeReportedPower      Code = "DPD"
	CodeName               Code = "DNM"
	CodeGeneratorFrequency Code = "DGF"
)

// Factory data, read only.
const (
	CodeProduct          Code = "FPN"
	CodeHardwareVersion  Code = "FHV"
	CodeHardwareRevision Code = "FHR"
	CodeFirmwareVersion  Code = "FSV"
	CodeFirmwareRevision Code = "FSR"
	CodeReferenceFreq    Code = "FRF"
	CodeLowPassFilter    Code = "FLP"
)

// GPS reports.
const (
	CodeGPSLocator   Code = "GL4"
	CodeGPSTime      Code = "GTM"
	CodeGPSLock      Code = "GLC"
	CodeGPSSatellite Code = "GSI"
)

// Transmitter and status reports.
const (
	CodeTxFrequency   Code = "TFQ"
	CodeTxOn          Code = "TON"
	CodePauseProgress Code = "MPS"
	CodeMessage       Code = "MIN"
	CodeLowPassInfo   Code = "LPI"
	CodeSupplyVoltage Code = "MVC"
	CodeNextBand      Code = "TBN"
	CodeTxBand        Code = "TWS"
	CodeCycleComplete Code = "TCC"
)

type codeInfo struct {
	desc     string
	settable bool
	// requery asks the device again when a reply does not parse.
	requery bool
}

var codes = map[Code]codeInfo{
	CodeCurrentMode:        {"current mode", true, true},
	CodeSaveSettings:       {"save settings", true, true},
	CodeTxPause:            {"TX pause", true, true},
	CodeStartMode:          {"start mode", true, true},
	CodeBand:               {"band enable", true, true},
	CodeLocationSource:     {"location source", true, true},
	CodePowerMode:          {"power field mode", true, true},
	CodeCallsign:           {"callsign", true, true},
	CodeLocator:            {"locator", true, true},
	CodeReportedPower:      {"reported power", true, true},
	CodeName:               {"name", true, true},
	CodeGeneratorFrequency: {"generator frequency", true, true},
	CodeProduct:            {"product number", false, false},
	CodeHardwareVersion:    {"hardware version", false, false},
	CodeHardwareRevision:   {"hardware revision", false, false},
	CodeFirmwareVersion:    {"firmware version", false, false},
	CodeFirmwareRevision:   {"firmware revision", false, false},
	CodeReferenceFreq:      {"reference oscillator", false, false},
	CodeLowPassFilter:      {"low pass filter", false, false},
	CodeGPSLocator:         {"GPS locator", false, false},
	CodeGPSTime:            {"GPS time", false, false},
	CodeGPSLock:            {"GPS lock", false, false},
	CodeGPSSatellite:       {"GPS satellite", false, false},
	CodeTxFrequency:        {"TX frequency", false, false},
	CodeTxOn:               {"TX on", false, true},
	CodePauseProgress:      {"pause progress", false, false},
	CodeMessage:            {"message", false, false},
	CodeLowPassInfo:        {"low pass info", false, false},
	CodeSupplyVoltage:      {"supply voltage", false, false},
	CodeNextBand:           {"next band", false, false},
	CodeTxBand:             {"transmitting band", false, false},
	CodeCycleComplete:      {"cycle complete", false, false},
}

// Known reports whether c is part of the device vocabulary.
func (c Code) Known() bool {
	_, ok := codes[c]
	return ok
}

// Settable reports whether the device accepts S requests for c.
func (c Code) Settable() bool {
	return codes[c].settable
}

// Requery reports whether an unreadable reply for c is asked for again.
// That covers every settable value and the TX on report.
func (c Code) Requery() bool {
	return codes[c].requery
}

// Description returns a short human readable name.
func (c Code) Description() string {
	if info, ok := codes[c]; ok {
		return info.desc
	}
	return "unknown"
}

// StatusQueries lists the codes read from the device after it announces
// itself, in query order.
var StatusQueries = []Code{
	CodeCurrentMode, CodeTxPause, CodeStartMode, CodeBand, CodeLocationSource,
	CodePowerMode, CodeCallsign, CodeLocator, CodeReportedPower, CodeName,
	CodeGeneratorFrequency, CodeProduct, CodeHardwareVersion,
	CodeHardwareRevision, CodeFirmwareVersion, CodeFirmwareRevision,
	CodeReferenceFreq, CodeLowPassFilter,
}
