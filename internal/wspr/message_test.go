package wspr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestEncode(t *testing.T) {
	assert.Equal(t, "[CCM] G\r\n", string(Get(CodeCurrentMode).Encode()))
	assert.Equal(t, "[DCS] S AB1CD\r\n", string(Set(CodeCallsign, "AB1CD").Encode()))
	assert.Equal(t, "[CSE] S", Set(CodeSaveSettings, "").String())
	assert.Equal(t, "[OBD] S 06 E", BandRequest(6, true).String())
	assert.Equal(t, "[OBD] S 15 D", BandRequest(15, false).String())
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Reply
		err  error
	}{
		{"with space", "{CCM} W", Reply{Code: CodeCurrentMode, Data: "W"}, nil},
		{"missing space", "{MIN}Ready", Reply{Code: CodeMessage, Data: "Ready"}, nil},
		{"trailing cr", "{DCS} SM0ABC\r", Reply{Code: CodeCallsign, Data: "SM0ABC"}, nil},
		{"empty data", "{TCC}", Reply{Code: CodeCycleComplete}, nil},
		{"data with spaces", "{GSI} 12 180 45 30", Reply{Code: CodeGPSSatellite, Data: "12 180 45 30"}, nil},
		{"short", "{CC", Reply{}, ErrShortReply},
		{"no braces", "[CCM] W", Reply{}, ErrNotReply},
		{"unknown", "{XYZ} 1", Reply{Code: "XYZ", Data: "1"}, ErrUnknownCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.line)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsReplyLine(t *testing.T) {
	assert.True(t, IsReplyLine("{CCM} N"))
	assert.False(t, IsReplyLine("booting..."))
	assert.False(t, IsReplyLine(""))
}

func TestCodeTable(t *testing.T) {
	for _, c := range StatusQueries {
		assert.True(t, c.Known(), c)
	}
	assert.True(t, CodeCallsign.Settable())
	assert.False(t, CodeProduct.Settable())
	assert.True(t, CodeCallsign.Requery())
	assert.True(t, CodeTxOn.Requery())
	assert.False(t, CodeTxOn.Settable())
	assert.False(t, CodeTxFrequency.Requery())
	assert.Equal(t, "unknown", Code("ZZZ").Description())
}
