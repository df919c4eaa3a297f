package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":      7 * Day,
		"2w":      2 * Week,
		"1w2d":    Week + 2*Day,
		"1d12h":   Day + 12*time.Hour,
		"90m":     90 * time.Minute,
		"3600":    time.Hour,
		" 30d ":   30 * Day,
		"1h30m0s": 90 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Std(), in)
	}

	for _, bad := range []string{"", "xd", "7x", "d"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDurationRejectsMixedSignAndOverflow(t *testing.T) {
	for _, bad := range []string{
		"1d-5h",
		"1w-8d",
		"2000000w",
		"9223372037",
		"-9223372037",
	} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestDurationString(t *testing.T) {
	assert.Equal(t, "1w", Duration(Week).String())
	assert.Equal(t, "30d", Duration(30*Day).String())
	assert.Equal(t, "12h", Duration(12*time.Hour).String())
	assert.Equal(t, "1h30m", Duration(90*time.Minute).String())
	assert.Equal(t, "0s", Duration(0).String())
}

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1d","b":60}`), &v))
	assert.Equal(t, Day, v.A.Std())
	assert.Equal(t, time.Minute, v.B.Std())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1d","b":"1m"}`, string(out))
}
