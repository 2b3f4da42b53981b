package json

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRun struct {
	Subject  string    `json:"subject"`
	Run      int       `json:"run"`
	Onsets   []float64 `json:"onsets"`
	Duration float64   `json:"duration"`
}

func TestMarshalCompatibility(t *testing.T) {
	v := testRun{Subject: "01", Run: 2, Onsets: []float64{0, 4.5}, Duration: 480}

	ours, err := Marshal(v)
	require.NoError(t, err)
	std, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, string(std), string(ours))

	var back testRun
	require.NoError(t, Unmarshal(ours, &back))
	assert.Equal(t, v, back)

	indented, err := MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n  \"subject\"")
}

func TestDecodeStrict(t *testing.T) {
	var v testRun
	require.NoError(t, DecodeStrict(strings.NewReader(`{"subject":"01","run":1}`), &v))
	assert.Equal(t, "01", v.Subject)

	err := DecodeStrict(strings.NewReader(`{"subject":"01","sub":"x"}`), &v)
	assert.Error(t, err)
}

func TestNewEncoder_NoHTMLEscape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, map[string]string{"condition": "gain<loss"}))
	assert.Equal(t, "{\"condition\":\"gain<loss\"}\n", buf.String())
}

func TestStreamingEncoder(t *testing.T) {
	var lines bytes.Buffer
	enc, err := NewStreamingEncoder(&lines, false)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(map[string]int{"run": 1}))
	require.NoError(t, enc.Encode(map[string]int{"run": 2}))
	require.NoError(t, enc.Close())
	assert.Equal(t, "{\"run\":1}\n{\"run\":2}\n", lines.String())

	var array bytes.Buffer
	enc, err = NewStreamingEncoder(&array, true)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(1))
	require.NoError(t, enc.Encode(2))
	require.NoError(t, enc.Close())

	var got []int
	require.NoError(t, Unmarshal(array.Bytes(), &got))
	assert.Equal(t, []int{1, 2}, got)
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("stale")
	PutBuffer(buf)

	assert.Zero(t, GetBuffer().Len())
}
