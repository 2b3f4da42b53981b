package compression

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() []byte {
	var b strings.Builder
	b.WriteString("onset,duration,subject,run,gain\n")
	for i := 0; i < 500; i++ {
		b.WriteString("0.0,3.0,01,1,12.5\n")
	}
	return []byte(b.String())
}

func TestRoundTrip(t *testing.T) {
	original := sampleTable()

	for _, alg := range Algorithms {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(fmt.Sprintf("%s/%d", alg, level), func(t *testing.T) {
				compressed, err := Compress(original, &Config{Algorithm: alg, Level: level})
				require.NoError(t, err)
				if alg != None {
					assert.Less(t, len(compressed), len(original), "repetitive input must shrink")
				}

				restored, err := Decompress(compressed, alg)
				require.NoError(t, err)
				assert.Equal(t, original, restored)
			})
		}
	}
}

func TestNewWriter_DoesNotCloseUnderlying(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, &Config{Algorithm: Zstd, Level: Default})
	require.NoError(t, err)
	_, err = w.Write([]byte("gain"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.NotZero(t, buf.Len())
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	assert.Equal(t, ".zst", a.Extension())

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)
	assert.Equal(t, "", a.Extension())

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)

	_, err = NewWriter(&bytes.Buffer{}, &Config{Algorithm: "brotli"})
	assert.Error(t, err)
}
