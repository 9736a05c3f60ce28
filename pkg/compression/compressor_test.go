package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

var algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2}

func sampleTable() []byte {
	var b strings.Builder
	b.WriteString("GEO;TIME;INDICATOR;OBS_VALUE;FREQ\n")
	for i := 0; i < 500; i++ {
		b.WriteString("ES51;2023-01;Poblacion;8472407;M\n")
	}
	return []byte(b.String())
}

func TestRoundTrip(t *testing.T) {
	data := sampleTable()

	for _, a := range algorithms {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			compressed, err := Compress(data, a, level)
			require.NoError(t, err, "%s/%d", a, level)

			if a != None {
				assert.Less(t, len(compressed), len(data), "%s/%d", a, level)
			}

			out, err := Decompress(compressed, a)
			require.NoError(t, err, "%s/%d", a, level)
			assert.Equal(t, data, out, "%s/%d", a, level)
		}
	}
}

type closeTracker struct {
	bytes.Buffer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestWriterDoesNotCloseDestination(t *testing.T) {
	for _, a := range algorithms {
		t.Run(string(a), func(t *testing.T) {
			dst := &closeTracker{}
			w, err := NewWriter(dst, a, Default)
			require.NoError(t, err)

			_, err = w.Write([]byte("ES51;2023-01"))
			require.NoError(t, err)
			require.NoError(t, w.Close())
			assert.False(t, dst.closed)

			r, err := NewReader(bytes.NewReader(dst.Bytes()), a)
			require.NoError(t, err)
			out, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, "ES51;2023-01", string(out))
		})
	}
}

func TestParse(t *testing.T) {
	a, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	a, err = Parse("zstd")
	require.NoError(t, err)
	assert.Equal(t, ".zst", a.Extension())
	assert.Equal(t, "", None.Extension())

	_, err = Parse("brotli")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewWriter(io.Discard, Algorithm("brotli"), Default)
	assert.Error(t, err)
}

func TestDecompressCorruptInput(t *testing.T) {
	for _, a := range []Algorithm{Gzip, Zstd, LZ4, S2} {
		_, err := Decompress([]byte("not compressed at all"), a)
		assert.Error(t, err, string(a))
	}
}
