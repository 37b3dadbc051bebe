package market

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const sampleDump = `[
	{"segment":"NSE_EQ","instrument_type":"EQ","trading_symbol":"NTPC","instrument_key":"NSE_EQ|INE733E01010"},
	{"segment":"NSE_EQ","instrument_type":"EQ","trading_symbol":"TCS","instrument_key":"NSE_EQ|INE467B01029"},
	{"segment":"NSE_FO","instrument_type":"FUT","trading_symbol":"NTPC24JUNFUT","instrument_key":"NSE_FO|53001"},
	{"segment":"NSE_EQ","instrument_type":"SG","trading_symbol":"SGBAUG24","instrument_key":"NSE_EQ|IN0020230101"}
]`

func TestLoadInstrumentMapPlain(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "NSE.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDump), 0644))

	keys, err := LoadInstrumentMap(path)
	require.NoError(t, err)

	// Only NSE_EQ equities survive the filter.
	assert.Equal(t, map[string]string{
		"NTPC": "NSE_EQ|INE733E01010",
		"TCS":  "NSE_EQ|INE467B01029",
	}, keys)
}

func TestLoadInstrumentMapGzip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "NSE.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleDump))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	keys, err := LoadInstrumentMap(path)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestLoadInstrumentMapXZ(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "NSE.json.xz")
	f, err := os.Create(path)
	require.NoError(t, err)
	xw, err := xz.NewWriter(f)
	require.NoError(t, err)
	_, err = xw.Write([]byte(sampleDump))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	require.NoError(t, f.Close())

	keys, err := LoadInstrumentMap(path)
	require.NoError(t, err)
	assert.Equal(t, "NSE_EQ|INE467B01029", keys["TCS"])
}

func TestLoadInstrumentMapEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "NSE.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	_, err := LoadInstrumentMap(path)
	assert.Error(t, err)
}

func TestNifty50Universe(t *testing.T) {
	t.Parallel()

	assert.Len(t, Nifty50, 50)

	seen := map[string]bool{}
	for _, sym := range Nifty50 {
		assert.False(t, seen[sym], "duplicate %s", sym)
		seen[sym] = true
	}
}
