// Package market carries the static market data the scanner needs: the
// index universe and the exchange's instrument master.
package market

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Instrument is one entry of the exchange's instrument dump.
type Instrument struct {
	Segment        string `json:"segment"`
	InstrumentType string `json:"instrument_type"`
	TradingSymbol  string `json:"trading_symbol"`
	InstrumentKey  string `json:"instrument_key"`
}

// LoadInstrumentMap reads an instrument dump (NSE.json and friends) and
// returns trading symbol -> instrument key for NSE cash equities. The dump
// is large and usually distributed compressed; .gz and .xz are read in
// place.
func LoadInstrumentMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instrument dump: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip instrument dump: %w", err)
		}
		defer gz.Close()
		r = gz
	case ".xz":
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz instrument dump: %w", err)
		}
		r = xr
	}

	var instruments []Instrument
	if err := json.NewDecoder(r).Decode(&instruments); err != nil {
		return nil, fmt.Errorf("decode instrument dump: %w", err)
	}

	keys := make(map[string]string)
	for _, inst := range instruments {
		if inst.Segment != "NSE_EQ" || inst.InstrumentType != "EQ" {
			continue
		}
		if inst.TradingSymbol == "" || inst.InstrumentKey == "" {
			continue
		}
		keys[inst.TradingSymbol] = inst.InstrumentKey
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("instrument dump %s: no NSE_EQ equities found", path)
	}
	return keys, nil
}
