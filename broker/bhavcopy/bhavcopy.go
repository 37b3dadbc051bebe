// Package bhavcopy reads closing prices from the exchange's end-of-day
// bhavcopy: a zipped CSV published after each session. It is the
// historical-close variant of the pricing capability, for marking the book
// after hours when a live quote is the wrong price.
package bhavcopy

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/xyproto/unzip"

	"moneytree/broker"
)

// Source reads one day's bhavcopy from a local .zip or .csv file and
// serves closes out of it. The file is parsed once, on first lookup.
type Source struct {
	Path string

	once   sync.Once
	closes map[string]decimal.Decimal
	err    error
}

func New(path string) *Source {
	return &Source{Path: path}
}

// ClosingPrice implements broker.PricingSource.
func (s *Source) ClosingPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.once.Do(s.load)
	if s.err != nil {
		return decimal.Zero, fmt.Errorf("%w: bhavcopy %s: %v", broker.ErrUpstream, s.Path, s.err)
	}

	closeV, ok := s.closes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: bhavcopy %s: no close for %s", broker.ErrUpstream, s.Path, symbol)
	}
	return closeV, nil
}

func (s *Source) load() {
	csvPath := s.Path

	if strings.EqualFold(filepath.Ext(s.Path), ".zip") {
		dir, err := os.MkdirTemp("", "bhavcopy")
		if err != nil {
			s.err = err
			return
		}
		defer os.RemoveAll(dir)

		if err := unzip.Extract(s.Path, dir); err != nil {
			s.err = fmt.Errorf("extract: %w", err)
			return
		}
		csvPath, err = findCSV(dir)
		if err != nil {
			s.err = err
			return
		}
	}

	f, err := os.Open(csvPath)
	if err != nil {
		s.err = err
		return
	}
	defer f.Close()

	s.closes, s.err = parse(f)
}

func findCSV(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no csv inside archive")
	}
	return found, nil
}

// parse reads the bhavcopy CSV: SYMBOL,SERIES,...,CLOSE,... Only the EQ
// series counts; everything else (BE, GS, warrants) is skipped.
func parse(r io.Reader) (map[string]decimal.Decimal, error) {
	rd := csv.NewReader(r)
	rd.TrimLeadingSpace = true

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	symCol, serCol, closeCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "SYMBOL":
			symCol = i
		case "SERIES":
			serCol = i
		case "CLOSE":
			closeCol = i
		}
	}
	if symCol < 0 || serCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("missing SYMBOL/SERIES/CLOSE columns in %v", header)
	}

	closes := map[string]decimal.Decimal{}
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if strings.TrimSpace(rec[serCol]) != "EQ" {
			continue
		}
		closeV, err := decimal.NewFromString(strings.TrimSpace(rec[closeCol]))
		if err != nil {
			return nil, fmt.Errorf("parse close for %s: %w", rec[symCol], err)
		}
		closes[strings.TrimSpace(rec[symCol])] = closeV
	}
	return closes, nil
}
