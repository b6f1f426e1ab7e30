package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"WyckoffBacktester/internal/model"
)

// CSVFetcher reads <Dir>/<SYMBOL>.csv files with a date,open,high,low,close,volume header.
// Column order is free and extra columns are ignored.
type CSVFetcher struct {
	Dir string
}

func NewCSVFetcher(dir string) *CSVFetcher { return &CSVFetcher{Dir: dir} }

func (f *CSVFetcher) Name() string { return "csv" }

var csvDateLayouts = []string{"2006-01-02", time.RFC3339, "2006/01/02", "01/02/2006"}

func (f *CSVFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(f.Dir, strings.ToUpper(symbol)+".csv"))
	if err != nil {
		return nil, fmt.Errorf("open csv for %s: %w", symbol, err)
	}
	defer file.Close()

	bars, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read csv for %s: %w", symbol, err)
	}
	return lastN(bars, days), nil
}

// ReadCSV parses a bar file. Rows with a missing close are skipped.
func ReadCSV(r io.Reader) ([]model.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, model.ErrEmptySeries
		}
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	var bars []model.OHLCV
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(name string) string {
			if i := cols[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		if field("close") == "" || strings.EqualFold(field("close"), "null") {
			continue
		}

		date, err := parseDate(field("date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := model.OHLCV{Time: date}
		for _, p := range []struct {
			name string
			dst  *float64
		}{{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close}, {"volume", &bar.Volume}} {
			v, err := strconv.ParseFloat(field(p.name), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, p.name, err)
			}
			*p.dst = v
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, model.ErrEmptySeries
	}
	return normalize(bars), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
