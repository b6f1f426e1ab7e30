// Package report writes run reports as indented JSON files.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"WyckoffBacktester/internal/model"
)

// Writer places report files under Dir. File names carry the symbol, the report kind and
// the write time so successive runs never overwrite each other.
type Writer struct {
	Dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer { return &Writer{Dir: dir, now: time.Now} }

// Backtest writes one symbol report and returns the file path.
func (w *Writer) Backtest(rep *model.SymbolReport) (string, error) {
	return w.write(rep.Symbol+"_backtest", rep)
}

// Batch writes a multi-symbol report.
func (w *Writer) Batch(rep *model.BatchReport) (string, error) {
	return w.write("batch", rep)
}

// Optimization writes a stop-loss optimization report.
func (w *Writer) Optimization(rep *model.OptimizationReport) (string, error) {
	name := rep.Symbol + "_optimization"
	if rep.Partial {
		name += "_partial"
	}
	return w.write(name, rep)
}

// Load reads a report file written by Writer into v.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (w *Writer) write(name string, v any) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	file := fmt.Sprintf("%s_%s.json", sanitize(name), w.now().UTC().Format("20060102T150405.000"))
	path := filepath.Join(w.Dir, file)
	// write to a temp file first so readers never see a half-written report
	tmp, err := os.CreateTemp(w.Dir, ".report-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, name)
}
