package model

import "errors"

var (
	// ErrEmptySeries is returned when zero bars are supplied.
	ErrEmptySeries = errors.New("empty series")
	// ErrInsufficientHistory is returned when a requested window exceeds the available bars.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidConfiguration is returned before any computation when options are out of range.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidSeries is returned when bars are not strictly ascending by date.
	ErrInvalidSeries = errors.New("invalid series")
)

// SymbolError attributes a failure to one symbol of a batch.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}
