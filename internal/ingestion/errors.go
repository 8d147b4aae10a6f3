package ingestion

import (
	"errors"
	"fmt"
)

// Sentinel errors for dataset validation.
var (
	// ErrMissingColumns is returned when the header lacks a required column.
	ErrMissingColumns = errors.New("dataset must contain columns: date,ticker,close,volume")

	// ErrInvalidRow is returned when a cell cannot be parsed.
	ErrInvalidRow = errors.New("invalid row")

	// ErrDuplicateKey is returned when (date, ticker) appears twice.
	ErrDuplicateKey = errors.New("duplicate (date, ticker)")

	// ErrEmptyDataset is returned when a file has a header but no rows.
	ErrEmptyDataset = errors.New("dataset has no rows")

	// ErrUnsupportedFormat is returned for file extensions other than .csv/.xlsx.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// RowError locates a rejected row. Line is 1-based and counts the header.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
