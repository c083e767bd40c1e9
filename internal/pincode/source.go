// Package pincode reads candidate pincodes from CSV input and partitions them into
// valid records and invalid entries.
package pincode

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/UnknownOlympus/pincheck/internal/models"
)

// pincodeLength is the number of digits in an Indian postal code.
const pincodeLength = 6

// DefaultColumn is the header name looked up when the input file has a header row.
const DefaultColumn = "pincode"

var (
	// ErrRead is returned when the input file cannot be opened or parsed.
	ErrRead = errors.New("failed to read pincode input")
	// ErrMissingColumn is returned when a headered file lacks the configured column.
	ErrMissingColumn = errors.New("pincode column not found in header")
	// ErrInvalidPincode is returned by Validate for malformed candidates.
	ErrInvalidPincode = errors.New("pincode must be exactly 6 digits")
)

// Options controls how rows are interpreted.
type Options struct {
	Header bool   // Header reports whether the first row names the columns.
	Column string // Column is the header name holding the pincode (headered files only).
}

// Validate trims raw and returns it as a PincodeRecord when it is exactly six ASCII digits.
func Validate(raw string) (models.PincodeRecord, error) {
	value := strings.TrimSpace(raw)
	if len(value) != pincodeLength {
		return models.PincodeRecord{}, fmt.Errorf("%w: %q", ErrInvalidPincode, value)
	}
	for i := range len(value) {
		if value[i] < '0' || value[i] > '9' {
			return models.PincodeRecord{}, fmt.Errorf("%w: %q", ErrInvalidPincode, value)
		}
	}

	return models.PincodeRecord{Value: value}, nil
}

// Read loads the file at path and splits its candidates into valid and invalid
// sequences, both in input order.
func Read(path string, opts Options) ([]models.PincodeRecord, []models.InvalidRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer file.Close()

	return Parse(file, opts)
}

// Parse does the work of Read on an arbitrary reader. Every physical line after the header
// is one candidate; a blank line is an empty, invalid candidate.
func Parse(r io.Reader, opts Options) ([]models.PincodeRecord, []models.InvalidRecord, error) {
	scanner := bufio.NewScanner(r)

	column := 0
	if opts.Header {
		header, ok, err := nextHeader(scanner)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: header: %w", ErrRead, err)
		}
		if !ok {
			return nil, nil, nil
		}
		column, err = columnIndex(header, opts.Column)
		if err != nil {
			return nil, nil, err
		}
	}

	var (
		valid   []models.PincodeRecord
		invalid []models.InvalidRecord
	)
	for scanner.Scan() {
		row, err := splitRow(scanner.Text())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrRead, err)
		}

		raw := ""
		if column < len(row) {
			raw = strings.TrimSpace(row[column])
		}

		record, verr := Validate(raw)
		if verr != nil {
			invalid = append(invalid, models.InvalidRecord{Raw: raw})
			continue
		}
		valid = append(valid, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	return valid, invalid, nil
}

// nextHeader returns the first non-blank line split into columns.
func nextHeader(scanner *bufio.Scanner) ([]string, bool, error) {
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		header, err := splitRow(scanner.Text())
		return header, true, err
	}
	return nil, false, scanner.Err()
}

// splitRow parses one line as a CSV record. A blank line yields no fields.
func splitRow(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	row, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return row, err
}

func columnIndex(header []string, name string) (int, error) {
	if name == "" {
		name = DefaultColumn
	}
	for idx, col := range header {
		// Excel exports prepend a BOM to the first header cell.
		col = strings.TrimPrefix(col, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return idx, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
}
