// Package report writes the results and invalid-pincode CSV files and renders the
// end-of-run summary.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/UnknownOlympus/pincheck/internal/models"
)

// NotAvailable stands in for an empty address in the results file.
const NotAvailable = "N/A"

var (
	// ErrWrite wraps every failure to create or write an output file.
	ErrWrite = errors.New("failed to write report")
	// ErrMalformed is returned by ReadResults for files it did not write.
	ErrMalformed = errors.New("malformed results file")
)

var (
	resultsPrefix = []string{"Pincode", "Address"}
	invalidHeader = []string{"Invalid Pincode"}
)

// WriteResults writes one row per result, in order, under the header
// "Pincode, Address, <provider...>". The file is truncated first and flushed after every row.
func WriteResults(path string, providers []string, results []models.ServiceabilityResult) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeResults(w, providers, results)
	})
}

// EncodeResults writes the results CSV to w.
func EncodeResults(w io.Writer, providers []string, results []models.ServiceabilityResult) error {
	cw := csv.NewWriter(w)

	header := append(append([]string{}, resultsPrefix...), providers...)
	if err := writeRow(cw, header); err != nil {
		return err
	}

	for _, res := range results {
		address := res.Address
		if address == "" {
			address = NotAvailable
		}

		row := make([]string, 0, len(header))
		row = append(row, res.Pincode.Value, address)
		for _, name := range providers {
			row = append(row, string(res.Status(name)))
		}
		if err := writeRow(cw, row); err != nil {
			return err
		}
	}

	return nil
}

// WriteInvalid writes the rejected candidates under the header "Invalid Pincode".
func WriteInvalid(path string, invalid []models.InvalidRecord) error {
	return writeFile(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := writeRow(cw, invalidHeader); err != nil {
			return err
		}
		for _, rec := range invalid {
			if err := writeRow(cw, []string{rec.Raw}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadResults parses a file written by WriteResults. "N/A" reads back as an empty address.
func ReadResults(path string) ([]string, []models.ServiceabilityResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer file.Close()

	return DecodeResults(file)
}

// DecodeResults parses the results CSV from r and returns the provider columns and rows.
func DecodeResults(r io.Reader) ([]string, []models.ServiceabilityResult, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: missing header: %w", ErrMalformed, err)
	}
	if len(header) < len(resultsPrefix) ||
		!strings.EqualFold(header[0], resultsPrefix[0]) ||
		!strings.EqualFold(header[1], resultsPrefix[1]) {
		return nil, nil, fmt.Errorf("%w: unexpected header %q", ErrMalformed, header)
	}
	providers := header[len(resultsPrefix):]

	var results []models.ServiceabilityResult
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
		}

		res := models.NewServiceabilityResult(models.PincodeRecord{Value: row[0]}, providers)
		if row[1] != NotAvailable {
			res.Address = row[1]
		}
		for i, name := range providers {
			status := models.Status(row[len(resultsPrefix)+i])
			if !status.Valid() {
				return nil, nil, fmt.Errorf("%w: line %d: unknown status %q", ErrMalformed, line, status)
			}
			res.Statuses[name] = status
		}
		results = append(results, res)
	}

	return providers, results, nil
}

func writeFile(path string, encode func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if err = encode(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}

func writeRow(cw *csv.Writer, row []string) error {
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
