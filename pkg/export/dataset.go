package export

import "errors"

// ErrNoHeaders is returned when a dataset has no columns.
var ErrNoHeaders = errors.New("dataset has no headers")

// Dataset is a table whose rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Record returns row values in header order. Missing cells are empty.
func (d Dataset) Record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return ErrNoHeaders
	}
	return nil
}
