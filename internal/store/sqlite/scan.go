package sqlite

import (
	"fmt"
	"strconv"
	"time"
)

// rawRow holds one row as driver values. Scanning into *any never fails on
// conversion, so an error from Scan is always a query or driver failure.
type rawRow []any

func scanRaw(row rowScanner, columns int) (rawRow, error) {
	raw := make(rawRow, columns)
	dest := make([]any, columns)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return raw, nil
}

// columnDecoder converts driver values into model fields and keeps the first
// mismatch. Callers report that mismatch as a corrupt record.
type columnDecoder struct {
	row rawRow
	err error
}

func (d *columnDecoder) fail(i int, v any, want string) {
	if d.err == nil {
		d.err = fmt.Errorf("column %d: cannot read %T (%v) as %s", i, v, v, want)
	}
}

func (d *columnDecoder) text(i int) string {
	switch v := d.row[i].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		d.fail(i, v, "text")
		return ""
	}
}

func (d *columnDecoder) integer(i int) int {
	switch v := d.row[i].(type) {
	case int64:
		return int(v)
	case float64:
		if v == float64(int64(v)) {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	case []byte:
		if n, err := strconv.Atoi(string(v)); err == nil {
			return n
		}
	}
	d.fail(i, d.row[i], "integer")
	return 0
}

func (d *columnDecoder) real(i int) float64 {
	switch v := d.row[i].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case []byte:
		if f, err := strconv.ParseFloat(string(v), 64); err == nil {
			return f
		}
	}
	d.fail(i, d.row[i], "real")
	return 0
}

func (d *columnDecoder) timestamp(i int) time.Time {
	s := d.text(i)
	if d.err != nil {
		return time.Time{}
	}
	t, err := parseTime(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("column %d: %w", i, err)
	}
	return t
}
