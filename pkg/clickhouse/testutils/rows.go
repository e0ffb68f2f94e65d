package testutils

import (
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// scanInto assigns values to the pointers in dest, in order.
func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: got %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		sv := reflect.ValueOf(v)
		if !sv.IsValid() {
			dv.Elem().SetZero()
			continue
		}
		if !sv.Type().AssignableTo(dv.Elem().Type()) {
			return fmt.Errorf("scan: cannot assign %T to %s", v, dv.Elem().Type())
		}
		dv.Elem().Set(sv)
	}
	return nil
}

// Row is a driver.Row returning fixed values, or ScanErr.
type Row struct {
	Values  []any
	ScanErr error
}

var _ driver.Row = Row{}

func (r Row) Err() error { return r.ScanErr }

func (r Row) Scan(dest ...any) error {
	if r.ScanErr != nil {
		return r.ScanErr
	}
	return scanInto(r.Values, dest)
}

func (r Row) ScanStruct(dest any) error {
	return fmt.Errorf("ScanStruct not supported")
}

// Rows is a driver.Rows iterating over fixed values.
type Rows struct {
	Data    [][]any
	IterErr error

	pos    int
	Closed bool
}

var _ driver.Rows = (*Rows)(nil)

// NewRows returns Rows over data.
func NewRows(data ...[]any) *Rows {
	return &Rows{Data: data}
}

func (r *Rows) Next() bool {
	if r.pos >= len(r.Data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos == 0 {
		return fmt.Errorf("scan called before Next")
	}
	return scanInto(r.Data[r.pos-1], dest)
}

func (r *Rows) ScanStruct(dest any) error {
	return fmt.Errorf("ScanStruct not supported")
}

func (r *Rows) ColumnTypes() []driver.ColumnType { return nil }

func (r *Rows) Totals(dest ...any) error { return nil }

func (r *Rows) Columns() []string { return nil }

func (r *Rows) Close() error {
	r.Closed = true
	return nil
}

func (r *Rows) Err() error { return r.IterErr }
