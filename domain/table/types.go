package table

import (
	"fmt"
	"time"

	"metriscope/domain/core"
)

// ColumnType is the inferred storage type of a column
type ColumnType string

const (
	TypeNumeric ColumnType = "numeric"
	TypeString  ColumnType = "string"
	TypeDate    ColumnType = "date"
	TypeBoolean ColumnType = "boolean"
	TypeUnknown ColumnType = "unknown"
)

// Value represents a typed cell with explicit missing-ness
type Value struct {
	Type       ColumnType `json:"type"`
	StringVal  *string    `json:"string_val,omitempty"`
	NumericVal *float64   `json:"numeric_val,omitempty"`
	BoolVal    *bool      `json:"bool_val,omitempty"`
	DateVal    *core.Day  `json:"date_val,omitempty"`
	IsMissing  bool       `json:"is_missing"`
}

// NewStringValue creates a string cell; empty input is stored as missing
func NewStringValue(s string) Value {
	if s == "" {
		return Missing()
	}
	return Value{Type: TypeString, StringVal: &s}
}

// NewNumericValue creates a numeric cell
func NewNumericValue(n float64) Value {
	return Value{Type: TypeNumeric, NumericVal: &n}
}

// NewBoolValue creates a boolean cell
func NewBoolValue(b bool) Value {
	return Value{Type: TypeBoolean, BoolVal: &b}
}

// NewDateValue creates a date cell truncated to the day
func NewDateValue(t time.Time) Value {
	d := core.NewDay(t)
	return Value{Type: TypeDate, DateVal: &d}
}

// Missing creates a missing cell
func Missing() Value {
	return Value{Type: TypeUnknown, IsMissing: true}
}

// IsNumeric reports whether the cell holds a valid number
func (v Value) IsNumeric() bool { return v.Type == TypeNumeric && v.NumericVal != nil }

// IsDate reports whether the cell holds a valid date
func (v Value) IsDate() bool { return v.Type == TypeDate && v.DateVal != nil }

// Float returns the numeric value, or 0 if not numeric
func (v Value) Float() float64 {
	if v.NumericVal != nil {
		return *v.NumericVal
	}
	return 0
}

// Text returns the string value, or empty if not a string
func (v Value) Text() string {
	if v.StringVal != nil {
		return *v.StringVal
	}
	return ""
}

// Day returns the date value, or the zero day if not a date
func (v Value) Day() core.Day {
	if v.DateVal != nil {
		return *v.DateVal
	}
	return core.Day{}
}

// String renders the cell for display and grouping keys
func (v Value) String() string {
	switch {
	case v.IsMissing:
		return "<missing>"
	case v.StringVal != nil:
		return *v.StringVal
	case v.NumericVal != nil:
		return fmt.Sprintf("%g", *v.NumericVal)
	case v.BoolVal != nil:
		return fmt.Sprintf("%t", *v.BoolVal)
	case v.DateVal != nil:
		return v.DateVal.String()
	}
	return "<invalid>"
}

// Column is an ordered sequence of cells under a normalized name
type Column struct {
	Name  string
	Type  ColumnType
	Cells []Value
}

// Table is an ordered sequence of equal-length columns. A Table is owned
// exclusively by one pipeline invocation and discarded with the request.
type Table struct {
	Columns []Column
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int { return len(t.Columns) }

// Column returns the column with the given normalized name
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the ordered column names
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// NumericColumn returns the non-missing float values of a numeric column
func (t *Table) NumericColumn(name string) []float64 {
	col, ok := t.Column(name)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(col.Cells))
	for _, cell := range col.Cells {
		if cell.IsNumeric() {
			out = append(out, cell.Float())
		}
	}
	return out
}

// AppendColumn adds a column, padding with missing cells if the table is
// longer than the supplied cells
func (t *Table) AppendColumn(name string, typ ColumnType, cells []Value) {
	for len(cells) < t.RowCount() {
		cells = append(cells, Missing())
	}
	t.Columns = append(t.Columns, Column{Name: name, Type: typ, Cells: cells})
}

// Validate checks the equal-length and unique-name invariants
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	n := t.RowCount()
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Cells) != n {
			return fmt.Errorf("column %q has %d cells, expected %d", c.Name, len(c.Cells), n)
		}
	}
	return nil
}
