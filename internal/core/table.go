package core

import (
	"maps"
	"slices"
	"strings"
)

// UnitCode is the 4-character serial number of one aircraft (MSN).
type UnitCode string

// Column identifies the single status column a unit contributes to a table.
// Label carries the source revision, e.g. "3708_MDL-00243-C".
type Column struct {
	Unit  UnitCode
	Label string
}

// Key is the ordered tuple of key-field values of a record. Field order
// follows the table kind's KeyFields.
type Key []string

func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

// Compare orders keys field by field.
func (k Key) Compare(o Key) int {
	return slices.Compare(k, o)
}

// Row is one normalized line read from a single unit's source.
type Row struct {
	Key    Key
	Attrs  map[string]string
	Status Status
}

// RecordSet holds the rows one unit contributes to one table kind.
type RecordSet struct {
	Kind   string
	Column Column
	Rows   []Row
}

// Record is one keyed line of a merged table.
type Record struct {
	Key    Key
	Attrs  map[string]string
	Status map[UnitCode]Status

	// Changed marks units whose reconciled status needed review.
	Changed map[UnitCode]bool
	// NeedsReview is the OR of Changed across all units.
	NeedsReview bool

	Effectivity string
	Task        Task
}

// StatusOf returns the unit's status, Absent when the unit has no entry.
func (r Record) StatusOf(u UnitCode) Status {
	return r.Status[u]
}

// Attr returns a descriptive attribute or "".
func (r Record) Attr(name string) string {
	return r.Attrs[name]
}

func (r Record) clone() Record {
	c := r
	c.Key = slices.Clone(r.Key)
	c.Attrs = maps.Clone(r.Attrs)
	c.Status = maps.Clone(r.Status)
	c.Changed = maps.Clone(r.Changed)
	return c
}

// Table is a merged table of one kind: unique keys, one status column per unit.
// Operations on tables return new tables and never mutate their inputs.
type Table struct {
	Kind      string
	KeyFields []string
	// AttrFields lists descriptive columns in output order.
	AttrFields []string
	Columns    []Column
	Records    []Record

	// Changes lists the units reconciled by an incremental update. Reports
	// emit a "{unit} Change" column for each and an "Effectivity Change" column.
	Changes []UnitCode
}

// Units returns the unit codes of the table's columns in column order.
func (t Table) Units() []UnitCode {
	units := make([]UnitCode, len(t.Columns))
	for i, c := range t.Columns {
		units[i] = c.Unit
	}
	return units
}

// Column returns the column contributed by unit u.
func (t Table) Column(u UnitCode) (Column, bool) {
	for _, c := range t.Columns {
		if c.Unit == u {
			return c, true
		}
	}
	return Column{}, false
}

// Len returns the number of records.
func (t Table) Len() int {
	return len(t.Records)
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	c := t
	c.KeyFields = slices.Clone(t.KeyFields)
	c.AttrFields = slices.Clone(t.AttrFields)
	c.Columns = slices.Clone(t.Columns)
	c.Changes = slices.Clone(t.Changes)
	c.Records = make([]Record, len(t.Records))
	for i, r := range t.Records {
		c.Records[i] = r.clone()
	}
	return c
}

// keyIndex returns the position of a key field, or -1.
func (t Table) keyIndex(field string) int {
	return slices.Index(t.KeyFields, field)
}

// Field returns the value of a key field or descriptive attribute.
func (t Table) Field(r Record, field string) string {
	if i := t.keyIndex(field); i >= 0 && i < len(r.Key) {
		return r.Key[i]
	}
	return r.Attrs[field]
}

// WithColumns returns a copy restricted to the given units; statuses of the
// other units are dropped.
func (t Table) WithColumns(keep func(UnitCode) bool) Table {
	c := t.Clone()
	c.Columns = slices.DeleteFunc(c.Columns, func(col Column) bool { return !keep(col.Unit) })
	for i := range c.Records {
		for u := range c.Records[i].Status {
			if !keep(u) {
				delete(c.Records[i].Status, u)
				delete(c.Records[i].Changed, u)
			}
		}
	}
	return c
}

func sortRecords(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return a.Key.Compare(b.Key)
	})
}
