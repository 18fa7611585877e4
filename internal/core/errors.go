package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnitSetMismatch is returned when two follow-ups do not track the same units.
	ErrUnitSetMismatch = errors.New("unit set mismatch: some units don't appear on both follow-ups")

	// ErrSheetSetMismatch is returned when two follow-up workbooks have different manual sheets.
	ErrSheetSetMismatch = errors.New("sheet set mismatch: sheet names don't match between workbooks")

	// ErrNoFollowUpSheets is returned when a workbook has none of the manual sheets.
	ErrNoFollowUpSheets = errors.New("no follow-up sheets found")
)

// SchemaMismatchError reports a reference database whose columns differ from
// the fixed schema.
type SchemaMismatchError struct {
	Source   string
	Expected []string
	Found    []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: expected columns [%s], found [%s]",
		e.Source, strings.Join(e.Expected, ", "), strings.Join(e.Found, ", "))
}

// PartitionMismatchError reports units present in the sources but not in the
// fleet configuration, or the reverse.
type PartitionMismatchError struct {
	MissingSources []UnitCode // in the fleet, no source found
	MissingConfig  []UnitCode // source found, not in the fleet
	Duplicate      []UnitCode // more than one source for the unit
}

func (e *PartitionMismatchError) Error() string {
	var parts []string
	if len(e.MissingSources) > 0 {
		parts = append(parts, fmt.Sprintf("the MDLs of the units %s are missing", joinUnits(e.MissingSources)))
	}
	if len(e.MissingConfig) > 0 {
		parts = append(parts, fmt.Sprintf("the units %s are missing from the fleet file", joinUnits(e.MissingConfig)))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, fmt.Sprintf("the units %s have more than one MDL", joinUnits(e.Duplicate)))
	}
	return "partition mismatch: " + strings.Join(parts, "; ")
}

// MissingKeysError reports a fleet or author document without its required keys.
type MissingKeysError struct {
	Document string
	Expected []string
	Missing  []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing keys in %s file: %s (the keys should be %s)",
		e.Document, strings.Join(e.Missing, ", "), strings.Join(e.Expected, ", "))
}
