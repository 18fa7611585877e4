package core

import (
	"fmt"
	"slices"
	"strings"
)

// Fleet partition keys as they appear in the fleet file.
const (
	PartitionAll  = "all"
	PartitionA320 = "all_A320"
	PartitionNew  = "new"
	PartitionRev  = "rev"
)

// FleetKeys lists the partitions a fleet file must define.
var FleetKeys = []string{PartitionAll, PartitionA320, PartitionNew, PartitionRev}

// Author roster keys.
const (
	DisciplineIPC  = "IPC"
	DisciplineSRM  = "SRM"
	DisciplineILLU = "ILLU"
)

// AuthorKeys lists the disciplines an author roster must define.
var AuthorKeys = []string{DisciplineIPC, DisciplineSRM, DisciplineILLU}

// UnitSet is a set of unit codes. The zero value is an empty set.
type UnitSet map[UnitCode]bool

// NewUnitSet builds a set from codes.
func NewUnitSet(units ...UnitCode) UnitSet {
	s := make(UnitSet, len(units))
	for _, u := range units {
		s[u] = true
	}
	return s
}

// Has reports membership. Safe on a nil set.
func (s UnitSet) Has(u UnitCode) bool {
	return s[u]
}

// Fleet is the read-only partition of known units for one revision.
type Fleet struct {
	All  []UnitCode `json:"all"`
	A320 []UnitCode `json:"all_A320"`
	New  []UnitCode `json:"new"`
	Rev  []UnitCode `json:"rev"`
}

// Current returns the units of the current revision: new then rev.
func (f Fleet) Current() []UnitCode {
	return append(slices.Clone(f.New), f.Rev...)
}

// CurrentA320 returns the current units that are A320s.
func (f Fleet) CurrentA320() []UnitCode {
	a320 := NewUnitSet(f.A320...)
	var out []UnitCode
	for _, u := range f.Current() {
		if a320.Has(u) {
			out = append(out, u)
		}
	}
	return out
}

// Revision returns the 90-day revision set.
func (f Fleet) Revision() UnitSet {
	return NewUnitSet(f.Rev...)
}

// Validate checks that the partitions are consistent with each other.
// Returns an error describing all failures.
func (f Fleet) Validate() error {
	var errs []string

	all := NewUnitSet(f.All...)
	for _, p := range []struct {
		name  string
		units []UnitCode
	}{{PartitionA320, f.A320}, {PartitionNew, f.New}, {PartitionRev, f.Rev}} {
		for _, u := range p.units {
			if !all.Has(u) {
				errs = append(errs, fmt.Sprintf("unit %s in %q is not listed in %q", u, p.name, PartitionAll))
			}
		}
	}
	for _, u := range f.All {
		if len(u) != 4 {
			errs = append(errs, fmt.Sprintf("unit code %q must have 4 characters", u))
		}
	}
	rev := f.Revision()
	for _, u := range f.New {
		if rev.Has(u) {
			errs = append(errs, fmt.Sprintf("unit %s is both %q and %q", u, PartitionNew, PartitionRev))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("fleet validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseFleet builds a Fleet from raw partition lists. Every key of FleetKeys
// must be present; extra keys are ignored.
func ParseFleet(raw map[string][]string) (Fleet, error) {
	if missing := missingKeys(raw, FleetKeys); len(missing) > 0 {
		return Fleet{}, &MissingKeysError{Document: "fleet", Expected: FleetKeys, Missing: missing}
	}
	f := Fleet{
		All:  toUnits(raw[PartitionAll]),
		A320: toUnits(raw[PartitionA320]),
		New:  toUnits(raw[PartitionNew]),
		Rev:  toUnits(raw[PartitionRev]),
	}
	if err := f.Validate(); err != nil {
		return Fleet{}, err
	}
	return f, nil
}

// Authors is the roster of authors per discipline.
type Authors struct {
	IPC  []string `json:"IPC"`
	SRM  []string `json:"SRM"`
	ILLU []string `json:"ILLU"`
}

// ParseAuthors builds an Authors roster; every discipline key must be present.
func ParseAuthors(raw map[string][]string) (Authors, error) {
	if missing := missingKeys(raw, AuthorKeys); len(missing) > 0 {
		return Authors{}, &MissingKeysError{Document: "authors", Expected: AuthorKeys, Missing: missing}
	}
	return Authors{
		IPC:  slices.Clone(raw[DisciplineIPC]),
		SRM:  slices.Clone(raw[DisciplineSRM]),
		ILLU: slices.Clone(raw[DisciplineILLU]),
	}, nil
}

// CheckPartitions compares the units found in the sources with the fleet's
// full unit list. Either direction of mismatch is fatal, and so is a unit
// found more than once.
func CheckPartitions(f Fleet, found []UnitCode) error {
	have := NewUnitSet(found...)
	known := NewUnitSet(f.All...)

	var missingSources, missingConfig []UnitCode
	for _, u := range f.All {
		if !have.Has(u) {
			missingSources = append(missingSources, u)
		}
	}
	for _, u := range found {
		if !known.Has(u) && !slices.Contains(missingConfig, u) {
			missingConfig = append(missingConfig, u)
		}
	}
	duplicate := duplicateUnits(found)
	if len(missingSources) == 0 && len(missingConfig) == 0 && len(duplicate) == 0 {
		return nil
	}
	return &PartitionMismatchError{
		MissingSources: missingSources,
		MissingConfig:  missingConfig,
		Duplicate:      duplicate,
	}
}

// duplicateUnits lists, in first-seen order, the units that occur more than once.
func duplicateUnits(found []UnitCode) []UnitCode {
	seen := make(map[UnitCode]int, len(found))
	var dup []UnitCode
	for _, u := range found {
		seen[u]++
		if seen[u] == 2 {
			dup = append(dup, u)
		}
	}
	return dup
}

func missingKeys(raw map[string][]string, keys []string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func toUnits(codes []string) []UnitCode {
	out := make([]UnitCode, 0, len(codes))
	for _, c := range codes {
		out = append(out, UnitCode(strings.TrimSpace(c)))
	}
	return out
}

func joinUnits(units []UnitCode) string {
	s := make([]string, len(units))
	for i, u := range units {
		s[i] = string(u)
	}
	return strings.Join(s, ", ")
}
