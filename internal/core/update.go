package core

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/JonMunkholm/followup/internal/schema"
)

// UnitChange is a unit whose source revision differs between two follow-ups.
type UnitChange struct {
	Unit UnitCode
	Old  Column
	New  Column
}

// ChangedUnits finds the units whose column label changed from old to next.
// Both sides must report the same set of changed units.
func ChangedUnits(old, next Table) ([]UnitChange, error) {
	oldLabels := labelSet(old.Columns)
	newLabels := labelSet(next.Columns)

	var gone, added []Column
	for _, c := range old.Columns {
		if !newLabels[c.Label] {
			gone = append(gone, c)
		}
	}
	for _, c := range next.Columns {
		if !oldLabels[c.Label] {
			added = append(added, c)
		}
	}

	byUnit := func(a, b Column) int { return cmp.Compare(a.Unit, b.Unit) }
	slices.SortFunc(gone, byUnit)
	slices.SortFunc(added, byUnit)

	if len(gone) != len(added) {
		return nil, ErrUnitSetMismatch
	}
	changes := make([]UnitChange, len(gone))
	for i := range gone {
		if gone[i].Unit != added[i].Unit {
			return nil, ErrUnitSetMismatch
		}
		changes[i] = UnitChange{Unit: gone[i].Unit, Old: gone[i], New: added[i]}
	}
	return changes, nil
}

// UpdateFollowUp reconciles an old follow-up table against a newer one when
// only some units received new sources.
//
// The old table keeps its rows and human-entered columns. Part numbers only
// present in the new table are appended. For every changed unit the old status
// is reconciled against the first new row with the same part number (Absent if
// there is none); phantom states are stored downgraded and flagged in Changed.
// Rows are never dropped for empty effectivity.
func UpdateFollowUp(old, next Table, revision UnitSet, console Console) (Table, error) {
	changes, err := ChangedUnits(old, next)
	if err != nil {
		return Table{}, err
	}
	pn := old.keyIndex(schema.PartNumber)
	if pn < 0 || next.keyIndex(schema.PartNumber) != pn {
		return Table{}, fmt.Errorf("update follow-up: %q must be the same key field in both tables", schema.PartNumber)
	}

	for _, ch := range changes {
		printf(console, "Unit %s from %s to %s", ch.Unit, ch.Old.Label, ch.New.Label)
	}

	t := old.Clone()
	renameColumns(&t, changes)
	for _, f := range next.AttrFields {
		if !slices.Contains(t.AttrFields, f) {
			t.AttrFields = append(t.AttrFields, f)
		}
	}

	// Part numbers not yet tracked, with the changed units left empty so the
	// reconciliation below sees them as absent before.
	known := make(map[string]bool, len(t.Records))
	for _, rec := range t.Records {
		known[rec.Key[pn]] = true
	}
	for _, rec := range next.Records {
		if known[rec.Key[pn]] {
			continue
		}
		r := rec.clone()
		for _, ch := range changes {
			r.Status[ch.Unit] = Absent
		}
		t.Records = append(t.Records, r)
	}
	fillAbsent(&t)
	sortRecords(t.Records)

	latest := reduceByPartNumber(next, pn, changes)

	t.Changes = make([]UnitCode, len(changes))
	for i, ch := range changes {
		t.Changes[i] = ch.Unit
	}

	for i := range t.Records {
		rec := &t.Records[i]
		rec.Changed = make(map[UnitCode]bool, len(changes))
		rec.NeedsReview = false

		for _, ch := range changes {
			observed := Absent
			if statuses, ok := latest[rec.Key[pn]]; ok {
				observed = statuses[ch.Unit]
			}
			reconciled := Reconcile(rec.StatusOf(ch.Unit), observed)
			rec.Status[ch.Unit] = reconciled.Stored()
			rec.Changed[ch.Unit] = reconciled.NeedsReview()
			rec.NeedsReview = rec.NeedsReview || reconciled.NeedsReview()
		}
	}

	t = AddEffectivity(t, PolicyStandard, revision, false)
	t = AddTask(t, revision)
	return t, nil
}

// reduceByPartNumber keeps the first row per part number, changed units only.
func reduceByPartNumber(t Table, pn int, changes []UnitChange) map[string]map[UnitCode]Status {
	out := make(map[string]map[UnitCode]Status, len(t.Records))
	for _, rec := range t.Records {
		p := rec.Key[pn]
		if _, ok := out[p]; ok {
			continue
		}
		statuses := make(map[UnitCode]Status, len(changes))
		for _, ch := range changes {
			statuses[ch.Unit] = rec.StatusOf(ch.Unit)
		}
		out[p] = statuses
	}
	return out
}

func renameColumns(t *Table, changes []UnitChange) {
	for i, col := range t.Columns {
		for _, ch := range changes {
			if col.Unit == ch.Unit && col.Label == ch.Old.Label {
				t.Columns[i] = ch.New
			}
		}
	}
}

func labelSet(cols []Column) map[string]bool {
	s := make(map[string]bool, len(cols))
	for _, c := range cols {
		s[c.Label] = true
	}
	return s
}
