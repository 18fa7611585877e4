package core

import (
	"cmp"
	"slices"

	"github.com/JonMunkholm/followup/internal/schema"
)

// AddTask fills the TASK column of a follow-up table. A record needs work for
// the new units when any unit outside the revision set has a status;
// otherwise it only concerns units under 90-day revision.
func AddTask(t Table, revision UnitSet) Table {
	out := t.Clone()
	for i := range out.Records {
		rec := &out.Records[i]
		rec.Task = TaskRevisedOld
		for _, col := range out.Columns {
			if revision.Has(col.Unit) {
				continue
			}
			if rec.StatusOf(col.Unit) != Absent {
				rec.Task = TaskNewUnits
				break
			}
		}
	}
	return out
}

// SortStructureByChild orders a product-structure table by child then parent
// number, the order authors work through it in.
func SortStructureByChild(t Table) Table {
	out := t.Clone()
	slices.SortStableFunc(out.Records, func(a, b Record) int {
		if c := cmp.Compare(out.Field(a, schema.ChildNumber), out.Field(b, schema.ChildNumber)); c != 0 {
			return c
		}
		return cmp.Compare(out.Field(a, schema.ParentNumber), out.Field(b, schema.ParentNumber))
	})
	return out
}

// ReviseNonconformities compares the NC rows of one unit under 90-day
// revision before and after it received a new source. Every key of either
// side is reconciled; keys absent on both sides are dropped. Unlike follow-up
// updates the synthetic PN and PD states are kept, since the NC report shows
// them as is.
//
// If the source label did not change, latest is returned unchanged.
func ReviseNonconformities(previous, latest RecordSet, console Console) RecordSet {
	if previous.Column.Label == latest.Column.Label {
		return latest
	}

	type pair struct {
		key         Key
		attrs       map[string]string
		old, latest Status
	}
	var order []string
	byKey := make(map[string]*pair)
	add := func(rows []Row, isLatest bool) {
		for _, row := range rows {
			id := row.Key.id()
			p, ok := byKey[id]
			if !ok {
				p = &pair{key: row.Key, attrs: row.Attrs}
				byKey[id] = p
				order = append(order, id)
			}
			if isLatest {
				p.latest = row.Status
				p.attrs = row.Attrs
			} else {
				p.old = row.Status
			}
		}
	}
	add(dedupeRows(previous, console), false)
	add(dedupeRows(latest, console), true)

	out := RecordSet{Kind: latest.Kind, Column: latest.Column}
	flagged := 0
	for _, id := range order {
		p := byKey[id]
		s := Reconcile(p.old, p.latest)
		if s == Absent {
			continue
		}
		if s.NeedsReview() {
			flagged++
		}
		out.Rows = append(out.Rows, Row{Key: p.key, Attrs: p.attrs, Status: s})
	}
	slices.SortStableFunc(out.Rows, func(a, b Row) int { return a.Key.Compare(b.Key) })

	printf(console, "Unit %s from %s to %s: %d nonconformities need review",
		latest.Column.Unit, previous.Column.Label, latest.Column.Label, flagged)
	return out
}

// CurrentView keeps the columns of the given units and the records that have
// a status for at least one of them.
func CurrentView(t Table, units UnitSet) Table {
	out := t.WithColumns(units.Has)
	out.Records = slices.DeleteFunc(out.Records, func(r Record) bool {
		for _, col := range out.Columns {
			if r.StatusOf(col.Unit) != Absent {
				return false
			}
		}
		return true
	})
	return out
}

// CountFlagged returns the records needing review or carrying a synthetic status.
func CountFlagged(t Table) int {
	n := 0
	for _, r := range t.Records {
		if r.NeedsReview || slices.ContainsFunc(t.Columns, func(c Column) bool {
			return r.StatusOf(c.Unit).IsSynthetic()
		}) {
			n++
		}
	}
	return n
}
