package core

import (
	"maps"
	"slices"
	"strings"
)

// Merge full-outer-joins the record sets of many units on the kind's key tuple.
//
// Each set is deduplicated first; a key repeated inside one set keeps a live
// status over a non-live one and otherwise the row read last. Every key of any
// set appears once in the result, units without a row for it get an explicit
// Absent. Descriptive attributes that disagree across sets are taken from the
// set read last and reported on the console. Records are sorted by key.
func Merge(def TableDefinition, sets []RecordSet, console Console) Table {
	t := def.NewTable()

	index := make(map[string]int)
	seenUnit := make(map[UnitCode]bool)

	for _, set := range sets {
		if !seenUnit[set.Column.Unit] {
			seenUnit[set.Column.Unit] = true
			t.Columns = append(t.Columns, set.Column)
		}

		for _, row := range dedupeRows(set, console) {
			id := row.Key.id()
			i, ok := index[id]
			if !ok {
				index[id] = len(t.Records)
				t.Records = append(t.Records, Record{
					Key:    append(Key(nil), row.Key...),
					Attrs:  maps.Clone(row.Attrs),
					Status: map[UnitCode]Status{set.Column.Unit: row.Status},
				})
				continue
			}

			rec := &t.Records[i]
			rec.Status[set.Column.Unit] = row.Status
			if diff := attrDiff(rec.Attrs, row.Attrs); diff != "" {
				printf(console, "Key %s has a different %s in %s; keeping %q",
					strings.Join(row.Key, " / "), diff, set.Column.Label, row.Attrs[diff])
				rec.Attrs = maps.Clone(row.Attrs)
			}
		}
	}

	fillAbsent(&t)
	sortRecords(t.Records)
	return t
}

// dedupeRows removes exact duplicates and resolves repeated keys of one set.
func dedupeRows(set RecordSet, console Console) []Row {
	out := make([]Row, 0, len(set.Rows))
	pos := make(map[string]int, len(set.Rows))

	for _, row := range set.Rows {
		id := row.Key.id()
		i, ok := pos[id]
		if !ok {
			pos[id] = len(out)
			out = append(out, row)
			continue
		}

		prev := out[i]
		if prev.Status == row.Status && attrDiff(prev.Attrs, row.Attrs) == "" {
			continue
		}
		if prev.Status != row.Status {
			keep := row
			if prev.Status.IsLive() && !row.Status.IsLive() {
				keep = prev
			}
			printf(console, "Key %s is listed as %q and %q in %s; keeping %q",
				strings.Join(row.Key, " / "), prev.Status.Symbol(), row.Status.Symbol(),
				set.Column.Label, keep.Status.Symbol())
			out[i] = keep
			continue
		}
		out[i] = row
	}
	return out
}

// attrDiff returns the first attribute (in sorted order) whose values differ.
func attrDiff(a, b map[string]string) string {
	names := make([]string, 0, len(a)+len(b))
	for k := range a {
		names = append(names, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			names = append(names, k)
		}
	}
	slices.Sort(names)
	for _, k := range names {
		if a[k] != b[k] {
			return k
		}
	}
	return ""
}

func fillAbsent(t *Table) {
	for i := range t.Records {
		if t.Records[i].Status == nil {
			t.Records[i].Status = make(map[UnitCode]Status, len(t.Columns))
		}
		for _, c := range t.Columns {
			if _, ok := t.Records[i].Status[c.Unit]; !ok {
				t.Records[i].Status[c.Unit] = Absent
			}
		}
	}
}
