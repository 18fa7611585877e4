package core

import "strings"

// EffectivitySeparator joins unit codes in the effectivity annotation.
const EffectivitySeparator = ", "

// IsActive reports whether a status counts toward a record's effectivity.
// inRevision tells whether the unit belongs to the revision set under the
// 90-day revision; it only matters for PolicyRevisionAware.
func IsActive(s Status, policy EffectivityPolicy, inRevision bool) bool {
	switch s.Stored() {
	case New, Revised, Unchanged, Anomalous:
		return true
	case Deleted:
		return policy == PolicyRevisionAware && inRevision
	}
	return false
}

// AddEffectivity annotates every record with the comma-joined codes of the
// units for which it is active, in column order. Records with an empty
// annotation are removed when dropEmpty is set.
func AddEffectivity(t Table, policy EffectivityPolicy, revision UnitSet, dropEmpty bool) Table {
	out := t.Clone()
	kept := out.Records[:0]

	for _, rec := range out.Records {
		var active []string
		for _, col := range out.Columns {
			if IsActive(rec.StatusOf(col.Unit), policy, revision.Has(col.Unit)) {
				active = append(active, string(col.Unit))
			}
		}
		rec.Effectivity = strings.Join(active, EffectivitySeparator)
		if dropEmpty && rec.Effectivity == "" {
			continue
		}
		kept = append(kept, rec)
	}

	out.Records = kept
	return out
}
