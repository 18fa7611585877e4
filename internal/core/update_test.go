package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/followup/internal/schema"
)

func followUpTable(cols []Column, records ...Record) Table {
	return Table{
		Kind:       KindFollowUp,
		KeyFields:  []string{schema.PartNumber, schema.CSN, schema.Fig, schema.Type},
		AttrFields: []string{schema.PartTitle, "Author"},
		Columns:    cols,
		Records:    records,
	}
}

func fuRecord(pn, csn string, author string, st map[UnitCode]Status) Record {
	return Record{
		Key:    Key{pn, csn, "1", TypeEFW},
		Attrs:  map[string]string{schema.PartTitle: "T " + pn, "Author": author},
		Status: st,
	}
}

func TestUpdateFollowUp(t *testing.T) {
	oldCols := []Column{{"1111", "1111_A"}, {"2222", "2222_A"}}
	newCols := []Column{{"1111", "1111_A"}, {"2222", "2222_B"}}

	old := followUpTable(oldCols,
		fuRecord("P1", "c", "Ann", map[UnitCode]Status{"1111": New, "2222": New}),
		fuRecord("P2", "c", "Bob", map[UnitCode]Status{"1111": Unchanged, "2222": Revised}),
		fuRecord("P3", "c", "", map[UnitCode]Status{"1111": Absent, "2222": Deleted}),
	)
	next := followUpTable(newCols,
		fuRecord("P1", "c", "", map[UnitCode]Status{"1111": New, "2222": Revised}),
		fuRecord("P3", "c", "", map[UnitCode]Status{"1111": Absent, "2222": New}),
		fuRecord("P4", "c", "", map[UnitCode]Status{"1111": New, "2222": New}),
	)

	var console Transcript
	got, err := UpdateFollowUp(old, next, NewUnitSet("2222"), &console)
	if err != nil {
		t.Fatalf("UpdateFollowUp: %v", err)
	}

	if diff := cmp.Diff(newCols, got.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]UnitCode{"2222"}, got.Changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}

	type result struct {
		PN          string
		Status      Status
		Changed     bool
		Effectivity string
		Task        Task
		Author      string
	}
	var results []result
	for _, r := range got.Records {
		results = append(results, result{
			PN:          r.Key[0],
			Status:      r.StatusOf("2222"),
			Changed:     r.Changed["2222"],
			Effectivity: r.Effectivity,
			Task:        r.Task,
			Author:      r.Attr("Author"),
		})
		if r.NeedsReview != r.Changed["2222"] {
			t.Errorf("%s NeedsReview = %v, want %v", r.Key[0], r.NeedsReview, r.Changed["2222"])
		}
	}
	want := []result{
		{"P1", Revised, false, "1111, 2222", TaskNewUnits, "Ann"},
		{"P2", Deleted, true, "1111", TaskNewUnits, "Bob"},
		{"P3", New, true, "2222", TaskRevisedOld, ""},
		{"P4", New, true, "1111, 2222", TaskNewUnits, ""},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"Unit 2222 from 2222_A to 2222_B"}, console.Lines()); diff != "" {
		t.Errorf("console mismatch (-want +got):\n%s", diff)
	}

	if old.Columns[1].Label != "2222_A" || old.Records[0].StatusOf("2222") != New {
		t.Error("UpdateFollowUp modified the old table")
	}
}

// A part number already tracked under another CSN is not added again, and
// every old line of it is reconciled against the first new line.
func TestUpdateFollowUp_MatchesOnPartNumber(t *testing.T) {
	oldCols := []Column{{"1111", "1111_A"}}
	newCols := []Column{{"1111", "1111_B"}}

	old := followUpTable(oldCols,
		fuRecord("P1", "a", "", map[UnitCode]Status{"1111": New}),
		fuRecord("P1", "b", "", map[UnitCode]Status{"1111": New}),
	)
	next := followUpTable(newCols,
		fuRecord("P1", "a", "", map[UnitCode]Status{"1111": Revised}),
		fuRecord("P1", "z", "", map[UnitCode]Status{"1111": Deleted}),
	)

	got, err := UpdateFollowUp(old, next, nil, Discard)
	if err != nil {
		t.Fatalf("UpdateFollowUp: %v", err)
	}
	if len(got.Records) != 2 {
		t.Fatalf("records = %d, want 2 (no line added for a known part number)", len(got.Records))
	}
	for _, r := range got.Records {
		if s := r.StatusOf("1111"); s != Revised {
			t.Errorf("%v status = %v, want revised", r.Key, s)
		}
	}
}

func TestUpdateFollowUp_KeepsEmptyRows(t *testing.T) {
	old := followUpTable([]Column{{"1111", "1111_A"}},
		fuRecord("P1", "a", "Ann", map[UnitCode]Status{"1111": Deleted}),
	)
	next := followUpTable([]Column{{"1111", "1111_B"}})

	got, err := UpdateFollowUp(old, next, nil, Discard)
	if err != nil {
		t.Fatalf("UpdateFollowUp: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].Effectivity != "" {
		t.Errorf("records = %+v, want the deleted row kept with empty effectivity", got.Records)
	}
}

func TestUpdateFollowUp_UnitSetMismatch(t *testing.T) {
	old := followUpTable([]Column{{"1111", "1111_A"}, {"2222", "2222_A"}})
	next := followUpTable([]Column{{"1111", "1111_A"}, {"3333", "3333_A"}})

	_, err := UpdateFollowUp(old, next, nil, Discard)
	if !errors.Is(err, ErrUnitSetMismatch) {
		t.Errorf("UpdateFollowUp error = %v, want ErrUnitSetMismatch", err)
	}
}

func TestChangedUnits_NoChanges(t *testing.T) {
	cols := []Column{{"1111", "1111_A"}}
	changes, err := ChangedUnits(followUpTable(cols), followUpTable(cols))
	if err != nil || len(changes) != 0 {
		t.Errorf("ChangedUnits = %v, %v; want no changes", changes, err)
	}
}
