package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validFleet() map[string][]string {
	return map[string][]string{
		PartitionAll:  {"1111", "2222", "3333", "4444"},
		PartitionA320: {"3333", "4444"},
		PartitionNew:  {"2222", " 4444"},
		PartitionRev:  {"3333"},
		"comment":     {"ignored"},
	}
}

func TestParseFleet(t *testing.T) {
	f, err := ParseFleet(validFleet())
	if err != nil {
		t.Fatalf("ParseFleet: %v", err)
	}

	if diff := cmp.Diff([]UnitCode{"2222", "4444", "3333"}, f.Current()); diff != "" {
		t.Errorf("Current mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]UnitCode{"4444", "3333"}, f.CurrentA320()); diff != "" {
		t.Errorf("CurrentA320 mismatch (-want +got):\n%s", diff)
	}
	if rev := f.Revision(); !rev.Has("3333") || rev.Has("2222") {
		t.Errorf("Revision = %v", rev)
	}
}

func TestParseFleet_MissingKeys(t *testing.T) {
	raw := validFleet()
	delete(raw, PartitionRev)
	delete(raw, PartitionA320)

	_, err := ParseFleet(raw)
	var missing *MissingKeysError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingKeysError", err)
	}
	if diff := cmp.Diff([]string{PartitionA320, PartitionRev}, missing.Missing); diff != "" {
		t.Errorf("missing keys mismatch (-want +got):\n%s", diff)
	}
	if missing.Document != "fleet" {
		t.Errorf("Document = %q", missing.Document)
	}
}

func TestFleetValidate(t *testing.T) {
	tests := []struct {
		name    string
		fleet   Fleet
		wantErr string
	}{
		{"valid", Fleet{All: []UnitCode{"1111"}, New: []UnitCode{"1111"}}, ""},
		{"unknown new unit", Fleet{All: []UnitCode{"1111"}, New: []UnitCode{"9999"}}, `unit 9999 in "new"`},
		{"unknown A320 unit", Fleet{All: []UnitCode{"1111"}, A320: []UnitCode{"9999"}}, `unit 9999 in "all_A320"`},
		{"short code", Fleet{All: []UnitCode{"111"}}, `"111" must have 4 characters`},
		{"new and rev", Fleet{All: []UnitCode{"1111"}, New: []UnitCode{"1111"}, Rev: []UnitCode{"1111"}}, `both "new" and "rev"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fleet.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckPartitions(t *testing.T) {
	f := Fleet{All: []UnitCode{"1111", "2222"}}

	if err := CheckPartitions(f, []UnitCode{"2222", "1111"}); err != nil {
		t.Errorf("CheckPartitions: %v", err)
	}

	err := CheckPartitions(f, []UnitCode{"1111", "5555"})
	var mismatch *PartitionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *PartitionMismatchError", err)
	}
	want := &PartitionMismatchError{
		MissingSources: []UnitCode{"2222"},
		MissingConfig:  []UnitCode{"5555"},
	}
	if diff := cmp.Diff(want, mismatch); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if msg := err.Error(); !strings.Contains(msg, "2222 are missing") || !strings.Contains(msg, "5555 are missing from the fleet file") {
		t.Errorf("message = %q", msg)
	}
}

func TestCheckPartitions_DuplicateUnit(t *testing.T) {
	f := Fleet{All: []UnitCode{"1111", "2222"}}

	err := CheckPartitions(f, []UnitCode{"1111", "2222", "1111", "1111"})
	var mismatch *PartitionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *PartitionMismatchError", err)
	}
	want := &PartitionMismatchError{Duplicate: []UnitCode{"1111"}}
	if diff := cmp.Diff(want, mismatch); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if msg := err.Error(); !strings.Contains(msg, "1111 have more than one MDL") {
		t.Errorf("message = %q", msg)
	}
}

func TestParseAuthors(t *testing.T) {
	a, err := ParseAuthors(map[string][]string{
		DisciplineIPC:  {"Ann"},
		DisciplineSRM:  {"Bob", "Cid"},
		DisciplineILLU: nil,
	})
	if err != nil {
		t.Fatalf("ParseAuthors: %v", err)
	}
	if diff := cmp.Diff(Authors{IPC: []string{"Ann"}, SRM: []string{"Bob", "Cid"}}, a); diff != "" {
		t.Errorf("authors mismatch (-want +got):\n%s", diff)
	}

	_, err = ParseAuthors(map[string][]string{DisciplineIPC: {"Ann"}})
	var missing *MissingKeysError
	if !errors.As(err, &missing) || len(missing.Missing) != 2 {
		t.Errorf("error = %v, want SRM and ILLU missing", err)
	}
}
