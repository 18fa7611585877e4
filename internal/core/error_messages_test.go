package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"partition mismatch", &PartitionMismatchError{MissingSources: []UnitCode{"1207"}}, "CFG001"},
		{"missing fleet keys", &MissingKeysError{Document: "fleet", Expected: FleetKeys, Missing: []string{"rev"}}, "CFG002"},
		{"fleet validation", Fleet{All: []UnitCode{"12"}}.Validate(), "CFG003"},
		{"missing inputs", RunRequest{Step: StepBuild}.Validate(), "CFG004"},
		{"unknown step", RunRequest{Step: 5}.Validate(), "CFG005"},
		{"schema mismatch", &SchemaMismatchError{Source: "db.xlsx"}, "SCH001"},
		{"wrapped unit set mismatch", fmt.Errorf("IPC Follow-up: %w", ErrUnitSetMismatch), "SCH002"},
		{"sheet set mismatch", ErrSheetSetMismatch, "SCH003"},
		{"no follow-up sheets", ErrNoFollowUpSheets, "SRC001"},
		{"busy", ErrTooManyRuns, "RUN001"},
		{"run not found", ErrRunNotFound, "RUN002"},
		{"run timeout", errors.New("read MDLs: context deadline exceeded"), "RUN003"},
		{"database down", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB001"},
		{"case insensitive", errors.New("RATE LIMIT exceeded"), "RATE001"},
		{"unknown error", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyRuns)
	want := "Too many runs in progress (Code: RUN001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil error should not be user facing")
	}
	if !IsUserFacing(ErrSheetSetMismatch) {
		t.Error("known error should be user facing")
	}
	if IsUserFacing(errors.New("random internal error xyz")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	ue := NewUserError(ErrUnitSetMismatch)
	if ue.Error() != "Some units don't appear on both follow-ups" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if ue.User.Code != "SCH002" {
		t.Errorf("Code = %q, want SCH002", ue.User.Code)
	}
	if !errors.Is(ue, ErrUnitSetMismatch) {
		t.Error("Unwrap() should return the technical error")
	}
}
