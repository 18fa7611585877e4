package core

import (
	"errors"
	"testing"
)

func TestReconcile_TransitionTable(t *testing.T) {
	live := []Status{New, Revised, Unchanged}

	for _, old := range live {
		for _, next := range live {
			if got := Reconcile(old, next); got != next {
				t.Errorf("Reconcile(%v, %v) = %v, want %v", old, next, got, next)
			}
		}
		for _, next := range []Status{Deleted, Absent} {
			if got := Reconcile(old, next); got != PhantomDeleted {
				t.Errorf("Reconcile(%v, %v) = %v, want phantom_deleted", old, next, got)
			}
		}
	}

	for _, old := range []Status{Deleted, Absent} {
		for _, next := range live {
			if got := Reconcile(old, next); got != PhantomNew {
				t.Errorf("Reconcile(%v, %v) = %v, want phantom_new", old, next, got)
			}
		}
		if got := Reconcile(old, Deleted); got != Deleted {
			t.Errorf("Reconcile(%v, deleted) = %v, want deleted", old, got)
		}
		if got := Reconcile(old, Absent); got != Absent {
			t.Errorf("Reconcile(%v, absent) = %v, want absent", old, got)
		}
	}
}

func TestReconcile_SyntheticInputsAreAnomalous(t *testing.T) {
	for _, synthetic := range []Status{PhantomNew, PhantomDeleted, Anomalous} {
		for _, other := range AllStatuses {
			if got := Reconcile(synthetic, other); got != Anomalous {
				t.Errorf("Reconcile(%v, %v) = %v, want anomalous", synthetic, other, got)
			}
			if got := Reconcile(other, synthetic); got != Anomalous {
				t.Errorf("Reconcile(%v, %v) = %v, want anomalous", other, synthetic, got)
			}
		}
	}
}

func TestStatus_Stored(t *testing.T) {
	tests := []struct {
		in, want Status
	}{
		{PhantomNew, New},
		{PhantomDeleted, Deleted},
		{Anomalous, Anomalous},
		{Revised, Revised},
		{Absent, Absent},
	}
	for _, tt := range tests {
		if got := tt.in.Stored(); got != tt.want {
			t.Errorf("%v.Stored() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		symbol  string
		want    Status
		wantErr bool
	}{
		{"N", New, false},
		{" R ", Revised, false},
		{"-", Unchanged, false},
		{"D", Deleted, false},
		{"", Absent, false},
		{"PN", PhantomNew, false},
		{"PD", PhantomDeleted, false},
		{"WTF", Anomalous, false},
		{"X", Anomalous, true},
		{"n", Anomalous, true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.symbol)
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.symbol, got, tt.want)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("ParseStatus(%q) error = %v, want ErrUnknownStatus", tt.symbol, err)
		}
	}
}

func TestStatus_SymbolRoundTrip(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(s.Symbol())
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", s.Symbol(), got, err, s)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	if got := StatusLabel("1207", New); got != "1207 (N)" {
		t.Errorf("StatusLabel = %q, want %q", got, "1207 (N)")
	}
	if got := StatusLabel("1207", PhantomDeleted); got != "1207 (PD)" {
		t.Errorf("StatusLabel = %q, want %q", got, "1207 (PD)")
	}
	if got := StatusLabel("1207", Absent); got != "" {
		t.Errorf("StatusLabel(absent) = %q, want empty", got)
	}
}
