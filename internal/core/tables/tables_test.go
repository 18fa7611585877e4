package tables

import (
	"testing"

	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/schema"
)

func TestKindsRegistered(t *testing.T) {
	for _, kind := range []string{core.KindFollowUpInitial, core.KindFollowUp, core.KindDSOL, core.KindPS, core.KindNC} {
		def, ok := core.Get(kind)
		if !ok {
			t.Errorf("kind %q not registered", kind)
			continue
		}
		if len(def.Info.KeyFields) == 0 {
			t.Errorf("kind %q has no key fields", kind)
		}
		for _, f := range append(def.Info.KeyFields, def.Info.AttrFields...) {
			if kind == core.KindFollowUp && f != schema.PartTitle && f != schema.PartNumber {
				continue
			}
			found := false
			for _, c := range def.Info.Columns {
				if c == f {
					found = true
				}
			}
			if !found {
				t.Errorf("kind %q: field %q is not read from the source", kind, f)
			}
		}
	}

	partList := 0
	for _, def := range core.All() {
		if def.Info.Sheet == schema.SheetPartList {
			partList++
		}
	}
	if got := partList; got != 2 {
		t.Errorf("kinds read from %q = %d, want 2", schema.SheetPartList, got)
	}
}

func TestEffectivityPositions(t *testing.T) {
	tests := []struct {
		kind  string
		name  string
		index int
	}{
		{core.KindFollowUpInitial, schema.PartNumberEffectivity, 2},
		{core.KindFollowUp, schema.PartNumberEffectivity, 5},
		{core.KindDSOL, schema.Effectivity, 5},
		{core.KindPS, schema.ChildEffectivity, 4},
		{core.KindNC, schema.Effectivity, 5},
	}
	for _, tt := range tests {
		eff := core.MustGet(tt.kind).Info.Effectivity
		if eff.Name != tt.name || eff.Index != tt.index {
			t.Errorf("%s effectivity = %+v, want {%s %d}", tt.kind, eff, tt.name, tt.index)
		}
	}
	if p := core.MustGet(core.KindNC).Info.Policy; p != core.PolicyRevisionAware {
		t.Errorf("nc policy = %v, want PolicyRevisionAware", p)
	}
}

func TestKeepFollowUpRow(t *testing.T) {
	tests := []struct {
		pn, typ string
		want    bool
	}{
		{"D5327001R0", "DSOL", true},
		{"D5327001R1", "DSOL", true},
		{"D5327001R3", "DSOL", true},
		{"D5327001R2", "DSOL", false},
		{"D5327001R0", "STD", false},
		{"D5327001", "DSOL", false},
	}
	for _, tt := range tests {
		got := keepFollowUpRow(map[string]string{schema.PartNumber: tt.pn, schema.PartType: tt.typ})
		if got != tt.want {
			t.Errorf("keepFollowUpRow(%s, %s) = %v, want %v", tt.pn, tt.typ, got, tt.want)
		}
	}
}

func TestKeepStructureRow(t *testing.T) {
	tests := []struct {
		child, title string
		want         bool
	}{
		{"D100R0", "BRACKET", true},
		{"D100R0", "BRACKET (DELETED)", false},
		{"D100R0", "SALVAGE KIT", false},
		{"D100R6", "BRACKET", false},
		{"D100R7", "BRACKET", false},
	}
	for _, tt := range tests {
		got := keepStructureRow(map[string]string{schema.ChildNumber: tt.child, schema.ChildTitle: tt.title})
		if got != tt.want {
			t.Errorf("keepStructureRow(%s, %q) = %v, want %v", tt.child, tt.title, got, tt.want)
		}
	}
}

func TestTrim(t *testing.T) {
	if got := Trim("  D100 \t"); got != "D100" {
		t.Errorf("Trim = %q, want %q", got, "D100")
	}
}
