package workbook

import (
	"regexp"
	"slices"
	"strings"

	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/schema"
)

type cellKind int

const (
	fieldCell cellKind = iota
	effectivityCell
	taskCell
	unitCell
	changeCell
	effectivityChangeCell
)

type column struct {
	kind   cellKind
	header string
	field  string
	unit   core.UnitCode
}

// layout decides which columns a table is written with.
type layout struct {
	effectivity core.EffectivityColumn
	task        bool
	work        []string
	status      func(core.UnitCode, core.Status) string
}

func symbol(_ core.UnitCode, s core.Status) string {
	return s.Symbol()
}

// followUpLayout is the layout of a table on a follow-up workbook sheet.
func followUpLayout(kind string) layout {
	l := layout{status: symbol}
	if def, ok := core.Get(kind); ok {
		l.effectivity = def.Info.Effectivity
	}
	switch kind {
	case core.KindFollowUp:
		l.task = true
		l.work = schema.FollowUpWorkColumns
	case core.KindFollowUpInitial:
		l.task = true
	case core.KindNC:
		l.work = schema.NCWorkColumns
	}
	return l
}

// ncReportLayout renders statuses as "UNIT (SYMBOL)" and has no work columns.
func ncReportLayout() layout {
	l := layout{status: core.StatusLabel}
	if def, ok := core.Get(core.KindNC); ok {
		l.effectivity = def.Info.Effectivity
	}
	return l
}

// columns orders the sheet: key and descriptive fields with the effectivity
// column at its position and TASK after it, then unit status columns and the
// change flags of an incremental update.
func (l layout) columns(t core.Table) []column {
	fields := append(slices.Clone(t.KeyFields), t.AttrFields...)
	for _, w := range l.work {
		if !slices.Contains(fields, w) {
			fields = append(fields, w)
		}
	}

	var cols []column
	for _, f := range fields {
		cols = append(cols, column{kind: fieldCell, header: f, field: f})
	}

	var inserted []column
	if l.effectivity.Name != "" {
		inserted = append(inserted, column{kind: effectivityCell, header: l.effectivity.Name})
	}
	if l.task {
		inserted = append(inserted, column{kind: taskCell, header: schema.Task})
	}
	at := min(max(l.effectivity.Index, 0), len(cols))
	if l.effectivity.Name == "" {
		at = len(cols)
	}
	cols = slices.Insert(cols, at, inserted...)

	for _, c := range t.Columns {
		header := c.Label
		if header == "" {
			header = string(c.Unit)
		}
		cols = append(cols, column{kind: unitCell, header: header, unit: c.Unit})
	}
	for _, u := range t.Changes {
		cols = append(cols, column{kind: changeCell, header: string(u) + schema.ChangeSuffix, unit: u})
	}
	if len(t.Changes) > 0 {
		cols = append(cols, column{kind: effectivityChangeCell, header: schema.EffectivityChange})
	}
	return cols
}

// sheet renders a table.
func (l layout) sheet(name string, t core.Table) core.Sheet {
	cols := l.columns(t)
	sh := core.Sheet{Name: name, Header: make([]string, len(cols))}
	for i, c := range cols {
		sh.Header[i] = c.header
	}

	sh.Rows = make([][]string, len(t.Records))
	for r, rec := range t.Records {
		row := make([]string, len(cols))
		for i, c := range cols {
			switch c.kind {
			case fieldCell:
				row[i] = t.Field(rec, c.field)
			case effectivityCell:
				row[i] = rec.Effectivity
			case taskCell:
				row[i] = string(rec.Task)
			case unitCell:
				row[i] = l.status(c.unit, rec.StatusOf(c.unit))
			case changeCell:
				row[i] = boolCell(rec.Changed[c.unit])
			case effectivityChangeCell:
				row[i] = boolCell(rec.NeedsReview)
			}
		}
		sh.Rows[r] = row
	}
	return sh
}

func boolCell(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

var unitHeader = regexp.MustCompile(`^\d{4}_`)

// isDerivedHeader reports the columns a writer adds and a reader drops.
func isDerivedHeader(h string) bool {
	switch h {
	case schema.Task, schema.EffectivityChange,
		schema.PartNumberEffectivity, schema.Effectivity, schema.ChildEffectivity:
		return true
	}
	return strings.HasSuffix(h, schema.ChangeSuffix)
}
