package workbook

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/schema"
)

// ReadFollowUp reads a follow-up workbook. Manual sheets become follow-up
// tables keyed like generated lines; columns the writer derives (effectivity,
// TASK, change flags) are dropped. Other sheets except Authors are carried.
func (s *Store) ReadFollowUp(ctx context.Context, path string, console core.Console) (core.FollowUpBook, error) {
	sheets, err := s.ReadSheets(ctx, path)
	if err != nil {
		return core.FollowUpBook{}, err
	}

	file := filepath.Base(path)
	var book core.FollowUpBook
	for _, sh := range sheets {
		if _, ok := core.ManualForSheet(sh.Name); ok {
			t, err := followUpTable(file, sh, console)
			if err != nil {
				return core.FollowUpBook{}, err
			}
			book.Tables = append(book.Tables, core.SheetTable{Sheet: sh.Name, Table: t})
			continue
		}
		if sh.Name == schema.SheetAuthors {
			continue
		}
		book.Carried = append(book.Carried, sh)
	}
	return book, nil
}

func followUpTable(file string, sh core.Sheet, console core.Console) (core.Table, error) {
	def := core.MustGet(core.KindFollowUp)
	keyFields := def.Info.KeyFields
	t := core.Table{Kind: core.KindFollowUp, KeyFields: slices.Clone(keyFields)}

	normalize := make(map[string]func(string) string, len(def.FieldSpecs))
	var required []string
	for _, spec := range def.FieldSpecs {
		if spec.Normalizer != nil {
			normalize[spec.Name] = spec.Normalizer
		}
		if spec.Required {
			required = append(required, spec.Name)
		}
	}

	keyIdx := make([]int, len(keyFields))
	for i := range keyIdx {
		keyIdx[i] = -1
	}
	type attr struct {
		name string
		i    int
	}
	var attrs []attr
	units := make(map[int]core.UnitCode)
	task := -1

	for i, h := range sh.Header {
		switch {
		case h == "":
		case unitHeader.MatchString(h):
			u := core.UnitCode(h[:4])
			units[i] = u
			t.Columns = append(t.Columns, core.Column{Unit: u, Label: h})
		case h == schema.Task:
			task = i
		case isDerivedHeader(h):
		default:
			if h == schema.Title {
				h = schema.PartTitle
			}
			if k := slices.Index(keyFields, h); k >= 0 {
				if keyIdx[k] < 0 {
					keyIdx[k] = i
				}
				continue
			}
			attrs = append(attrs, attr{h, i})
			t.AttrFields = append(t.AttrFields, h)
		}
	}
	for _, name := range required {
		if k := slices.Index(keyFields, name); k >= 0 && keyIdx[k] >= 0 {
			continue
		}
		if slices.ContainsFunc(attrs, func(a attr) bool { return a.name == name }) {
			continue
		}
		return core.Table{}, &core.SchemaMismatchError{
			Source:   fmt.Sprintf("%s [%s]", file, sh.Name),
			Expected: slices.Clone(keyFields),
			Found:    sh.Header,
		}
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	field := func(row []string, name string, i int) string {
		v := cell(row, i)
		if fn := normalize[name]; fn != nil {
			v = fn(v)
		}
		return v
	}
	unknown := 0
	for _, row := range sh.Rows {
		if isBlank(row) {
			continue
		}
		rec := core.Record{
			Key:    make(core.Key, len(keyFields)),
			Attrs:  make(map[string]string, len(attrs)),
			Status: make(map[core.UnitCode]core.Status, len(units)),
			Task:   core.Task(cell(row, task)),
		}
		for k, i := range keyIdx {
			rec.Key[k] = field(row, keyFields[k], i)
		}
		for _, a := range attrs {
			rec.Attrs[a.name] = field(row, a.name, a.i)
		}
		for i, u := range units {
			st, err := core.ParseStatus(cell(row, i))
			if err != nil {
				unknown++
			}
			rec.Status[u] = st
		}
		t.Records = append(t.Records, rec)
	}
	if unknown > 0 {
		fmt.Fprintf(lineWriter{console}, "%d status cells of %s in %s are unknown, kept as %q",
			unknown, sh.Name, file, core.Anomalous.Symbol())
	}
	return t, nil
}

// WriteFollowUp saves a follow-up workbook: the tables in order, the carried
// sheets, then the author roster.
func (s *Store) WriteFollowUp(ctx context.Context, path string, book core.FollowUpBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var sheets []core.Sheet
	for _, st := range book.Tables {
		sheets = append(sheets, followUpLayout(st.Table.Kind).sheet(st.Sheet, st.Table))
	}
	sheets = append(sheets, book.Carried...)
	if book.Authors != nil {
		sheets = append(sheets, authorsSheet(*book.Authors))
	}
	return writeSheets(path, sheets)
}

// authorsSheet lists the authors of each discipline in its own column.
func authorsSheet(a core.Authors) core.Sheet {
	lists := [][]string{a.IPC, a.SRM, a.ILLU}
	sh := core.Sheet{
		Name:   schema.SheetAuthors,
		Header: []string{core.DisciplineIPC, core.DisciplineSRM, core.DisciplineILLU},
	}
	n := 0
	for _, l := range lists {
		n = max(n, len(l))
	}
	for r := range n {
		row := make([]string, len(lists))
		for c, l := range lists {
			if r < len(l) {
				row[c] = l[r]
			}
		}
		sh.Rows = append(sh.Rows, row)
	}
	return sh
}

// WriteNCReport saves the nonconformity list with every unit and with the
// current units only.
func (s *Store) WriteNCReport(ctx context.Context, path string, report core.NCReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := ncReportLayout()
	return writeSheets(path, []core.Sheet{
		l.sheet(schema.SheetAllNCs, report.All),
		l.sheet(schema.SheetCurrentNCs, report.Current),
	})
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
