package core

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/JonMunkholm/followup/internal/schema"
)

// Manual is one of the books a follow-up line can be written for.
type Manual string

const (
	ManualIPC     Manual = schema.IPC
	ManualSRMA321 Manual = schema.SRMA321
	ManualSRMA320 Manual = schema.SRMA320
)

// Manuals lists the books in sheet order.
var Manuals = []Manual{ManualIPC, ManualSRMA321, ManualSRMA320}

// Sheet returns the follow-up sheet name of the manual.
func (m Manual) Sheet() string {
	return string(m) + schema.FollowUpSuffix
}

// ManualForSheet maps a follow-up sheet name to its manual. The single SRM
// sheet of older follow-ups maps to SRM A321.
func ManualForSheet(sheet string) (Manual, bool) {
	if sheet == schema.SheetSRMLegacy {
		return ManualSRMA321, true
	}
	for _, m := range Manuals {
		if m.Sheet() == sheet {
			return m, true
		}
	}
	return "", false
}

// Flag is the tri-state book flag of a reference entry.
type Flag uint8

const (
	FlagTBD Flag = iota
	FlagTrue
	FlagFalse
)

// ParseFlag reads a book flag cell. ok is false for empty or unknown values,
// which are read as TBD.
func ParseFlag(s string) (f Flag, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "1":
		return FlagTrue, true
	case "FALSE", "0":
		return FlagFalse, true
	case "TBD":
		return FlagTBD, true
	}
	return FlagTBD, false
}

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "TRUE"
	case FlagFalse:
		return "FALSE"
	}
	return "TBD"
}

// MarshalText renders the flag as in the workbook.
func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Included reports whether lines go to the book. TBD counts as included so
// nothing is lost before a human classifies the entry.
func (f Flag) Included() bool {
	return f != FlagFalse
}

func flagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// sortRank puts TRUE before TBD before FALSE.
func (f Flag) sortRank() int {
	switch f {
	case FlagTrue:
		return 0
	case FlagTBD:
		return 1
	}
	return 2
}

// Placeholder marks a reference field waiting for a human.
const Placeholder = "TBD"

// Figure types of a reference entry.
const (
	TypeEFW = "EFW"
	TypeAIB = "AIB"
	TypeTBD = Placeholder
)

func validType(t string) bool {
	return t == TypeEFW || t == TypeAIB || t == TypeTBD
}

// RefEntry is one line of the reference database.
type RefEntry struct {
	PartNumber string `json:"partNumber"`
	CSN        string `json:"csn"`
	Fig        string `json:"fig"`
	Type       string `json:"type"`
	BOMParts   string `json:"bomParts"`
	Title      string `json:"title"`
	IPC        Flag   `json:"ipc"`
	SRMA321    Flag   `json:"srmA321"`
	SRMA320    Flag   `json:"srmA320"`
}

// Flag returns the entry's flag for a manual.
func (e RefEntry) Flag(m Manual) Flag {
	switch m {
	case ManualIPC:
		return e.IPC
	case ManualSRMA321:
		return e.SRMA321
	case ManualSRMA320:
		return e.SRMA320
	}
	return FlagFalse
}

// Pending reports whether the entry still needs a human classification.
func (e RefEntry) Pending() bool {
	return e.Type == TypeTBD || e.IPC == FlagTBD || e.SRMA321 == FlagTBD || e.SRMA320 == FlagTBD
}

// Values returns the cells in schema.ReferenceColumns order.
func (e RefEntry) Values() []string {
	return []string{e.PartNumber, e.CSN, e.Fig, e.Type, e.BOMParts, e.Title,
		e.IPC.String(), e.SRMA321.String(), e.SRMA320.String()}
}

func (e RefEntry) lineKey() [4]string {
	return [4]string{e.PartNumber, e.CSN, e.Fig, e.Type}
}

func (e RefEntry) descriptive() []string {
	return []string{e.PartNumber, e.CSN, e.Fig, e.Type, e.BOMParts, e.Title}
}

// ReferenceDB is the master classification of part numbers into books,
// maintained across revisions. Entry order is significant: new entries are
// appended at the end for a human to classify.
type ReferenceDB struct {
	Source  string
	Entries []RefEntry
}

// Len returns the number of entries.
func (db ReferenceDB) Len() int {
	return len(db.Entries)
}

// Pending returns the entries still waiting for classification.
func (db ReferenceDB) Pending() []RefEntry {
	var out []RefEntry
	for _, e := range db.Entries {
		if e.Pending() {
			out = append(out, e)
		}
	}
	return out
}

// Rows returns the entries as cells in schema.ReferenceColumns order.
func (db ReferenceDB) Rows() [][]string {
	rows := make([][]string, len(db.Entries))
	for i, e := range db.Entries {
		rows[i] = e.Values()
	}
	return rows
}

// ParseReferenceDB builds a reference database from the header and rows of
// its sheet. The header must hold exactly the columns of
// schema.ReferenceColumns, in any order. Unknown book flags are read as TBD
// and unknown types as TBD, each reported once on the console.
func ParseReferenceDB(source string, header []string, rows [][]string, console Console) (ReferenceDB, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	if len(idx) != len(schema.ReferenceColumns) || !allPresent(idx, schema.ReferenceColumns) {
		return ReferenceDB{}, &SchemaMismatchError{
			Source:   source,
			Expected: slices.Clone(schema.ReferenceColumns),
			Found:    slices.Clone(header),
		}
	}

	cell := func(row []string, col string) string {
		i := idx[col]
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	db := ReferenceDB{Source: source}
	var badFlags, badTypes bool
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		e := RefEntry{
			PartNumber: cell(row, schema.PartNumber),
			CSN:        cell(row, schema.CSN),
			Fig:        cell(row, schema.Fig),
			Type:       cell(row, schema.Type),
			BOMParts:   cell(row, schema.BOMParts),
			Title:      cell(row, schema.PartTitle),
		}
		for _, b := range []struct {
			col string
			dst *Flag
		}{{schema.IPC, &e.IPC}, {schema.SRMA321, &e.SRMA321}, {schema.SRMA320, &e.SRMA320}} {
			f, ok := ParseFlag(cell(row, b.col))
			if !ok || f == FlagTBD {
				badFlags = true
			}
			*b.dst = f
		}
		if !validType(e.Type) {
			badTypes = true
			e.Type = TypeTBD
		}
		db.Entries = append(db.Entries, e)
	}

	if n := len(db.Entries); n > 0 {
		db.Entries = dedupeEntries(db.Entries)
		if dropped := n - len(db.Entries); dropped > 0 {
			printf(console, "%d duplicate lines found inside: %s. Only the first of each was kept", dropped, source)
		}
	}
	if badFlags {
		printf(console, "TBDs or wrong values found at columns %q/%q/%q inside: %s. Will be parsed as \"TRUE\"",
			schema.IPC, schema.SRMA321, schema.SRMA320, source)
	}
	if badTypes {
		printf(console, "Empty or wrong values found at column %q inside: %s. Will be parsed as %q",
			schema.Type, source, TypeTBD)
	}
	return db, nil
}

// SyncReference appends the part numbers of the initial follow-up table that
// the reference database does not know yet. New entries are provisional (all
// classification fields TBD), sorted by part number and placed after the
// existing entries, which are never changed or removed. It returns the new
// database and the number of entries added.
func SyncReference(initial Table, db ReferenceDB, console Console) (ReferenceDB, int) {
	known := make(map[string]bool, len(db.Entries))
	for _, e := range db.Entries {
		known[e.PartNumber] = true
	}

	var added []RefEntry
	for _, rec := range initial.Records {
		pn := initial.Field(rec, schema.PartNumber)
		if known[pn] {
			continue
		}
		known[pn] = true
		added = append(added, RefEntry{
			PartNumber: pn,
			CSN:        Placeholder,
			Fig:        Placeholder,
			Type:       TypeTBD,
			Title:      rec.Attr(schema.PartTitle),
			IPC:        FlagTBD,
			SRMA321:    FlagTBD,
			SRMA320:    FlagTBD,
		})
	}

	out := ReferenceDB{Source: db.Source, Entries: slices.Clone(db.Entries)}
	if len(added) == 0 {
		printf(console, "No new part numbers were found. You can proceed.")
		return out, 0
	}

	slices.SortStableFunc(added, func(a, b RefEntry) int { return cmp.Compare(a.PartNumber, b.PartNumber) })
	out.Entries = append(out.Entries, added...)
	printf(console, "%d new part numbers were added at the bottom of the reference database.", len(added))
	printf(console, "Before proceeding, please sort them to the correct manual: %s, %s, %s",
		ManualIPC, ManualSRMA321, ManualSRMA320)
	return out, len(added)
}

// MergeReferenceDBs unions several reference databases. Entries are sorted by
// their descriptive fields with TRUE flags first, and only the first entry per
// part number, CSN, figure and type is kept, so a TRUE flag from any input wins.
func MergeReferenceDBs(dbs ...ReferenceDB) ReferenceDB {
	var all []RefEntry
	for _, db := range dbs {
		all = append(all, db.Entries...)
	}
	sortEntries(all)
	return ReferenceDB{Entries: dedupeEntries(all)}
}

func sortEntries(entries []RefEntry) {
	slices.SortStableFunc(entries, func(a, b RefEntry) int {
		if c := slices.Compare(a.descriptive(), b.descriptive()); c != 0 {
			return c
		}
		for _, m := range Manuals {
			if c := cmp.Compare(a.Flag(m).sortRank(), b.Flag(m).sortRank()); c != 0 {
				return c
			}
		}
		return 0
	})
}

func dedupeEntries(sorted []RefEntry) []RefEntry {
	seen := make(map[[4]string]bool, len(sorted))
	out := sorted[:0:0]
	for _, e := range sorted {
		k := e.lineKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// Sheet is the raw content of one worksheet.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// followUpSheetWidth limits follow-up sheets to their first 16 columns; later
// columns hold unrelated notes.
const followUpSheetWidth = 16

var (
	efwFigure      = regexp.MustCompile(`^\d+[S-Z]$`)
	aibLegacyFig   = regexp.MustCompile(`^\d+[A-R]$`)
	aibLetteredFig = regexp.MustCompile(`^\d+[A-Z]$`)
)

// ReferenceFromFollowUp converts the manual sheets of a follow-up workbook
// into reference entries. Lines found on several sheets are combined with
// the flags of every sheet they appear on. Follow-ups without a Type column
// get the type inferred from the figure: figures ending S to Z are EFW, the
// rest AIB.
func ReferenceFromFollowUp(source string, sheets []Sheet, console Console) (ReferenceDB, error) {
	possible := []string{schema.SheetIPC, schema.SheetSRMA321, schema.SheetSRMLegacy, schema.SheetSRMA320}
	byName := make(map[string]Sheet, len(sheets))
	for _, s := range sheets {
		byName[s.Name] = s
	}

	var found []Sheet
	for _, name := range possible {
		s, ok := byName[name]
		if !ok {
			printf(console, "File %s is missing sheet: %q", source, name)
			continue
		}
		found = append(found, s)
	}
	if len(found) == 0 {
		return ReferenceDB{}, fmt.Errorf("%s: %w: %s", source, ErrNoFollowUpSheets, strings.Join(possible, ", "))
	}

	type line struct {
		entry RefEntry
		books map[Manual]bool
	}
	var order [][6]string
	lines := make(map[[6]string]*line)
	missingType := false

	for _, s := range found {
		manual, _ := ManualForSheet(s.Name)
		header := s.Header
		if len(header) > followUpSheetWidth {
			header = header[:followUpSheetWidth]
		}
		idx := make(map[string]int, len(header))
		for i, h := range header {
			h = strings.TrimSpace(h)
			if h == schema.Title {
				h = schema.PartTitle
			}
			if _, dup := idx[h]; !dup {
				idx[h] = i
			}
		}
		if _, ok := idx[schema.Type]; !ok {
			missingType = true
		}
		cell := func(row []string, col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		for _, row := range s.Rows {
			if blankRow(row) {
				continue
			}
			e := RefEntry{
				PartNumber: cell(row, schema.PartNumber),
				CSN:        cell(row, schema.CSN),
				Fig:        cell(row, schema.Fig),
				Type:       cell(row, schema.Type),
				BOMParts:   cell(row, schema.BOMParts),
				Title:      cell(row, schema.PartTitle),
			}
			k := [6]string(e.descriptive())
			l, ok := lines[k]
			if !ok {
				l = &line{entry: e, books: make(map[Manual]bool)}
				lines[k] = l
				order = append(order, k)
			}
			l.books[manual] = true
		}
	}

	entries := make([]RefEntry, 0, len(order))
	for _, k := range order {
		l := lines[k]
		e := l.entry
		if e.CSN == "" {
			e.CSN = Placeholder
		}
		if e.Fig == "" {
			e.Fig = Placeholder
		}
		if missingType {
			e.Type = TypeAIB
			if efwFigure.MatchString(e.Fig) {
				e.Type = TypeEFW
			}
			if e.Type == TypeAIB && aibLegacyFig.MatchString(e.Fig) {
				e.Fig = e.Fig[:len(e.Fig)-1]
			}
		} else {
			if e.Type == TypeAIB && aibLetteredFig.MatchString(e.Fig) {
				e.Fig = e.Fig[:len(e.Fig)-1]
			}
			if !validType(e.Type) {
				e.Type = TypeTBD
			}
		}
		srm := l.books[ManualSRMA321] || l.books[ManualSRMA320]
		e.IPC = flagOf(l.books[ManualIPC])
		e.SRMA321 = flagOf(srm)
		e.SRMA320 = flagOf(srm)
		entries = append(entries, e)
	}

	sortEntries(entries)
	return ReferenceDB{Source: source, Entries: dedupeEntries(entries)}, nil
}

// GenerateLines expands the initial follow-up into one line per reference
// entry of each part number and splits the lines into the IPC, SRM A321 and
// SRM A320 follow-ups. The MDL title is kept when it differs from the
// reference title. A320 unit columns only appear on the SRM A320 follow-up,
// which is nil when there are no current A320 units.
func GenerateLines(initial Table, db ReferenceDB, a320 []UnitCode, console Console) (ipc, srmA321 Table, srmA320 *Table) {
	byPN := make(map[string][]RefEntry, len(db.Entries))
	for _, e := range db.Entries {
		byPN[e.PartNumber] = append(byPN[e.PartNumber], e)
	}

	base := Table{
		Kind:       KindFollowUp,
		KeyFields:  []string{schema.PartNumber, schema.CSN, schema.Fig, schema.Type},
		AttrFields: []string{schema.PartTitle},
		Columns:    slices.Clone(initial.Columns),
	}
	books := map[Manual]*Table{}
	for _, m := range Manuals {
		t := base.Clone()
		books[m] = &t
	}

	titleHeader := false
	for _, rec := range initial.Records {
		pn := initial.Field(rec, schema.PartNumber)
		title := rec.Attr(schema.PartTitle)

		entries, ok := byPN[pn]
		if !ok {
			printf(console, "PN: %s is missing from the reference database", pn)
			continue
		}
		for _, e := range entries {
			if e.Title != title {
				if !titleHeader {
					printf(console, "Some part numbers have a different title in the MDLs and in the reference database:")
					titleHeader = true
				}
				printf(console, "PN: %s \t MDL: %q \t PDB: %q", pn, title, e.Title)
			}
			line := rec.clone()
			line.Key = Key{pn, e.CSN, e.Fig, e.Type}
			line.Attrs = map[string]string{schema.PartTitle: title}
			line.Effectivity = ""
			line.Task = TaskNone
			for _, m := range Manuals {
				if e.Flag(m).Included() {
					t := books[m]
					t.Records = append(t.Records, line.clone())
				}
			}
		}
	}

	for _, t := range books {
		slices.SortStableFunc(t.Records, func(a, b Record) int {
			if c := a.Key.Compare(b.Key); c != 0 {
				return c
			}
			return cmp.Compare(a.Attr(schema.PartTitle), b.Attr(schema.PartTitle))
		})
	}

	isA320 := NewUnitSet(a320...)
	ipc = *books[ManualIPC]
	srmA321 = books[ManualSRMA321].WithColumns(func(u UnitCode) bool { return !isA320.Has(u) })
	if len(a320) > 0 {
		t := books[ManualSRMA320].WithColumns(isA320.Has)
		srmA320 = &t
	}
	return ipc, srmA321, srmA320
}

func allPresent(idx map[string]int, cols []string) bool {
	for _, c := range cols {
		if _, ok := idx[c]; !ok {
			return false
		}
	}
	return true
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
