package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/followup/internal/schema"
)

// UnitSource is everything read from one unit's MDL workbook.
type UnitSource struct {
	Column Column
	Path   string
	// Sets holds one record set per table kind read.
	Sets map[string]RecordSet
}

// SheetTable is a table written to a named sheet.
type SheetTable struct {
	Sheet string
	Table Table
}

// FollowUpBook is the content of a follow-up workbook.
type FollowUpBook struct {
	// Tables are written in order, each to its own sheet.
	Tables []SheetTable
	// Carried sheets are copied through unchanged.
	Carried []Sheet
	// Authors, when set, is written to the Authors sheet.
	Authors *Authors
}

// Manuals returns the follow-up tables of the book's manual sheets, in order.
func (b FollowUpBook) Manuals() []SheetTable {
	var out []SheetTable
	for _, st := range b.Tables {
		if _, ok := ManualForSheet(st.Sheet); ok {
			out = append(out, st)
		}
	}
	return out
}

// NCReport is the content of the nonconformity list workbook.
type NCReport struct {
	All     Table
	Current Table
}

// Workbooks reads and writes the workbook files of a run.
type Workbooks interface {
	// ReadUnits reads the given kinds from every MDL workbook under dir,
	// ordered by filename.
	ReadUnits(ctx context.Context, dir string, kinds []TableDefinition, console Console) ([]UnitSource, error)
	ReadReference(ctx context.Context, path string, console Console) (ReferenceDB, error)
	WriteReference(ctx context.Context, path string, db ReferenceDB) error
	// ReadSheets returns the raw sheets of a workbook.
	ReadSheets(ctx context.Context, path string) ([]Sheet, error)
	ReadFollowUp(ctx context.Context, path string, console Console) (FollowUpBook, error)
	WriteFollowUp(ctx context.Context, path string, book FollowUpBook) error
	WriteNCReport(ctx context.Context, path string, report NCReport) error
}

// ConfigSource loads the fleet partitions and the author roster.
type ConfigSource interface {
	LoadFleet(path string) (Fleet, error)
	LoadAuthors(path string) (Authors, error)
}

// Default output names.
const (
	DefaultReferenceOutput = "NEW_PSEUDODATABASE.xlsx"
	DefaultInitialOutput   = "Follow-up_Initial.xlsx"
	DefaultTemporaryOutput = "EFW Follow-up New-Temporary.xlsx"
	InitialSheet           = "Follow-up Initial"
)

// RunRequest names the inputs and outputs of one step.
type RunRequest struct {
	Step Step `json:"step"`

	FleetPath      string `json:"fleet,omitempty"`
	AuthorsPath    string `json:"authors,omitempty"`
	MDLDir         string `json:"mdlDir,omitempty"`
	PreviousMDLDir string `json:"previousMdlDir,omitempty"`
	ReferencePath  string `json:"reference,omitempty"`
	FollowUpPath   string `json:"followUp,omitempty"`
	OldFollowUp    string `json:"oldFollowUp,omitempty"`
	NewFollowUp    string `json:"newFollowUp,omitempty"`

	// OutputDir receives outputs with default names; empty means the
	// working directory.
	OutputDir  string `json:"outputDir,omitempty"`
	OutputPath string `json:"output,omitempty"`
	Revision   string `json:"revision,omitempty"`
}

// StepInfo describes a step for listings.
type StepInfo struct {
	Step   Step     `json:"step"`
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
}

var steps = []StepInfo{
	{StepConvertFollowUp, "convert-follow-up", []string{"followUp"}},
	{StepMergeReference, "merge-reference", []string{"followUp", "reference"}},
	{StepCrossCheck, "cross-check", []string{"fleet", "mdlDir", "reference"}},
	{StepBuild, "build", []string{"fleet", "authors?", "mdlDir", "reference", "revision?"}},
	{StepBuildTemporary, "build-temporary", []string{"fleet", "mdlDir", "reference"}},
	{StepUpdateFollowUp, "update", []string{"fleet", "authors", "oldFollowUp", "newFollowUp"}},
	{StepNonconformityList, "nc-report", []string{"fleet", "mdlDir", "previousMdlDir", "revision?"}},
}

// Steps lists the available steps in order.
func Steps() []StepInfo {
	return slices.Clone(steps)
}

// Name returns the step's short name.
func (s Step) Name() string {
	for _, info := range steps {
		if info.Step == s {
			return info.Name
		}
	}
	return fmt.Sprintf("step-%d", int(s))
}

// ErrUnknownStep is returned for step numbers without a pipeline.
var ErrUnknownStep = errors.New("unknown step")

// Validate checks that every input the step needs is present.
func (r RunRequest) Validate() error {
	var errs []string
	need := func(v, msg string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, msg)
		}
	}

	switch r.Step {
	case StepConvertFollowUp:
		need(r.FollowUpPath, "give the follow-up first")
	case StepMergeReference:
		need(r.FollowUpPath, "give the latest follow-up first")
		need(r.ReferencePath, "give the latest reference database first")
	case StepCrossCheck, StepBuild, StepBuildTemporary:
		need(r.MDLDir, "give the latest MDL folder first")
		need(r.FleetPath, "give the latest fleet file first")
		need(r.ReferencePath, "give the latest reference database first")
	case StepUpdateFollowUp:
		need(r.FleetPath, "give the latest fleet file first")
		need(r.AuthorsPath, "give the latest authors file first")
		need(r.OldFollowUp, "give the old follow-up first")
		need(r.NewFollowUp, "give the new follow-up first")
	case StepNonconformityList:
		need(r.FleetPath, "give the latest fleet file first")
		need(r.MDLDir, "give the folder with the latest MDLs for all units first")
		need(r.PreviousMDLDir, "give the folder with the MDLs incorporated last time for the revision units first")
	default:
		return fmt.Errorf("%w: %d", ErrUnknownStep, int(r.Step))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid run request:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Outputs returns the paths the step writes to.
func (r RunRequest) Outputs() []string {
	inDir := func(name string) string {
		if r.OutputDir == "" {
			return name
		}
		return filepath.Join(r.OutputDir, name)
	}
	explicit := func(def string) string {
		if r.OutputPath != "" {
			return r.OutputPath
		}
		return def
	}

	switch r.Step {
	case StepConvertFollowUp:
		return []string{explicit(inDir(DefaultReferenceOutput))}
	case StepMergeReference:
		return []string{explicit(withSuffix(r.ReferencePath, "_merged"))}
	case StepCrossCheck:
		return []string{withSuffix(r.ReferencePath, "_for_CC"), inDir(DefaultInitialOutput)}
	case StepBuild:
		return []string{explicit(inDir(fmt.Sprintf("EFW Follow-up R%s.xlsx", revisionOr(r.Revision, "99"))))}
	case StepBuildTemporary:
		return []string{explicit(inDir(DefaultTemporaryOutput))}
	case StepUpdateFollowUp:
		return []string{explicit(withSuffix(r.OldFollowUp, "_FINAL"))}
	case StepNonconformityList:
		return []string{explicit(inDir(fmt.Sprintf("ALL_NCs_R%s.xlsx", revisionOr(r.Revision, "XX"))))}
	}
	return nil
}

func withSuffix(path, suffix string) string {
	return strings.TrimSuffix(path, ".xlsx") + suffix + ".xlsx"
}

func revisionOr(rev, def string) string {
	if rev = strings.TrimSpace(rev); rev != "" {
		return rev
	}
	return def
}

// Pipeline runs the steps of the tool against a workbook store.
type Pipeline struct {
	books   Workbooks
	configs ConfigSource
}

// NewPipeline creates a pipeline.
func NewPipeline(books Workbooks, configs ConfigSource) *Pipeline {
	return &Pipeline{books: books, configs: configs}
}

// Run executes one step synchronously. Console lines are emitted as the
// step progresses. Configuration and schema errors abort the step.
func (p *Pipeline) Run(ctx context.Context, req RunRequest, console Console) (RunResult, error) {
	if err := req.Validate(); err != nil {
		return RunResult{Step: req.Step}, err
	}
	res := RunResult{Step: req.Step, Outputs: req.Outputs()}

	var err error
	switch req.Step {
	case StepConvertFollowUp:
		err = p.convertFollowUp(ctx, req, &res, console)
	case StepMergeReference:
		err = p.mergeReference(ctx, req, &res, console)
	case StepCrossCheck:
		err = p.crossCheck(ctx, req, &res, console)
	case StepBuild, StepBuildTemporary:
		err = p.build(ctx, req, &res, console)
	case StepUpdateFollowUp:
		err = p.update(ctx, req, &res, console)
	case StepNonconformityList:
		err = p.ncReport(ctx, req, &res, console)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) referenceFromFollowUp(ctx context.Context, path string, console Console) (ReferenceDB, error) {
	sheets, err := p.books.ReadSheets(ctx, path)
	if err != nil {
		return ReferenceDB{}, fmt.Errorf("read follow-up: %w", err)
	}
	return ReferenceFromFollowUp(filepath.Base(path), sheets, console)
}

func (p *Pipeline) convertFollowUp(ctx context.Context, req RunRequest, res *RunResult, console Console) error {
	printf(console, "Converting Follow-up to PseudoDataBase format.")
	db, err := p.referenceFromFollowUp(ctx, req.FollowUpPath, console)
	if err != nil {
		return err
	}

	printf(console, "Saving New PseudoDataBase.")
	if err := p.books.WriteReference(ctx, res.Outputs[0], db); err != nil {
		return fmt.Errorf("write reference database: %w", err)
	}
	res.Reference = &db
	res.Stats.Records = db.Len()

	printf(console, "---> Finished.")
	return nil
}

func (p *Pipeline) mergeReference(ctx context.Context, req RunRequest, res *RunResult, console Console) error {
	printf(console, "Converting Latest Follow-up to PseudoDataBase format.")
	latest, err := p.referenceFromFollowUp(ctx, req.FollowUpPath, console)
	if err != nil {
		return err
	}

	printf(console, "Reading Latest PseudoDataBase.")
	existing, err := p.books.ReadReference(ctx, req.ReferencePath, console)
	if err != nil {
		return fmt.Errorf("read reference database: %w", err)
	}

	printf(console, "Merging PseudoDataBases.")
	merged := MergeReferenceDBs(latest, existing)

	printf(console, "Saving New PseudoDataBase.")
	if err := p.books.WriteReference(ctx, res.Outputs[0], merged); err != nil {
		return fmt.Errorf("write reference database: %w", err)
	}
	res.Reference = &merged
	res.Stats.Records = merged.Len()

	printf(console, "---> Finished.")
	return nil
}

// loadUnits reads the fleet file and the MDLs and checks that they agree.
func (p *Pipeline) loadUnits(ctx context.Context, req RunRequest, kinds []string, readMsg string, console Console) (Fleet, []UnitSource, error) {
	printf(console, "Reading JSON file with MSNs.")
	fleet, err := p.configs.LoadFleet(req.FleetPath)
	if err != nil {
		return Fleet{}, nil, fmt.Errorf("load fleet: %w", err)
	}

	defs := make([]TableDefinition, len(kinds))
	for i, k := range kinds {
		defs[i] = MustGet(k)
	}

	printf(console, "%s", readMsg)
	units, err := p.books.ReadUnits(ctx, req.MDLDir, defs, console)
	if err != nil {
		return Fleet{}, nil, fmt.Errorf("read MDLs: %w", err)
	}
	return fleet, units, nil
}

func checkUnits(fleet Fleet, units []UnitSource) error {
	found := make([]UnitCode, len(units))
	for i, u := range units {
		found[i] = u.Column.Unit
	}
	return CheckPartitions(fleet, found)
}

// mergeKind merges one kind across units, restricted to the current units
// when the kind asks for it.
func mergeKind(kind string, units []UnitSource, current UnitSet, console Console) Table {
	def := MustGet(kind)
	var sets []RecordSet
	for _, u := range units {
		if def.Info.CurrentOnly && !current.Has(u.Column.Unit) {
			continue
		}
		set, ok := u.Sets[kind]
		if !ok {
			set = RecordSet{Kind: kind, Column: u.Column}
		}
		sets = append(sets, set)
	}
	return Merge(def, sets, console)
}

func (p *Pipeline) crossCheck(ctx context.Context, req RunRequest, res *RunResult, console Console) error {
	fleet, units, err := p.loadUnits(ctx, req, []string{KindFollowUpInitial}, "Reading current MDLs.", console)
	if err != nil {
		return err
	}

	printf(console, "Reading PseudoDataBase.")
	db, err := p.books.ReadReference(ctx, req.ReferencePath, console)
	if err != nil {
		return fmt.Errorf("read reference database: %w", err)
	}

	if err := checkUnits(fleet, units); err != nil {
		return err
	}
	current := NewUnitSet(fleet.Current()...)

	printf(console, "Merging Initial Follow-Up.")
	initial := mergeKind(KindFollowUpInitial, units, current, console)

	printf(console, "Saving new PseudoDataBase.")
	synced, added := SyncReference(initial, db, console)
	if err := p.books.WriteReference(ctx, res.Outputs[0], synced); err != nil {
		return fmt.Errorf("write reference database: %w", err)
	}

	printf(console, "Saving Initial Follow-up.")
	initial = AddEffectivity(initial, PolicyStandard, nil, true)
	initial = AddTask(initial, fleet.Revision())
	book := FollowUpBook{Tables: []SheetTable{{Sheet: InitialSheet, Table: initial}}}
	if err := p.books.WriteFollowUp(ctx, res.Outputs[1], book); err != nil {
		return fmt.Errorf("write initial follow-up: %w", err)
	}

	res.Reference = &synced
	res.Stats = RunStats{Units: len(units), Records: initial.Len(), NewReferenceKey: added}

	printf(console, "---> Finished.")
	printf(console, "> Categorize new Part Numbers (TBDs) that were added to the PseudoDataBase using %q, and then continue.",
		filepath.Base(res.Outputs[1]))
	return nil
}

func (p *Pipeline) build(ctx context.Context, req RunRequest, res *RunResult, console Console) error {
	final := req.Step == StepBuild

	printf(console, "Reading JSON file with MSNs.")
	fleet, err := p.configs.LoadFleet(req.FleetPath)
	if err != nil {
		return fmt.Errorf("load fleet: %w", err)
	}

	var authors *Authors
	if final && req.AuthorsPath != "" {
		printf(console, "Reading JSON file with Authors.")
		a, err := p.configs.LoadAuthors(req.AuthorsPath)
		if err != nil {
			return fmt.Errorf("load authors: %w", err)
		}
		authors = &a
	}

	printf(console, "Reading all MDLs.")
	defs := []TableDefinition{MustGet(KindFollowUpInitial), MustGet(KindDSOL), MustGet(KindPS), MustGet(KindNC)}
	units, err := p.books.ReadUnits(ctx, req.MDLDir, defs, console)
	if err != nil {
		return fmt.Errorf("read MDLs: %w", err)
	}

	printf(console, "Reading PseudoDataBase after human Cross Check.")
	db, err := p.books.ReadReference(ctx, req.ReferencePath, console)
	if err != nil {
		return fmt.Errorf("read reference database: %w", err)
	}

	if err := checkUnits(fleet, units); err != nil {
		return err
	}
	current := NewUnitSet(fleet.Current()...)
	revision := fleet.Revision()

	printf(console, "Merging Initial Follow-Up")
	initial := mergeKind(KindFollowUpInitial, units, current, console)
	printf(console, "Merging DSOL")
	dsol := mergeKind(KindDSOL, units, current, console)
	printf(console, "Merging PS")
	ps := mergeKind(KindPS, units, current, console)
	printf(console, "Merging NC")
	nc := mergeKind(KindNC, units, current, console)

	printf(console, "Generating new lines and splitting Follow-Up into IPC and SRM.")
	ipc, srmA321, srmA320 := GenerateLines(initial, db, fleet.CurrentA320(), console)

	printf(console, "Adding effectivity and additional columns to \"IPC\", \"SRM\", \"DSOL\", \"PS\" and \"NC\"")
	followUp := func(t Table) Table {
		return AddTask(AddEffectivity(t, PolicyStandard, nil, true), revision)
	}
	book := FollowUpBook{Authors: authors}
	book.Tables = append(book.Tables,
		SheetTable{Sheet: ManualIPC.Sheet(), Table: followUp(ipc)},
		SheetTable{Sheet: ManualSRMA321.Sheet(), Table: followUp(srmA321)},
	)
	if srmA320 != nil {
		book.Tables = append(book.Tables, SheetTable{Sheet: ManualSRMA320.Sheet(), Table: followUp(*srmA320)})
	}
	book.Tables = append(book.Tables,
		SheetTable{Sheet: schema.SheetDSOL, Table: AddEffectivity(dsol, PolicyStandard, nil, true)},
		SheetTable{Sheet: schema.SheetPS, Table: SortStructureByChild(AddEffectivity(ps, PolicyStandard, nil, true))},
		SheetTable{Sheet: schema.SheetNC, Table: AddEffectivity(nc, PolicyRevisionAware, revision, true)},
	)

	printf(console, "Saving final Follow-up.")
	if err := p.books.WriteFollowUp(ctx, res.Outputs[0], book); err != nil {
		return fmt.Errorf("write follow-up: %w", err)
	}

	res.Stats.Units = len(units)
	for _, st := range book.Manuals() {
		res.Stats.Records += st.Table.Len()
		res.Stats.FlaggedRecords += CountFlagged(st.Table)
	}

	printf(console, "---> Finished.")
	if final {
		printf(console, "> Be careful with cell ranges if you manually add drop down lists.")
		printf(console, "> Manually set formatting of dates to DD/MM/YYYY.")
		printf(console, "> Manually add any other Sheets.")
	} else {
		printf(console, "> Do not change anything inside the TEMPORARY Follow-up.")
		printf(console, "> Just use it for the next step.")
	}
	return nil
}

func (p *Pipeline) update(ctx context.Context, req RunRequest, res *RunResult, console Console) error {
	printf(console, "Reading JSON file with MSNs.")
	fleet, err := p.configs.LoadFleet(req.FleetPath)
	if err != nil {
		return fmt.Errorf("load fleet: %w", err)
	}

	printf(console, "Reading JSON file with Authors.")
	authors, err := p.configs.LoadAuthors(req.AuthorsPath)
	if err != nil {
		return fmt.Errorf("load authors: %w", err)
	}

	printf(console, "Reading Old and New Follow-up.")
	oldBook, err := p.books.ReadFollowUp(ctx, req.OldFollowUp, console)
	if err != nil {
		return fmt.Errorf("read old follow-up: %w", err)
	}
	newBook, err := p.books.ReadFollowUp(ctx, req.NewFollowUp, console)
	if err != nil {
		return fmt.Errorf("read new follow-up: %w", err)
	}

	oldManuals, newManuals := oldBook.Manuals(), newBook.Manuals()
	if !slices.EqualFunc(oldManuals, newManuals, func(a, b SheetTable) bool { return a.Sheet == b.Sheet }) {
		return ErrSheetSetMismatch
	}
	if len(oldManuals) == 0 {
		return ErrNoFollowUpSheets
	}

	out := FollowUpBook{Authors: &authors, Carried: newBook.Carried}
	for i, old := range oldManuals {
		printf(console, "Merging %s", old.Sheet)
		t, err := UpdateFollowUp(old.Table, newManuals[i].Table, fleet.Revision(), console)
		if err != nil {
			return fmt.Errorf("%s: %w", old.Sheet, err)
		}
		out.Tables = append(out.Tables, SheetTable{Sheet: old.Sheet, Table: t})
		res.Stats.Records += t.Len()
		res.Stats.FlaggedRecords += CountFlagged(t)
	}

	printf(console, "Reading PS, DSOL, NC from New Follow-up")
	for _, name := range []string{schema.SheetDSOL, schema.SheetPS, schema.SheetNC} {
		if !slices.ContainsFunc(newBook.Carried, func(s Sheet) bool { return s.Name == name }) {
			printf(console, "File %s is missing sheet: %q", filepath.Base(req.NewFollowUp), name)
		}
	}

	printf(console, "Saving final Follow-up.")
	if err := p.books.WriteFollowUp(ctx, res.Outputs[0], out); err != nil {
		return fmt.Errorf("write follow-up: %w", err)
	}

	printf(console, "---> Finished.")
	printf(console, "> Be careful with cell ranges if you manually add drop down lists.")
	printf(console, "> Manually set formatting of dates to DD/MM/YYYY.")
	printf(console, "> Manually add any other Sheets.")
	printf(console, "> Use %q columns at the far right to manually colour the cells.", "MSN"+schema.ChangeSuffix)
	return nil
}

func (p *Pipeline) ncReport(ctx context.Context, req RunRequest, res *RunResult, console Console) error {
	fleet, latest, err := p.loadUnits(ctx, req, []string{KindNC}, "Reading latest MDLs.", console)
	if err != nil {
		return err
	}
	if err := checkUnits(fleet, latest); err != nil {
		return err
	}

	printf(console, "Reading previous MDLs of the 90-day revision units.")
	previous, err := p.books.ReadUnits(ctx, req.PreviousMDLDir, []TableDefinition{MustGet(KindNC)}, console)
	if err != nil {
		return fmt.Errorf("read previous MDLs: %w", err)
	}
	prevByUnit := make(map[UnitCode]UnitSource, len(previous))
	prevUnits := make([]UnitCode, len(previous))
	for i, u := range previous {
		prevByUnit[u.Column.Unit] = u
		prevUnits[i] = u.Column.Unit
	}
	var missing []UnitCode
	for _, u := range fleet.Rev {
		if _, ok := prevByUnit[u]; !ok {
			missing = append(missing, u)
		}
	}
	if dup := duplicateUnits(prevUnits); len(missing) > 0 || len(dup) > 0 {
		return &PartitionMismatchError{MissingSources: missing, Duplicate: dup}
	}

	printf(console, "Updating 90-day revision units.")
	revision := fleet.Revision()
	sets := make([]RecordSet, 0, len(latest))
	for _, u := range latest {
		set := u.Sets[KindNC]
		set.Kind, set.Column = KindNC, u.Column
		if revision.Has(u.Column.Unit) {
			prev := prevByUnit[u.Column.Unit]
			old := prev.Sets[KindNC]
			old.Kind, old.Column = KindNC, prev.Column
			set = ReviseNonconformities(old, set, console)
		}
		sets = append(sets, set)
	}

	printf(console, "Merging NC")
	all := Merge(MustGet(KindNC), sets, console)
	all = AddEffectivity(all, PolicyRevisionAware, revision, false)
	report := NCReport{
		All:     all,
		Current: AddEffectivity(CurrentView(all, NewUnitSet(fleet.Current()...)), PolicyRevisionAware, revision, false),
	}

	printf(console, "Saving NC lists.")
	if err := p.books.WriteNCReport(ctx, res.Outputs[0], report); err != nil {
		return fmt.Errorf("write NC report: %w", err)
	}
	res.Stats = RunStats{Units: len(latest), Records: all.Len(), FlaggedRecords: CountFlagged(all)}

	printf(console, "---> Finished.")
	return nil
}
