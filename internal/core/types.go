package core

import "time"

// FieldSpec defines one source column a table kind reads.
type FieldSpec struct {
	Name       string              // Column header name (must match the sheet exactly)
	Required   bool                // Column must exist in the sheet header
	Normalizer func(string) string // Optional transformation applied to every cell
}

// EffectivityPolicy decides which statuses count as active for a unit.
type EffectivityPolicy int

const (
	// PolicyStandard: New, Revised, Unchanged (and Anomalous, to keep it visible).
	PolicyStandard EffectivityPolicy = iota
	// PolicyRevisionAware additionally keeps Deleted active for units in the
	// revision set currently under 90-day revision (NC tables).
	PolicyRevisionAware
)

// EffectivityColumn positions the derived effectivity column in reports.
type EffectivityColumn struct {
	Name  string
	Index int
}

// TableInfo contains display and keying information about a table kind.
type TableInfo struct {
	Key         string   // Unique identifier: "dsol"
	Group       string   // Origin of the rows: "MDL", "Follow-up"
	Label       string   // Output sheet name: "DSOL"
	Sheet       string   // Source sheet in the MDL workbook, empty for derived kinds
	KeyFields   []string // Fields forming the unique key tuple
	AttrFields  []string // Descriptive fields carried through merges
	Columns     []string // Source header names, derived from FieldSpecs
	Effectivity EffectivityColumn
	Policy      EffectivityPolicy
	// CurrentOnly restricts the kind to units of the current revision (new + rev).
	CurrentOnly bool
}

// RowFilter decides whether a normalized source row is kept.
type RowFilter func(fields map[string]string) bool

// TableDefinition contains everything needed to read and merge a table kind.
type TableDefinition struct {
	Info       TableInfo
	FieldSpecs []FieldSpec
	Filter     RowFilter
	// StatusField is the source column holding the unit's status symbol.
	StatusField string
}

// NewTable returns an empty table shaped for this kind.
func (d TableDefinition) NewTable() Table {
	return Table{
		Kind:       d.Info.Key,
		KeyFields:  append([]string(nil), d.Info.KeyFields...),
		AttrFields: append([]string(nil), d.Info.AttrFields...),
	}
}

// Task is the value of the TASK column of a follow-up table.
type Task string

const (
	TaskNone       Task = ""
	TaskNewUnits   Task = "NEW MSNs"
	TaskRevisedOld Task = "REV OLD MSNs"
)

// Step identifies one orchestrated pipeline of the tool.
type Step int

const (
	StepConvertFollowUp   Step = 0
	StepMergeReference    Step = 1
	StepCrossCheck        Step = 2
	StepBuild             Step = 3
	StepBuildTemporary    Step = 7
	StepUpdateFollowUp    Step = 8
	StepNonconformityList Step = 9
)

// RunPhase indicates the current stage of a run.
type RunPhase string

const (
	PhaseQueued   RunPhase = "queued"
	PhaseRunning  RunPhase = "running"
	PhaseComplete RunPhase = "complete"
	PhaseFailed   RunPhase = "failed"
)

// RunProgress is the state of a run streamed to subscribers.
type RunProgress struct {
	RunID string   `json:"runId"`
	Step  Step     `json:"step"`
	Phase RunPhase `json:"phase"`
	Lines []string `json:"lines"`
	Error string   `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// RunResult contains the final result of a run.
type RunResult struct {
	RunID    string        `json:"runId"`
	Step     Step          `json:"step"`
	Outputs  []string      `json:"outputs"`
	Lines    []string      `json:"lines"`
	Stats    RunStats      `json:"stats"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Code     string        `json:"code,omitempty"`

	// Reference is the reference database the run produced, if any.
	Reference *ReferenceDB `json:"-"`
}

// RunStats counts what a run did, for metrics and history.
type RunStats struct {
	Units           int `json:"units"`
	Records         int `json:"records"`
	FlaggedRecords  int `json:"flaggedRecords"`
	NewReferenceKey int `json:"newReferenceKeys"`
}
