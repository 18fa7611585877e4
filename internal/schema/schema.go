// Package schema holds the fixed sheet names and column headers of the MDL
// sources, the follow-up workbooks and the reference database.
package schema

// Sheets of an MDL source workbook.
const (
	SheetPartList        = "Applicable Part List"
	SheetStructure       = "Product Structure"
	SheetNonconformities = "Nonconformities"
)

// Sheets of a follow-up workbook.
const (
	SheetIPC       = "IPC Follow-up"
	SheetSRMA321   = "SRM A321 Follow-up"
	SheetSRMLegacy = "SRM Follow-up" // older follow-ups had a single SRM sheet
	SheetSRMA320   = "SRM A320 Follow-up"
	SheetDSOL      = "DSOL"
	SheetPS        = "PS"
	SheetNC        = "NC"
	SheetAuthors   = "Authors"

	SheetReference = "Pseudo_Data_Base"

	SheetAllNCs     = "All NCs"
	SheetCurrentNCs = "Current NCs"
)

// FollowUpSuffix is appended to a manual name to form its sheet name.
const FollowUpSuffix = " Follow-up"

// MDL column headers.
const (
	PartNumber = "PART NUMBER"
	PartTitle  = "PART TITLE"
	Qty        = "QTY"
	PartType   = "PART TYPE"
	PartIssue  = "PART ISSUE"
	Diff       = "DIFF"

	ParentNumber = "PARENT NUMBER"
	Level        = "LEVEL"
	ChildNumber  = "CHILD NUMBER"
	ChildTitle   = "CHILD TITLE"

	Number   = "NUMBER"
	Issue    = "ISSUE"
	NCNumber = "NC NUMBER"
	NCIssue  = "NC ISSUE"
	NCTitle  = "NC TITLE"
)

// Follow-up and reference database headers.
const (
	CSN      = "CSN"
	Fig      = "Fig"
	Type     = "Type"
	BOMParts = "BOM Parts"
	Title    = "TITLE" // legacy name of PART TITLE

	IPC     = "IPC"
	SRMA321 = "SRM A321"
	SRMA320 = "SRM A320"

	Task              = "TASK"
	EffectivityChange = "Effectivity Change"
	ChangeSuffix      = " Change"
)

// Effectivity column names per table kind.
const (
	PartNumberEffectivity = "Part Number Effectivity"
	Effectivity           = "Effectivity"
	ChildEffectivity      = "Effectivity of the CHILD"
)

// ReferenceColumns is the fixed schema of the reference database.
var ReferenceColumns = []string{PartNumber, CSN, Fig, Type, BOMParts, PartTitle, IPC, SRMA321, SRMA320}

// FollowUpWorkColumns are the columns authors fill in on a follow-up sheet.
var FollowUpWorkColumns = []string{
	"Author", "Start Date", "Status", "Time (minutes)",
	"Author CC", "CC Time (minutes)", "Comments", "IPC CSN",
}

// NCWorkColumns are the review columns of the NC sheet.
var NCWorkColumns = []string{"Author Check", "Initial Status", "Author Comment"}
