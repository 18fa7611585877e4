package tables

import (
	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/schema"
)

func init() {
	registerFollowUpInitial()
	registerDSOL()
	registerPS()
	registerNC()
}

func registerFollowUpInitial() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         core.KindFollowUpInitial,
			Group:       "MDL",
			Label:       "Follow-up Initial",
			Sheet:       schema.SheetPartList,
			KeyFields:   []string{schema.PartNumber},
			AttrFields:  []string{schema.PartTitle},
			Effectivity: core.EffectivityColumn{Name: schema.PartNumberEffectivity, Index: 2},
			CurrentOnly: true,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: schema.PartNumber, Required: true, Normalizer: Trim},
			{Name: schema.PartTitle, Required: true, Normalizer: Trim},
			{Name: schema.PartType, Required: true, Normalizer: Trim},
			{Name: schema.Diff, Required: true, Normalizer: Trim},
		},
		Filter:      keepFollowUpRow,
		StatusField: schema.Diff,
	})
}

func registerDSOL() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         core.KindDSOL,
			Group:       "MDL",
			Label:       schema.SheetDSOL,
			Sheet:       schema.SheetPartList,
			KeyFields:   []string{schema.PartNumber, schema.Qty, schema.PartType, schema.PartIssue},
			AttrFields:  []string{schema.PartTitle},
			Effectivity: core.EffectivityColumn{Name: schema.Effectivity, Index: 5},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: schema.PartNumber, Required: true, Normalizer: Trim},
			{Name: schema.PartTitle, Required: true, Normalizer: Trim},
			{Name: schema.Qty, Required: true, Normalizer: Trim},
			{Name: schema.PartType, Required: true, Normalizer: Trim},
			{Name: schema.PartIssue, Required: true, Normalizer: Trim},
			{Name: schema.Diff, Required: true, Normalizer: Trim},
		},
		StatusField: schema.Diff,
	})
}

func registerPS() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         core.KindPS,
			Group:       "MDL",
			Label:       schema.SheetPS,
			Sheet:       schema.SheetStructure,
			KeyFields:   []string{schema.ParentNumber, schema.Level, schema.ChildNumber},
			AttrFields:  []string{schema.ChildTitle},
			Effectivity: core.EffectivityColumn{Name: schema.ChildEffectivity, Index: 4},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: schema.ParentNumber, Required: true, Normalizer: Trim},
			{Name: schema.Level, Required: true, Normalizer: Trim},
			{Name: schema.ChildNumber, Required: true, Normalizer: Trim},
			{Name: schema.ChildTitle, Required: true, Normalizer: Trim},
			{Name: schema.Diff, Required: true, Normalizer: Trim},
		},
		Filter:      keepStructureRow,
		StatusField: schema.Diff,
	})
}

func registerNC() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         core.KindNC,
			Group:       "MDL",
			Label:       schema.SheetNC,
			Sheet:       schema.SheetNonconformities,
			KeyFields:   []string{schema.Number, schema.Issue, schema.NCNumber, schema.NCIssue},
			AttrFields:  []string{schema.NCTitle},
			Effectivity: core.EffectivityColumn{Name: schema.Effectivity, Index: 5},
			Policy:      core.PolicyRevisionAware,
			CurrentOnly: true,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: schema.Number, Required: true, Normalizer: Trim},
			{Name: schema.Issue, Required: true, Normalizer: Trim},
			{Name: schema.NCNumber, Required: true, Normalizer: Trim},
			{Name: schema.NCIssue, Required: true, Normalizer: Trim},
			{Name: schema.NCTitle, Required: true, Normalizer: Trim},
			{Name: schema.Diff, Required: true, Normalizer: Trim},
		},
		StatusField: schema.Diff,
	})
}
