package tables

import (
	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/schema"
)

func init() {
	registerFollowUp()
}

// The follow-up kind has no MDL sheet: its lines are generated from the
// initial follow-up and the reference database, and read back from
// follow-up workbooks for incremental updates.
func registerFollowUp() {
	attrs := append([]string{schema.PartTitle}, schema.FollowUpWorkColumns...)

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         core.KindFollowUp,
			Group:       "Follow-up",
			Label:       "Follow-up",
			KeyFields:   []string{schema.PartNumber, schema.CSN, schema.Fig, schema.Type},
			AttrFields:  attrs,
			Effectivity: core.EffectivityColumn{Name: schema.PartNumberEffectivity, Index: 5},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: schema.PartNumber, Required: true, Normalizer: Trim},
			{Name: schema.CSN, Normalizer: Trim},
			{Name: schema.Fig, Normalizer: Trim},
			{Name: schema.Type, Normalizer: Trim},
			{Name: schema.PartTitle, Normalizer: Trim},
		},
	})
}
