// Package core provides the reconciliation logic for MDL follow-up tables.
//
// This package contains all domain logic independent of files, HTTP or
// storage. Workbooks and configuration files are reached through the
// [Workbooks] and [ConfigSource] ports, so the same pipelines run from the
// web service, the CLI, or tests with in-memory fakes.
//
// # Architecture
//
//   - Table kinds: registered via the registry, each kind has its key
//     fields, descriptive fields, effectivity column and row filter.
//   - Merge: full outer join of per-unit record sets into one [Table].
//   - Reconcile: the status transition table used by incremental updates
//     and the 90-day revision of nonconformities.
//   - Reference database: classification of part numbers into manuals.
//   - Pipeline: the orchestrated steps (0, 1, 2, 3, 7, 8, 9).
//   - Service: background runs with progress streaming and history.
//
// # Table Registry
//
// Kinds are registered at init time using [Register]:
//
//	core.Register(TableDefinition{
//	    Info: TableInfo{
//	        Key:       core.KindDSOL,
//	        Sheet:     schema.SheetPartList,
//	        KeyFields: []string{schema.PartNumber, schema.Qty, schema.PartType, schema.PartIssue},
//	    },
//	    FieldSpecs:  []FieldSpec{{Name: schema.PartNumber, Required: true, Normalizer: strings.TrimSpace}},
//	    StatusField: schema.Diff,
//	})
//
// # Statuses
//
// Every (key, unit) pair carries a [Status]. A key missing from a unit's
// source is [Absent], never an empty string. Reconciling two epochs of the
// same unit can produce the synthetic [PhantomNew], [PhantomDeleted] and
// [Anomalous] states; follow-ups store the phantoms downgraded and flag the
// record for review, NC reports keep them as is.
//
// # Error Handling
//
// Configuration and schema errors abort a run. Data-quality problems are
// written to the run's [Console] and never block completion. Technical
// errors are mapped to user messages with codes by [MapError]:
//
//   - CFG: fleet, authors and run request problems
//   - SCH: reference database and follow-up shape mismatches
//   - SRC: unreadable or missing workbooks
//   - RUN, DB, RATE: service level failures
package core
