// Package tables registers the table kinds with the core registry.
// Import this package to ensure all kinds are registered.
package tables

// Each file uses init() to register its kinds: mdl.go for the kinds read
// from MDL sheets, followup.go for the kind derived by line generation.
