package core

// # Error Codes Reference
//
// User-facing messages for run failures. Users quote the code when they ask
// for help; the technical error stays in the logs.
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Partition mismatch: the fleet file and the MDL folder list different units
//	         Action: Fix the fleet file or add the missing MDLs, then run again
//	         Patterns: "partition mismatch"
//
//	CFG002 - Missing keys: the fleet or authors file is missing required keys
//	         Action: Add the keys named in the error, or regenerate the samples with "followup init"
//	         Patterns: "missing keys in"
//
//	CFG003 - Invalid fleet: the fleet partitions are inconsistent
//	         Action: Every unit must be listed under "all" and be either new or rev, not both
//	         Patterns: "fleet validation failed"
//
//	CFG004 - Missing inputs: the step was started without all of its inputs
//	         Action: Give the inputs listed in the error
//	         Patterns: "invalid run request"
//
//	CFG005 - Unknown step
//	         Action: Use one of the steps listed by /api/steps
//	         Patterns: "unknown step"
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Reference database columns do not match the expected schema
//	         Action: Restore the Pseudo_Data_Base sheet header
//	         Patterns: "schema mismatch"
//
//	SCH002 - Unit set mismatch: some units don't appear on both follow-ups
//	         Action: Use an old and a new follow-up built for the same fleet
//	         Patterns: "unit set mismatch"
//
//	SCH003 - Sheet set mismatch: the follow-ups have different manual sheets
//	         Action: Use follow-ups with the same IPC/SRM sheets
//	         Patterns: "sheet set mismatch"
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - No follow-up sheets found in the workbook
//	SRC002 - No MDL workbooks found in the folder
//	SRC003 - A required sheet is missing
//	SRC004 - The file is not an xlsx workbook
//	SRC005 - File or folder not found
//	SRC006 - Path outside the data directory
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: too many runs in progress
//	RUN002 - Run not found, it may have expired
//	RUN003 - Run timed out
//	RUN004 - Request cancelled
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Unable to connect to database
//	DB002 - Database connection was interrupted
//	DB003 - Operation timed out
//	DB004 - Run history is not configured
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - An unexpected error occurred; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Configuration
	{"partition mismatch", UserMessage{
		Message: "The fleet file and the MDL folder list different units",
		Action:  "Fix the fleet file or add the missing MDLs, then run again",
		Code:    "CFG001",
	}},
	{"missing keys in", UserMessage{
		Message: "The fleet or authors file is missing required keys",
		Action:  `Add the keys named in the error, or regenerate the samples with "followup init"`,
		Code:    "CFG002",
	}},
	{"fleet validation failed", UserMessage{
		Message: "The fleet partitions are inconsistent",
		Action:  `Every unit must be listed under "all" and be either new or rev, not both`,
		Code:    "CFG003",
	}},
	{"invalid run request", UserMessage{
		Message: "The step was started without all of its inputs",
		Action:  "Give the inputs listed in the error",
		Code:    "CFG004",
	}},
	{"unknown step", UserMessage{
		Message: "Unknown step",
		Action:  "Use one of the listed steps",
		Code:    "CFG005",
	}},
	{"malformed request body", UserMessage{
		Message: "The run request could not be read",
		Action:  "Send a JSON object with the step and its input paths",
		Code:    "CFG006",
	}},

	// Schema
	{"schema mismatch", UserMessage{
		Message: "Reference database columns do not match the expected schema",
		Action:  "Restore the Pseudo_Data_Base sheet header",
		Code:    "SCH001",
	}},
	{"unit set mismatch", UserMessage{
		Message: "Some units don't appear on both follow-ups",
		Action:  "Use an old and a new follow-up built for the same fleet",
		Code:    "SCH002",
	}},
	{"sheet set mismatch", UserMessage{
		Message: "The follow-ups have different manual sheets",
		Action:  "Use follow-ups with the same IPC and SRM sheets",
		Code:    "SCH003",
	}},

	// Sources
	{"no follow-up sheets found", UserMessage{
		Message: "No follow-up sheets found in the workbook",
		Action:  "Check that the file is a follow-up with IPC or SRM sheets",
		Code:    "SRC001",
	}},
	{"no mdl workbooks found", UserMessage{
		Message: "No MDL workbooks found in the folder",
		Action:  "Check the folder path; only .xlsx files are read",
		Code:    "SRC002",
	}},
	{"does not exist", UserMessage{
		Message: "A required sheet is missing",
		Action:  "Check the sheet names of the workbook",
		Code:    "SRC003",
	}},
	{"not a valid zip file", UserMessage{
		Message: "The file is not an xlsx workbook",
		Action:  "Save the file as .xlsx and try again",
		Code:    "SRC004",
	}},
	{"no such file or directory", UserMessage{
		Message: "File or folder not found",
		Action:  "Check the path and try again",
		Code:    "SRC005",
	}},
	{"outside the data directory", UserMessage{
		Message: "Path outside the data directory",
		Action:  "Use a path relative to the data directory",
		Code:    "SRC006",
	}},

	// Runs
	{"too many runs", UserMessage{
		Message: "Too many runs in progress",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}},
	{"run not found", UserMessage{
		Message: "Run not found",
		Action:  "The run may have expired. Check the run history",
		Code:    "RUN002",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Run timed out",
		Action:  "Try again, or raise RUN_TIMEOUT for large fleets",
		Code:    "RUN003",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN004",
	}},

	// Database
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB003",
	}},
	{"history not configured", UserMessage{
		Message: "Run history is not configured",
		Action:  "Set DATABASE_URL to keep run history",
		Code:    "DB004",
	}},

	// Rate limiting
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
