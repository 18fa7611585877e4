package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned by ParseStatus for symbols outside the closed set.
var ErrUnknownStatus = errors.New("unknown status symbol")

// Status is the state of one key for one unit in one revision epoch.
//
// Absent is an explicit variant: a key missing from a unit's source is Absent,
// never an empty string. PhantomNew, PhantomDeleted and Anomalous only arise from
// comparing two epochs of the same unit (see Reconcile).
type Status uint8

const (
	Absent Status = iota
	New
	Revised
	Unchanged
	Deleted
	PhantomNew
	PhantomDeleted
	Anomalous
)

var statusSymbols = [...]string{
	Absent:         "",
	New:            "N",
	Revised:        "R",
	Unchanged:      "-",
	Deleted:        "D",
	PhantomNew:     "PN",
	PhantomDeleted: "PD",
	Anomalous:      "WTF",
}

var statusNames = [...]string{
	Absent:         "absent",
	New:            "new",
	Revised:        "revised",
	Unchanged:      "unchanged",
	Deleted:        "deleted",
	PhantomNew:     "phantom_new",
	PhantomDeleted: "phantom_deleted",
	Anomalous:      "anomalous",
}

// AllStatuses lists every status in declaration order.
var AllStatuses = []Status{Absent, New, Revised, Unchanged, Deleted, PhantomNew, PhantomDeleted, Anomalous}

// ParseStatus converts a cell symbol ("N", "R", "-", "D", "PN", "PD", "WTF" or
// empty) into a Status. Surrounding whitespace is ignored.
func ParseStatus(symbol string) (Status, error) {
	s := strings.TrimSpace(symbol)
	for st, sym := range statusSymbols {
		if s == sym {
			return Status(st), nil
		}
	}
	return Anomalous, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Symbol returns the cell symbol written to reports.
func (s Status) Symbol() string {
	if int(s) < len(statusSymbols) {
		return statusSymbols[s]
	}
	return statusSymbols[Anomalous]
}

// String returns a readable name, used in logs and JSON.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// IsLive reports whether the status is one of New, Revised, Unchanged.
func (s Status) IsLive() bool {
	return s == New || s == Revised || s == Unchanged
}

// IsSynthetic reports whether the status can only result from reconciliation.
func (s Status) IsSynthetic() bool {
	return s == PhantomNew || s == PhantomDeleted || s == Anomalous
}

// NeedsReview reports whether a reconciled status must be flagged for a human.
func (s Status) NeedsReview() bool {
	return s.IsSynthetic()
}

// Stored downgrades phantom states for storage: PhantomNew becomes New and
// PhantomDeleted becomes Deleted. Anomalous is kept so it stays visible.
func (s Status) Stored() Status {
	switch s {
	case PhantomNew:
		return New
	case PhantomDeleted:
		return Deleted
	}
	return s
}

// Reconcile derives the status of a key for one unit given its status in the
// previous epoch (old) and in the latest source (next).
//
//	old \ next  | N R -         | D  | absent
//	N R -       | next          | PD | PD
//	D absent    | PN            | D  | absent
//
// Any pair outside that grid, such as a synthetic old status left over from a
// previous reconciliation, yields Anomalous.
func Reconcile(old, next Status) Status {
	switch {
	case old.IsLive():
		switch {
		case next.IsLive():
			return next
		case next == Deleted, next == Absent:
			return PhantomDeleted
		}
	case old == Deleted, old == Absent:
		switch {
		case next.IsLive():
			return PhantomNew
		case next == Deleted:
			return Deleted
		case next == Absent:
			return Absent
		}
	}
	return Anomalous
}

// StatusLabel renders a status with its unit for the NC report, for example
// "1207 (N)". Absent renders as an empty cell.
func StatusLabel(unit UnitCode, s Status) string {
	if s == Absent {
		return ""
	}
	return fmt.Sprintf("%s (%s)", unit, s.Symbol())
}
