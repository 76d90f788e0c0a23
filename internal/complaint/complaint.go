// Package complaint defines the structured complaint record and the
// transcript types the intake pipeline passes between components.
package complaint

import "strings"

// NotSpecified is the sentinel carried by fields the conversation has not
// filled in yet. Fields are always present; consumers never branch on
// missing keys.
const NotSpecified = "Not specified"

// Severity is the four-tier urgency scale of a complaint.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity coerces free text into the severity scale. Anything
// unrecognised maps to Medium.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Departments is the closed routing set. Classifier output is always
// coerced into this set.
var Departments = []string{"Maintenance", "IT", "HR", "Admin", "Security", "Facilities"}

// DefaultDepartment receives complaints the classifier could not place.
const DefaultDepartment = "Admin"

// ValidDepartment reports whether name is a member of the routing set.
func ValidDepartment(name string) bool {
	for _, d := range Departments {
		if d == name {
			return true
		}
	}
	return false
}

// Record is the structured complaint derived from a conversation.
type Record struct {
	Description string   `json:"description"`
	Location    string   `json:"location"`
	OccurredAt  string   `json:"datetime"`
	Severity    Severity `json:"severity"`
	Details     string   `json:"details"`
}

// NewRecord returns a record with every field at its sentinel default.
func NewRecord() Record {
	return Record{
		Location:   NotSpecified,
		OccurredAt: NotSpecified,
		Severity:   SeverityMedium,
	}
}

// Merge folds a freshly extracted record into a previously known one.
// Non-sentinel wins: a new value overrides only when it says something,
// and a sentinel never erases prior knowledge. Severity moves off Medium
// only when the new value is non-default, since Medium is
// indistinguishable from "not stated".
func Merge(old, latest Record) Record {
	merged := old
	if strings.TrimSpace(latest.Description) != "" {
		merged.Description = latest.Description
	}
	if specified(latest.Location) {
		merged.Location = latest.Location
	}
	if specified(latest.OccurredAt) {
		merged.OccurredAt = latest.OccurredAt
	}
	if latest.Severity != SeverityMedium {
		merged.Severity = latest.Severity
	}
	if strings.TrimSpace(latest.Details) != "" {
		merged.Details = latest.Details
	}
	return merged
}

// HasFieldBeyondDescription reports whether any field other than the
// description carries a non-sentinel value. Severity is excluded: it
// always has a value.
func (r Record) HasFieldBeyondDescription() bool {
	return specified(r.Location) || specified(r.OccurredAt) || strings.TrimSpace(r.Details) != ""
}

func specified(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != NotSpecified
}
