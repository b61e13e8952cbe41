package models

import "strings"

// TicketPriority is the stored (lower snake case) form of a ticket priority.
type TicketPriority string

const (
	PriorityUrgent TicketPriority = "urgent"
	PriorityHigh   TicketPriority = "high"
	PriorityMedium TicketPriority = "medium"
	PriorityLow    TicketPriority = "low"
)

// TicketType is the stored form of a ticket type.
type TicketType string

const (
	TypeRequest TicketType = "request"
	TypeBug     TicketType = "bug"
	TypeTask    TicketType = "task"
)

// TicketStatus is the stored form of a ticket's life-cycle state.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusCompleted  TicketStatus = "completed"
	StatusCancelled  TicketStatus = "cancelled"
	StatusRejected   TicketStatus = "rejected"
	StatusOnHold     TicketStatus = "on_hold"
	StatusBlocked    TicketStatus = "blocked"
)

var priorityLabels = map[TicketPriority]string{
	PriorityUrgent: "Urgent",
	PriorityHigh:   "High",
	PriorityMedium: "Medium",
	PriorityLow:    "Low",
}

var typeLabels = map[TicketType]string{
	TypeRequest: "Request",
	TypeBug:     "Bug",
	TypeTask:    "Task",
}

var statusLabels = map[TicketStatus]string{
	StatusOpen:       "Open",
	StatusInProgress: "In Progress",
	StatusCompleted:  "Completed",
	StatusCancelled:  "Cancelled",
	StatusRejected:   "Rejected",
	StatusOnHold:     "On Hold",
	StatusBlocked:    "Blocked",
}

// enumKey folds display and storage spellings onto the same key:
// "In Progress", "in-progress" and "IN_PROGRESS" all become "in_progress".
func enumKey(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(v)
}

// ParsePriority maps any spelling to a priority. Missing and unknown values
// become PriorityMedium.
func ParsePriority(v string) TicketPriority {
	p := TicketPriority(enumKey(v))
	if _, ok := priorityLabels[p]; ok {
		return p
	}
	return PriorityMedium
}

// ParseType maps any spelling to a type. Missing and unknown values become TypeRequest.
func ParseType(v string) TicketType {
	t := TicketType(enumKey(v))
	if _, ok := typeLabels[t]; ok {
		return t
	}
	return TypeRequest
}

// ParseStatus maps any spelling to a status. Missing and unknown values become StatusOpen.
func ParseStatus(v string) TicketStatus {
	s := TicketStatus(enumKey(v))
	if _, ok := statusLabels[s]; ok {
		return s
	}
	return StatusOpen
}

// Label returns the display form, e.g. "High".
func (p TicketPriority) Label() string { return priorityLabels[ParsePriority(string(p))] }

// Label returns the display form, e.g. "Bug".
func (t TicketType) Label() string { return typeLabels[ParseType(string(t))] }

// Label returns the display form, e.g. "In Progress".
func (s TicketStatus) Label() string { return statusLabels[ParseStatus(string(s))] }

// PriorityLabels lists display values in severity order.
func PriorityLabels() []string { return []string{"Urgent", "High", "Medium", "Low"} }

// TypeLabels lists display values.
func TypeLabels() []string { return []string{"Request", "Bug", "Task"} }

// StatusLabels lists display values.
func StatusLabels() []string {
	return []string{"Open", "In Progress", "Completed", "Cancelled", "Rejected", "On Hold", "Blocked"}
}

// LookupPriority is ParsePriority without the default; ok is false for unknown values.
func LookupPriority(v string) (TicketPriority, bool) {
	p := TicketPriority(enumKey(v))
	_, ok := priorityLabels[p]
	return p, ok
}

// LookupType is ParseType without the default.
func LookupType(v string) (TicketType, bool) {
	t := TicketType(enumKey(v))
	_, ok := typeLabels[t]
	return t, ok
}

// LookupStatus is ParseStatus without the default.
func LookupStatus(v string) (TicketStatus, bool) {
	s := TicketStatus(enumKey(v))
	_, ok := statusLabels[s]
	return s, ok
}
