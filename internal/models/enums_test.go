package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumRoundTrip(t *testing.T) {
	for _, label := range PriorityLabels() {
		assert.Equal(t, label, ParsePriority(label).Label())
	}
	for _, label := range TypeLabels() {
		assert.Equal(t, label, ParseType(label).Label())
	}
	for _, label := range StatusLabels() {
		assert.Equal(t, label, ParseStatus(label).Label())
	}
}

func TestEnumDefaults(t *testing.T) {
	for _, v := range []string{"", "   ", "critical??", "NULL"} {
		assert.Equal(t, PriorityMedium, ParsePriority(v), v)
		assert.Equal(t, TypeRequest, ParseType(v), v)
		assert.Equal(t, StatusOpen, ParseStatus(v), v)
	}
}

func TestEnumCaseInsensitive(t *testing.T) {
	assert.Equal(t, PriorityUrgent, ParsePriority("URGENT"))
	assert.Equal(t, TypeBug, ParseType("bug"))
	assert.Equal(t, StatusInProgress, ParseStatus("IN_PROGRESS"))
	assert.Equal(t, StatusInProgress, ParseStatus("in progress"))
	assert.Equal(t, StatusOnHold, ParseStatus("On-Hold"))
	assert.Equal(t, "In Progress", TicketStatus("IN_PROGRESS").Label())
	assert.Equal(t, "Open", TicketStatus("weird").Label())
}

func TestEnumLookupIsStrict(t *testing.T) {
	s, ok := LookupStatus("on hold")
	assert.True(t, ok)
	assert.Equal(t, StatusOnHold, s)

	_, ok = LookupStatus("archived")
	assert.False(t, ok)
	_, ok = LookupPriority("")
	assert.False(t, ok)
	_, ok = LookupType("Incident")
	assert.False(t, ok)
}
