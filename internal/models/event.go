package models

import "time"

// EventDateTime is the start or end of an event.
type EventDateTime struct {
	DateTime string `json:"dateTime"`           // RFC3339 timestamp
	TimeZone string `json:"timeZone,omitempty"` // IANA zone name, e.g. "Europe/Lisbon"
}

// Time parses DateTime as RFC3339.
func (d EventDateTime) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, d.DateTime)
}

// CalendarEvent is the event a user asked to create.
// It is a value type: the submitter works on a copy and never mutates the caller's event.
type CalendarEvent struct {
	UID         string        `json:"-"` // Local identity, used by batch imports to skip duplicates
	Summary     string        `json:"summary"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Start       EventDateTime `json:"start"`
	End         EventDateTime `json:"end"`
}

// WithSummaryPrefix returns a copy of the event whose summary starts with prefix.
func (e CalendarEvent) WithSummaryPrefix(prefix string) CalendarEvent {
	e.Summary = prefix + e.Summary
	return e
}

// WithDefaultTimeZone returns a copy of the event with tz filled into any
// start or end that has no time zone of its own.
func (e CalendarEvent) WithDefaultTimeZone(tz string) CalendarEvent {
	if tz == "" {
		return e
	}
	if e.Start.TimeZone == "" {
		e.Start.TimeZone = tz
	}
	if e.End.TimeZone == "" {
		e.End.TimeZone = tz
	}
	return e
}
