// Package ics reads events to submit from iCalendar files and writes created
// events back out as iCalendar.
package ics

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"

	"quickcal/internal/models"
)

const productID = "-//quickcal//EN"

// Decode reads every VEVENT from r. Each event needs SUMMARY, DTSTART and
// DTEND; events without a UID get a generated one.
func Decode(r io.Reader) ([]models.CalendarEvent, error) {
	dec := ical.NewDecoder(r)

	var events []models.CalendarEvent
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for i, ve := range cal.Events() {
			ev, err := toModel(ve)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", len(events)+i+1, err)
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

func toModel(ve ical.Event) (models.CalendarEvent, error) {
	summary, err := ve.Props.Text(ical.PropSummary)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("invalid SUMMARY: %w", err)
	}
	if summary == "" {
		return models.CalendarEvent{}, fmt.Errorf("missing SUMMARY")
	}

	start, err := dateTime(ve, ical.PropDateTimeStart)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%q: %w", summary, err)
	}
	end, err := dateTime(ve, ical.PropDateTimeEnd)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%q: %w", summary, err)
	}

	uid, _ := ve.Props.Text(ical.PropUID)
	if uid == "" {
		uid = uuid.NewString()
	}
	description, _ := ve.Props.Text(ical.PropDescription)
	location, _ := ve.Props.Text(ical.PropLocation)

	return models.CalendarEvent{
		UID:         uid,
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       start,
		End:         end,
	}, nil
}

// dateTime reads a DTSTART/DTEND property. A TZID parameter is resolved and
// kept as the event time zone; floating times are read as UTC.
func dateTime(ve ical.Event, name string) (models.EventDateTime, error) {
	prop := ve.Props.Get(name)
	if prop == nil {
		return models.EventDateTime{}, fmt.Errorf("missing %s", name)
	}

	tzid := prop.Params.Get(ical.ParamTimezoneID)
	loc := time.UTC
	if tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return models.EventDateTime{}, fmt.Errorf("unknown time zone %q in %s: %w", tzid, name, err)
		}
		loc = l
	}

	t, err := prop.DateTime(loc)
	if err != nil {
		return models.EventDateTime{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return models.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: tzid}, nil
}

// Encode writes created as a single-event VCALENDAR.
func Encode(w io.Writer, created *calendar.Event) error {
	ve, err := toICal(created)
	if err != nil {
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, ve)

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	return nil
}

// toICal converts a created Calendar API event to a VEVENT.
func toICal(e *calendar.Event) (*ical.Component, error) {
	if e.Start == nil || e.End == nil {
		return nil, fmt.Errorf("event %q has no start or end", e.Id)
	}
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil {
		return nil, fmt.Errorf("invalid end time: %w", err)
	}

	uid := e.ICalUID
	if uid == "" {
		uid = e.Id
	}
	if uid == "" {
		uid = uuid.NewString()
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, e.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.HtmlLink != "" {
		ve.Props.SetText(ical.PropURL, e.HtmlLink)
	}
	return ve, nil
}
