package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/api/calendar/v3"

	"quickcal/internal/ics"
	"quickcal/internal/models"
)

const localLayout = "2006-01-02 15:04"

// eventFromFlags builds the event for 'add' from --ics or from the individual flags.
func eventFromFlags(c *cli.Context) (models.CalendarEvent, error) {
	if path := c.Path("ics"); path != "" {
		events, err := readICS(path)
		if err != nil {
			return models.CalendarEvent{}, err
		}
		if len(events) == 0 {
			return models.CalendarEvent{}, fmt.Errorf("%s contains no events", path)
		}
		return events[0], nil
	}

	summary := c.String("summary")
	if summary == "" {
		return models.CalendarEvent{}, fmt.Errorf("--summary is required")
	}
	tz := c.String("tz")

	start, err := parseTime(c.String("start"), tz)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseTime(c.String("end"), tz)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("invalid --end: %w", err)
	}
	if !end.After(start) {
		return models.CalendarEvent{}, fmt.Errorf("--end must be after --start")
	}

	return models.CalendarEvent{
		Summary:     summary,
		Description: c.String("description"),
		Location:    c.String("location"),
		Start:       models.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: tz},
		End:         models.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tz},
	}, nil
}

// parseTime accepts RFC3339, or a local "YYYY-MM-DD HH:MM" read in tz
// (the machine's zone when tz is empty).
func parseTime(value, tz string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing value")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	loc := time.Local
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time zone '%s': %w", tz, err)
		}
		loc = l
	}
	return time.ParseInLocation(localLayout, value, loc)
}

func readICS(path string) ([]models.CalendarEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	events, err := ics.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return events, nil
}

type createdEvent struct {
	*calendar.Event
}

func (e *createdEvent) print(w io.Writer) {
	fmt.Fprintf(w, "Created %q (%s)\n", e.Summary, e.Id)
	if e.HtmlLink != "" {
		fmt.Fprintf(w, "  %s\n", e.HtmlLink)
	}
}

func (e *createdEvent) export(path string) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", path, cerr)
		}
	}()
	return ics.Encode(f, e.Event)
}
